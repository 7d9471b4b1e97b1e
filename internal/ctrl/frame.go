// Package ctrl implements the internal control protocol exchanged
// between the client library and the daemon over the same transport
// used for log messages: a fixed "DUH\x01" pattern, a 32-bit type tag,
// and a type-specific body encoded native-endian, since this channel
// never leaves the host.
package ctrl

import (
	"encoding/binary"

	"github.com/minminlittleshrimp/mct-go/internal/wire"
)

// Type identifies a control frame's body layout.
type Type uint32

const (
	TypeRegisterApp      Type = 1
	TypeUnregisterApp    Type = 2
	TypeRegisterContext  Type = 3
	TypeUnregisterContext Type = 4
	TypeAppLogLevelTS    Type = 5
	TypeLog              Type = 6
	TypeOverflow         Type = 7
	TypeMarker           Type = 8
	TypeLogLevel         Type = 9
	TypeInjection        Type = 10
	TypeLogState         Type = 11
	TypeSetBlockMode     Type = 12
)

// userHeaderLen is the fixed prefix every control frame carries ahead of
// its type-specific body: pattern[4] + type:u32.
const userHeaderLen = 8

// nativeOrder is the host's byte order; the control channel is always
// local IPC, never a network wire, so there is no MSBF concept here.
var nativeOrder binary.ByteOrder = binary.NativeEndian

// EncodeUserHeader writes the 8-byte user header (pattern + type) to dst.
func EncodeUserHeader(dst []byte, t Type) error {
	if len(dst) < userHeaderLen {
		return ErrBufferFull
	}
	copy(dst[0:4], wire.ControlHeaderPattern[:])
	nativeOrder.PutUint32(dst[4:8], uint32(t))
	return nil
}

// DecodeUserHeader parses the 8-byte user header, failing if the pattern
// does not match.
func DecodeUserHeader(src []byte) (Type, error) {
	if len(src) < userHeaderLen {
		return 0, ErrShortFrame
	}
	if src[0] != wire.ControlHeaderPattern[0] || src[1] != wire.ControlHeaderPattern[1] ||
		src[2] != wire.ControlHeaderPattern[2] || src[3] != wire.ControlHeaderPattern[3] {
		return 0, ErrBadPattern
	}
	return Type(nativeOrder.Uint32(src[4:8])), nil
}

// Body is implemented by every control-frame body type in types.go.
type Body interface {
	Len() int
	Encode(dst []byte) (int, error)
	Decode(src []byte) (int, error)
}

// EncodeFrame writes the user header followed by body's encoding.
func EncodeFrame(dst []byte, t Type, body Body) (int, error) {
	if err := EncodeUserHeader(dst, t); err != nil {
		return 0, err
	}
	n, err := body.Encode(dst[userHeaderLen:])
	if err != nil {
		return 0, err
	}
	return userHeaderLen + n, nil
}

// NewBody returns the zero-value body struct for a frame type, or
// ErrUnknownType. The receiver resyncs past an unrecognized type by
// consuming only the user header (spec §4.7).
func NewBody(t Type) (Body, error) {
	switch t {
	case TypeRegisterApp:
		return &RegisterApp{}, nil
	case TypeUnregisterApp:
		return &UnregisterApp{}, nil
	case TypeRegisterContext:
		return &RegisterContext{}, nil
	case TypeUnregisterContext:
		return &UnregisterContext{}, nil
	case TypeAppLogLevelTS:
		return &AppLogLevelTS{}, nil
	case TypeLog:
		return &Log{}, nil
	case TypeOverflow:
		return &Overflow{}, nil
	case TypeMarker:
		return &Marker{}, nil
	case TypeLogLevel:
		return &LogLevel{}, nil
	case TypeInjection:
		return &Injection{}, nil
	case TypeLogState:
		return &LogState{}, nil
	case TypeSetBlockMode:
		return &SetBlockMode{}, nil
	default:
		return nil, ErrUnknownType
	}
}

// DecodeFrame finds the next "DUH\x01" frame in src, decodes its type and
// body, and returns the decoded body along with the number of bytes
// consumed up to and including it. If the pattern is not found, the
// caller should advance one byte and retry on the next poll.
func DecodeFrame(src []byte) (Type, Body, int, error) {
	idx := FindPattern(src)
	if idx < 0 {
		return 0, nil, 0, ErrBadPattern
	}
	t, err := DecodeUserHeader(src[idx:])
	if err != nil {
		return 0, nil, 0, err
	}
	body, err := NewBody(t)
	if err != nil {
		return t, nil, idx + userHeaderLen, err
	}
	n, err := body.Decode(src[idx+userHeaderLen:])
	if err != nil {
		return t, nil, 0, err
	}
	return t, body, idx + userHeaderLen + n, nil
}

// FindPattern scans buf for the "DUH\x01" pattern, returning its offset
// or -1. This backs the receiver's byte-by-byte resync discipline (spec
// §4.7): on a parse error the caller advances one byte and calls this
// again rather than trusting the current position.
func FindPattern(buf []byte) int {
	if len(buf) < 4 {
		return -1
	}
	for i := 0; i+4 <= len(buf); i++ {
		if buf[i] == wire.ControlHeaderPattern[0] && buf[i+1] == wire.ControlHeaderPattern[1] &&
			buf[i+2] == wire.ControlHeaderPattern[2] && buf[i+3] == wire.ControlHeaderPattern[3] {
			return i
		}
	}
	return -1
}
