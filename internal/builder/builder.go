// Package builder implements the message builder: given a context and a
// log level already cleared by the fast-path gate, stage a buffer,
// append typed arguments, and finalize by handing the bytes to the
// transport (falling back to the overflow ring on backpressure).
package builder

import (
	"errors"

	"github.com/minminlittleshrimp/mct-go/internal/ring"
	"github.com/minminlittleshrimp/mct-go/internal/stageio"
	"github.com/minminlittleshrimp/mct-go/internal/transport"
	"github.com/minminlittleshrimp/mct-go/internal/wire"
)

// Outcome is the propagation result Finish reports, independent of any
// caller-facing error type so this package stays free of an import cycle
// with the root client package.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeUserBufferFull
	OutcomePipeFull
	OutcomePipeError
	OutcomeBufferFull
	OutcomeError
)

// Builder stages one log message: header bytes followed by a sequence of
// typed arguments (verbose mode) or a raw payload (non-verbose mode).
type Builder struct {
	buf  []byte
	used int
	pool *stageio.Pool

	htyp uint8
	noar uint8

	// maxLen is the staging cap, MCT_LOG_MSG_BUF_LEN, <= 65535. Start
	// always stages into a 256-byte buffer and never shrinks it, so a
	// cap below 256 takes effect as 256.
	maxLen int

	// localEcho, when set, mirrors the finished message's text form to
	// stdout, the MCT_LOCAL_PRINT_MODE supplemented feature.
	localEcho func(apid, ctid wire.Id4, level int8, text string)
	apid, ctid wire.Id4
	level      int8
	textParts  []string

	lastErr error

	// capErr is set the first time a Write* call fails because the
	// staging buffer is already at maxLen and has no room left, even
	// after ensureCapacity's growth attempt. Finish reports this as
	// OutcomeUserBufferFull instead of sending a short or malformed
	// message.
	capErr error
}

// Start begins a verbose-mode message. The caller is expected to have
// already checked the fast-path log-level gate (level <= effective
// level); Start itself only stages the header.
func Start(pool *stageio.Pool, htyp uint8, apid, ctid wire.Id4, mcnt uint8, msgType uint8, level int8, maxLen int) *Builder {
	if maxLen <= 0 || maxLen > 65535 {
		maxLen = 65535
	}
	b := &Builder{pool: pool, htyp: htyp, maxLen: maxLen, apid: apid, ctid: ctid, level: level}
	b.buf = pool.Get(256)
	msin := wire.MakeMsin(msgType, uint8(level), true)
	h := &wire.Header{Htyp: htyp, Mcnt: mcnt, Msin: msin, Apid: apid, Ctid: ctid}
	n, err := wire.EncodeHeader(b.buf, h)
	if err != nil {
		// 256 bytes always fits a header; this would be a programming
		// error, not a runtime condition.
		panic(err)
	}
	b.used = n
	return b
}

// StartID begins a non-verbose-mode message: the extended header is
// optional (includeExtended, controlled by
// MCT_DISABLE_EXTENDED_HEADER_FOR_NONVERBOSE) and the first four payload
// bytes are msgID instead of a per-argument type_info stream.
func StartID(pool *stageio.Pool, htyp uint8, apid, ctid wire.Id4, mcnt uint8, msgType uint8, level int8, maxLen int, includeExtended bool, msgID uint32) *Builder {
	if !includeExtended {
		htyp &^= wire.HtypUEH
	}
	b := Start(pool, htyp, apid, ctid, mcnt, msgType, level, maxLen)
	wire.EncodeMessageID(b.buf[b.used:], htyp, msgID)
	b.used += wire.MessageIDLen
	return b
}

// SetExtras patches the optional ecu/session-id/timestamp extras in
// place. Start already reserves the space EncodeHeader computed from
// htyp and fills it with zeros; SetExtras overwrites it with the values
// the caller actually wants to send. A no-op for any extra htyp did not
// select.
func (b *Builder) SetExtras(ecu wire.Id4, seid uint32, tmsp uint32) error {
	e := wire.Extras{Ecu: ecu, Seid: seid, Tmsp: tmsp}
	_, err := e.Encode(b.htyp, b.buf[wire.StandardHeaderLen:])
	return err
}

// WithLocalEcho enables the MCT_LOCAL_PRINT_MODE mirror-to-stdout
// supplemented feature; fn is called once from Finish with the finished
// message's rendered arguments.
func (b *Builder) WithLocalEcho(fn func(apid, ctid wire.Id4, level int8, text string)) {
	b.localEcho = fn
}

// ensureCapacity grows the staging buffer to the next size bucket (up to
// maxLen) if the current one cannot hold an additional extra bytes.
func (b *Builder) ensureCapacity(extra int) {
	for b.used+extra > len(b.buf) && len(b.buf) < b.maxLen {
		next := b.pool.Get(len(b.buf) + 1)
		if next == nil || len(next) <= len(b.buf) {
			next = make([]byte, b.maxLen)
		}
		if len(next) > b.maxLen {
			next = next[:b.maxLen]
		}
		copy(next, b.buf[:b.used])
		b.pool.Put(b.buf)
		b.buf = next
	}
}

// recordCapErr remembers the first wire.ErrBufferFull a Write* call hit
// after ensureCapacity already grew the staging buffer to maxLen and
// still found no room; any other encode error (a caller-supplied value
// the codec rejects) is left for that call's own return value.
func (b *Builder) recordCapErr(err error) {
	if b.capErr == nil && errors.Is(err, wire.ErrBufferFull) && len(b.buf) >= b.maxLen {
		b.capErr = err
	}
}

func (b *Builder) recordText(s string) {
	if b.localEcho != nil {
		b.textParts = append(b.textParts, s)
	}
}

// WriteBool appends a boolean argument.
func (b *Builder) WriteBool(v bool) error { return b.WriteBoolAttr(v, nil) }

// WriteBoolAttr appends a boolean argument with an optional VARI name.
func (b *Builder) WriteBoolAttr(v bool, attr *wire.Attr) error {
	b.ensureCapacity(16)
	n, err := wire.EncodeBool(b.buf[b.used:], b.htyp, v, attr)
	if err != nil {
		b.recordCapErr(err)
		return err
	}
	b.used += n
	b.noar++
	if v {
		b.recordText("true")
	} else {
		b.recordText("false")
	}
	return nil
}

// WriteSint appends a signed-integer argument of the given width.
func (b *Builder) WriteSint(width int, v int64) error { return b.WriteSintAttr(width, v, nil) }

func (b *Builder) WriteSintAttr(width int, v int64, attr *wire.Attr) error {
	b.ensureCapacity(32)
	n, err := wire.EncodeSint(b.buf[b.used:], b.htyp, width, v, attr)
	if err != nil {
		b.recordCapErr(err)
		return err
	}
	b.used += n
	b.noar++
	return nil
}

// WriteUint appends an unsigned-integer argument.
func (b *Builder) WriteUint(width int, v uint64) error {
	return b.WriteUintAttr(width, v, wire.ScodASCII, nil)
}

func (b *Builder) WriteUintAttr(width int, v uint64, scod uint32, attr *wire.Attr) error {
	b.ensureCapacity(32)
	n, err := wire.EncodeUint(b.buf[b.used:], b.htyp, width, v, scod, attr)
	if err != nil {
		b.recordCapErr(err)
		return err
	}
	b.used += n
	b.noar++
	return nil
}

// WriteFloat appends a floating-point argument.
func (b *Builder) WriteFloat(width int, v float64) error { return b.WriteFloatAttr(width, v, nil) }

func (b *Builder) WriteFloatAttr(width int, v float64, attr *wire.Attr) error {
	b.ensureCapacity(32)
	n, err := wire.EncodeFloat(b.buf[b.used:], b.htyp, width, v, attr)
	if err != nil {
		b.recordCapErr(err)
		return err
	}
	b.used += n
	b.noar++
	return nil
}

// WriteRaw appends a length-prefixed raw byte argument.
func (b *Builder) WriteRaw(v []byte) error { return b.WriteRawAttr(v, nil) }

func (b *Builder) WriteRawAttr(v []byte, attr *wire.Attr) error {
	b.ensureCapacity(len(v) + 16)
	n, err := wire.EncodeRaw(b.buf[b.used:], b.htyp, v, attr)
	if err != nil {
		b.recordCapErr(err)
		return err
	}
	b.used += n
	b.noar++
	return nil
}

// WriteString appends a string argument, subject to the staging-buffer
// truncation policy (spec §4.1) once maxLen has been reached.
func (b *Builder) WriteString(s string) error {
	return b.WriteStringAttr(s, wire.EncodingUTF8, nil)
}

func (b *Builder) WriteStringAttr(s string, coding wire.StringEncoding, attr *wire.Attr) error {
	b.ensureCapacity(len(s) + len(wire.TruncationTail) + 16)
	n, err := wire.EncodeString(b.buf[b.used:], b.htyp, s, coding, attr)
	if err != nil {
		b.recordCapErr(err)
		return err
	}
	b.used += n
	b.noar++
	b.recordText(s)
	return nil
}

// Finish finalizes the message (patching the standard header's Len
// field), invokes the local-echo callback if enabled, and hands the
// bytes to t. On PipeFull/PipeError it pushes the finished message into
// r as a single framed block; the caller is responsible for releasing
// the Builder's buffer back to its pool via Release once propagation is
// complete.
func (b *Builder) Finish(t transport.Transport, r *ring.Ring) Outcome {
	if b.capErr != nil {
		return OutcomeUserBufferFull
	}
	if err := wire.PatchNoar(b.buf, b.htyp, b.noar); err != nil {
		return OutcomeError
	}
	if err := wire.PatchLen(b.buf, uint16(b.used)); err != nil {
		return OutcomeError
	}

	if b.localEcho != nil {
		text := ""
		for i, p := range b.textParts {
			if i > 0 {
				text += " "
			}
			text += p
		}
		b.localEcho(b.apid, b.ctid, b.level, text)
	}

	result, err := t.Send(b.buf[:b.used])
	switch result {
	case transport.ResultOK:
		return OutcomeOK
	case transport.ResultPipeFull, transport.ResultPipeError:
		if pushErr := r.Push3(b.buf[:b.used], nil, nil); pushErr != nil {
			return OutcomeBufferFull
		}
		if result == transport.ResultPipeFull {
			return OutcomePipeFull
		}
		return OutcomePipeError
	default:
		b.lastErr = err
		return OutcomeError
	}
}

// Err returns the underlying transport error from the most recent
// Finish call, if any (e.g. transport.ErrFileSizeLimit for the
// direct-to-file sink). Nil unless Finish returned OutcomeError.
func (b *Builder) Err() error { return b.lastErr }

// NumArgs reports how many arguments have been appended so far.
func (b *Builder) NumArgs() uint8 { return b.noar }

// Bytes exposes the staged bytes for tests and for callers that need to
// inspect the finished message (e.g. the control-frame log body).
func (b *Builder) Bytes() []byte { return b.buf[:b.used] }

// Release returns the staging buffer to its pool. Call only after the
// bytes are no longer needed (Finish has already copied into the ring or
// handed them to the transport's own buffering).
func (b *Builder) Release() {
	if b.buf != nil {
		b.pool.Put(b.buf)
		b.buf = nil
	}
}
