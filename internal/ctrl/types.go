package ctrl

import "github.com/minminlittleshrimp/mct-go/internal/wire"

func putString(dst []byte, s string) int {
	nativeOrder.PutUint16(dst[0:2], uint16(len(s)))
	copy(dst[2:2+len(s)], s)
	return 2 + len(s)
}

func getString(src []byte) (string, int, error) {
	if len(src) < 2 {
		return "", 0, ErrShortFrame
	}
	n := int(nativeOrder.Uint16(src[0:2]))
	if len(src) < 2+n {
		return "", 0, ErrShortFrame
	}
	return string(src[2 : 2+n]), 2 + n, nil
}

func stringLen(s string) int { return 2 + len(s) }

// RegisterApp is the register-app body: L→D.
type RegisterApp struct {
	Apid        wire.Id4
	Pid         int32
	Description string
}

func (b *RegisterApp) Len() int { return 4 + 4 + stringLen(b.Description) }

func (b *RegisterApp) Encode(dst []byte) (int, error) {
	if len(dst) < b.Len() {
		return 0, ErrBufferFull
	}
	copy(dst[0:4], b.Apid[:])
	nativeOrder.PutUint32(dst[4:8], uint32(b.Pid))
	n := putString(dst[8:], b.Description)
	return 8 + n, nil
}

func (b *RegisterApp) Decode(src []byte) (int, error) {
	if len(src) < 8 {
		return 0, ErrShortFrame
	}
	copy(b.Apid[:], src[0:4])
	b.Pid = int32(nativeOrder.Uint32(src[4:8]))
	desc, n, err := getString(src[8:])
	if err != nil {
		return 0, err
	}
	b.Description = desc
	return 8 + n, nil
}

// UnregisterApp is the unregister-app body: L→D.
type UnregisterApp struct {
	Apid wire.Id4
	Pid  int32
}

func (b *UnregisterApp) Len() int { return 8 }

func (b *UnregisterApp) Encode(dst []byte) (int, error) {
	if len(dst) < 8 {
		return 0, ErrBufferFull
	}
	copy(dst[0:4], b.Apid[:])
	nativeOrder.PutUint32(dst[4:8], uint32(b.Pid))
	return 8, nil
}

func (b *UnregisterApp) Decode(src []byte) (int, error) {
	if len(src) < 8 {
		return 0, ErrShortFrame
	}
	copy(b.Apid[:], src[0:4])
	b.Pid = int32(nativeOrder.Uint32(src[4:8]))
	return 8, nil
}

// RegisterContext is the register-context body: L→D.
type RegisterContext struct {
	Apid        wire.Id4
	Ctid        wire.Id4
	LogLevelPos uint32
	LogLevel    int8
	TraceStatus int8
	Pid         int32
	Description string
}

func (b *RegisterContext) Len() int { return 4 + 4 + 4 + 1 + 1 + 4 + stringLen(b.Description) }

func (b *RegisterContext) Encode(dst []byte) (int, error) {
	if len(dst) < b.Len() {
		return 0, ErrBufferFull
	}
	copy(dst[0:4], b.Apid[:])
	copy(dst[4:8], b.Ctid[:])
	nativeOrder.PutUint32(dst[8:12], b.LogLevelPos)
	dst[12] = byte(b.LogLevel)
	dst[13] = byte(b.TraceStatus)
	nativeOrder.PutUint32(dst[14:18], uint32(b.Pid))
	n := putString(dst[18:], b.Description)
	return 18 + n, nil
}

func (b *RegisterContext) Decode(src []byte) (int, error) {
	if len(src) < 18 {
		return 0, ErrShortFrame
	}
	copy(b.Apid[:], src[0:4])
	copy(b.Ctid[:], src[4:8])
	b.LogLevelPos = nativeOrder.Uint32(src[8:12])
	b.LogLevel = int8(src[12])
	b.TraceStatus = int8(src[13])
	b.Pid = int32(nativeOrder.Uint32(src[14:18]))
	desc, n, err := getString(src[18:])
	if err != nil {
		return 0, err
	}
	b.Description = desc
	return 18 + n, nil
}

// UnregisterContext is the unregister-context body: L→D.
type UnregisterContext struct {
	Apid wire.Id4
	Ctid wire.Id4
	Pid  int32
}

func (b *UnregisterContext) Len() int { return 12 }

func (b *UnregisterContext) Encode(dst []byte) (int, error) {
	if len(dst) < 12 {
		return 0, ErrBufferFull
	}
	copy(dst[0:4], b.Apid[:])
	copy(dst[4:8], b.Ctid[:])
	nativeOrder.PutUint32(dst[8:12], uint32(b.Pid))
	return 12, nil
}

func (b *UnregisterContext) Decode(src []byte) (int, error) {
	if len(src) < 12 {
		return 0, ErrShortFrame
	}
	copy(b.Apid[:], src[0:4])
	copy(b.Ctid[:], src[4:8])
	b.Pid = int32(nativeOrder.Uint32(src[8:12]))
	return 12, nil
}

// AppLogLevelTS is the app-ll-ts body: L→D, sets defaults for every
// context of an app.
type AppLogLevelTS struct {
	Apid        wire.Id4
	LogLevel    int8
	TraceStatus int8
}

func (b *AppLogLevelTS) Len() int { return 6 }

func (b *AppLogLevelTS) Encode(dst []byte) (int, error) {
	if len(dst) < 6 {
		return 0, ErrBufferFull
	}
	copy(dst[0:4], b.Apid[:])
	dst[4] = byte(b.LogLevel)
	dst[5] = byte(b.TraceStatus)
	return 6, nil
}

func (b *AppLogLevelTS) Decode(src []byte) (int, error) {
	if len(src) < 6 {
		return 0, ErrShortFrame
	}
	copy(b.Apid[:], src[0:4])
	b.LogLevel = int8(src[4])
	b.TraceStatus = int8(src[5])
	return 6, nil
}

// Overflow is the overflow body: L→D, reports discarded count since last.
type Overflow struct {
	OverflowCounter uint32
	Apid            wire.Id4
}

func (b *Overflow) Len() int { return 8 }

func (b *Overflow) Encode(dst []byte) (int, error) {
	if len(dst) < 8 {
		return 0, ErrBufferFull
	}
	nativeOrder.PutUint32(dst[0:4], b.OverflowCounter)
	copy(dst[4:8], b.Apid[:])
	return 8, nil
}

func (b *Overflow) Decode(src []byte) (int, error) {
	if len(src) < 8 {
		return 0, ErrShortFrame
	}
	b.OverflowCounter = nativeOrder.Uint32(src[0:4])
	copy(b.Apid[:], src[4:8])
	return 8, nil
}

// LogLevel is the log-level body: D→L, updates the cache cell at a
// position.
type LogLevel struct {
	LogLevel    int8
	TraceStatus int8
	LogLevelPos uint32
}

func (b *LogLevel) Len() int { return 6 }

func (b *LogLevel) Encode(dst []byte) (int, error) {
	if len(dst) < 6 {
		return 0, ErrBufferFull
	}
	dst[0] = byte(b.LogLevel)
	dst[1] = byte(b.TraceStatus)
	nativeOrder.PutUint32(dst[2:6], b.LogLevelPos)
	return 6, nil
}

func (b *LogLevel) Decode(src []byte) (int, error) {
	if len(src) < 6 {
		return 0, ErrShortFrame
	}
	b.LogLevel = int8(src[0])
	b.TraceStatus = int8(src[1])
	b.LogLevelPos = nativeOrder.Uint32(src[2:6])
	return 6, nil
}

// Injection is the injection body: D→L, invokes a registered callback.
type Injection struct {
	LogLevelPos uint32
	ServiceID   uint32
	Payload     []byte
}

func (b *Injection) Len() int { return 12 + len(b.Payload) }

func (b *Injection) Encode(dst []byte) (int, error) {
	if len(dst) < b.Len() {
		return 0, ErrBufferFull
	}
	nativeOrder.PutUint32(dst[0:4], b.LogLevelPos)
	nativeOrder.PutUint32(dst[4:8], b.ServiceID)
	nativeOrder.PutUint32(dst[8:12], uint32(len(b.Payload)))
	copy(dst[12:12+len(b.Payload)], b.Payload)
	return b.Len(), nil
}

func (b *Injection) Decode(src []byte) (int, error) {
	if len(src) < 12 {
		return 0, ErrShortFrame
	}
	b.LogLevelPos = nativeOrder.Uint32(src[0:4])
	b.ServiceID = nativeOrder.Uint32(src[4:8])
	n := int(nativeOrder.Uint32(src[8:12]))
	if len(src) < 12+n {
		return 0, ErrShortFrame
	}
	b.Payload = append([]byte(nil), src[12:12+n]...)
	return 12 + n, nil
}

// LogState is the log-state body: D→L, informs the library whether an
// external client is listening.
type LogState struct {
	LogState uint8
}

func (b *LogState) Len() int { return 1 }

func (b *LogState) Encode(dst []byte) (int, error) {
	if len(dst) < 1 {
		return 0, ErrBufferFull
	}
	dst[0] = b.LogState
	return 1, nil
}

func (b *LogState) Decode(src []byte) (int, error) {
	if len(src) < 1 {
		return 0, ErrShortFrame
	}
	b.LogState = src[0]
	return 1, nil
}

// SetBlockMode is the set-block-mode body: D→L, switches process-wide
// policy unless FORCE_BLOCKING pinned it at init.
type SetBlockMode struct {
	BlockMode uint8
}

func (b *SetBlockMode) Len() int { return 1 }

func (b *SetBlockMode) Encode(dst []byte) (int, error) {
	if len(dst) < 1 {
		return 0, ErrBufferFull
	}
	dst[0] = b.BlockMode
	return 1, nil
}

func (b *SetBlockMode) Decode(src []byte) (int, error) {
	if len(src) < 1 {
		return 0, ErrShortFrame
	}
	b.BlockMode = src[0]
	return 1, nil
}

// Log is the log body: L→D, the full wire message (without a storage
// header) carried verbatim so the daemon can relay it unmodified.
type Log struct {
	Message []byte
}

func (b *Log) Len() int { return 4 + len(b.Message) }

func (b *Log) Encode(dst []byte) (int, error) {
	if len(dst) < b.Len() {
		return 0, ErrBufferFull
	}
	nativeOrder.PutUint32(dst[0:4], uint32(len(b.Message)))
	copy(dst[4:4+len(b.Message)], b.Message)
	return b.Len(), nil
}

func (b *Log) Decode(src []byte) (int, error) {
	if len(src) < 4 {
		return 0, ErrShortFrame
	}
	n := int(nativeOrder.Uint32(src[0:4]))
	if len(src) < 4+n {
		return 0, ErrShortFrame
	}
	b.Message = append([]byte(nil), src[4:4+n]...)
	return 4 + n, nil
}

// Marker is the marker body: L→D, a timestamped marker with no payload
// beyond the user header itself.
type Marker struct{}

func (b *Marker) Len() int                     { return 0 }
func (b *Marker) Encode([]byte) (int, error)   { return 0, nil }
func (b *Marker) Decode([]byte) (int, error)   { return 0, nil }
