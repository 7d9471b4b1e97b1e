// Package wire implements the MCT binary wire format: storage, standard
// and extended headers, and the typed argument encoding used by both the
// verbose and non-verbose message payloads.
package wire

// Standard header htyp bits.
const (
	HtypUEH  = 1 << 0 // use extended header
	HtypMSBF = 1 << 1 // payload/header multi-byte fields are big-endian
	HtypWEID = 1 << 2 // with ECU id
	HtypWSID = 1 << 3 // with session id
	HtypWTMS = 1 << 4 // with timestamp
	// bits 5-7 carry the 3-bit protocol version number
	htypVersionShift = 5
	htypVersionMask  = 0x7
)

// ProtocolVersion1 is the only protocol version this codec emits.
const ProtocolVersion1 = 1

// HtypVersion returns the 3-bit version field encoded in htyp.
func HtypVersion(htyp uint8) uint8 {
	return (htyp >> htypVersionShift) & htypVersionMask
}

// MakeHtyp assembles an htyp byte from its component flags and version.
func MakeHtyp(ueh, msbf, weid, wsid, wtms bool, version uint8) uint8 {
	var h uint8
	if ueh {
		h |= HtypUEH
	}
	if msbf {
		h |= HtypMSBF
	}
	if weid {
		h |= HtypWEID
	}
	if wsid {
		h |= HtypWSID
	}
	if wtms {
		h |= HtypWTMS
	}
	h |= (version & htypVersionMask) << htypVersionShift
	return h
}

// Extended-header msin byte: message type (3 bits) << 1, message type
// info (4 bits) << 4, verbose bit in bit 0.
const (
	MsinVerbose = 1 << 0

	msinTypeShift     = 1
	msinTypeMask      = 0x7
	msinTypeInfoShift = 4
	msinTypeInfoMask  = 0xF
)

// Message type (3-bit field of msin).
const (
	MsgTypeLog     uint8 = 0
	MsgTypeAppTrace uint8 = 1
	MsgTypeNwTrace uint8 = 2
	MsgTypeControl uint8 = 3
)

// Log levels (4-bit message-type-info field of msin when MsgTypeLog).
// Off is only valid as a context's configured level, never as a
// message's own log level.
const (
	LogLevelDefault  int8 = -1
	LogLevelOff      int8 = 0
	LogLevelFatal    int8 = 1
	LogLevelError    int8 = 2
	LogLevelWarn     int8 = 3
	LogLevelInfo     int8 = 4
	LogLevelDebug    int8 = 5
	LogLevelVerbose  int8 = 6
)

// Trace status.
const (
	TraceStatusDefault int8 = -1
	TraceStatusOff     int8 = 0
	TraceStatusOn      int8 = 1
)

// MakeMsin assembles the extended header's message-info byte.
func MakeMsin(msgType uint8, typeInfo uint8, verbose bool) uint8 {
	m := (msgType & msinTypeMask) << msinTypeShift
	m |= (typeInfo & msinTypeInfoMask) << msinTypeInfoShift
	if verbose {
		m |= MsinVerbose
	}
	return m
}

// MsinVerboseBit reports whether the verbose bit is set.
func MsinVerboseBit(msin uint8) bool {
	return msin&MsinVerbose != 0
}

// MsinMsgType extracts the 3-bit message type field.
func MsinMsgType(msin uint8) uint8 {
	return (msin >> msinTypeShift) & msinTypeMask
}

// MsinTypeInfo extracts the 4-bit message-type-info field.
func MsinTypeInfo(msin uint8) uint8 {
	return (msin >> msinTypeInfoShift) & msinTypeInfoMask
}

// Argument type_info bit layout (32-bit, endian selected by htyp MSBF).
const (
	TypeInfoTyleMask = 0xF // bits 0-3

	TyleNone = 0
	Tyle8    = 1
	Tyle16   = 2
	Tyle32   = 3
	Tyle64   = 4
	Tyle128  = 5

	TypeInfoBool = 1 << 4
	TypeInfoSint = 1 << 5
	TypeInfoUint = 1 << 6
	TypeInfoFloa = 1 << 7
	TypeInfoAray = 1 << 8
	TypeInfoStrg = 1 << 9
	TypeInfoRawd = 1 << 10
	TypeInfoVari = 1 << 11
	TypeInfoFixp = 1 << 12
	TypeInfoTrai = 1 << 13
	TypeInfoStru = 1 << 14

	typeInfoScodShift = 15
	typeInfoScodMask  = 0x7
)

// String coding (SCOD) values.
const (
	ScodASCII = 0
	ScodUTF8  = 1
	ScodHex   = 2
	ScodBin   = 3
)

// MakeTypeInfoScod packs the 3-bit SCOD field into a type_info value.
func MakeTypeInfoScod(scod uint32) uint32 {
	return (scod & typeInfoScodMask) << typeInfoScodShift
}

// TypeInfoScod extracts the SCOD field from a type_info value.
func TypeInfoScod(typeInfo uint32) uint32 {
	return (typeInfo >> typeInfoScodShift) & typeInfoScodMask
}

// Storage header pattern, only ever written/read for on-disk persistence.
var StorageHeaderPattern = [4]byte{'D', 'L', 'T', 0x01}

// Control frame pattern (library<->daemon IPC, distinct from the storage
// header pattern above).
var ControlHeaderPattern = [4]byte{'D', 'U', 'H', 0x01}

// Serial resync pattern, prepended per-send when serial framing is enabled.
var SerialHeaderPattern = [4]byte{'D', 'L', 'S', 0x01}

// MaxStandardHeaderLen is the largest value the 16-bit big-endian `len`
// field may carry; codecs must refuse anything larger.
const MaxStandardHeaderLen = 65535

// TruncationTail is appended to a string argument that would otherwise
// overflow the staging buffer.
const TruncationTail = "... <<Message truncated, too long>>\x00"
