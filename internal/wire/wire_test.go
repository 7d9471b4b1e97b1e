package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMakeHtypRoundTrip(t *testing.T) {
	htyp := MakeHtyp(true, true, true, true, true, ProtocolVersion1)
	require.NotZero(t, htyp&HtypUEH)
	require.NotZero(t, htyp&HtypMSBF)
	require.NotZero(t, htyp&HtypWEID)
	require.NotZero(t, htyp&HtypWSID)
	require.NotZero(t, htyp&HtypWTMS)
	require.Equal(t, uint8(ProtocolVersion1), HtypVersion(htyp))
}

func TestStorageHeaderRoundTrip(t *testing.T) {
	var h StorageHeader
	now := time.Unix(1700000000, 123456000)
	h.Set(NewId4("ECU1"), now)

	buf := make([]byte, StorageHeaderLen)
	require.NoError(t, h.Encode(buf))
	require.True(t, CheckStorageHeader(buf))

	var got StorageHeader
	require.NoError(t, got.Decode(buf))
	require.Equal(t, h, got)
}

func TestStorageHeaderBufferFull(t *testing.T) {
	var h StorageHeader
	require.ErrorIs(t, h.Encode(make([]byte, 4)), ErrBufferFull)
}

func TestStandardHeaderLenIsBigEndianRegardlessOfMSBF(t *testing.T) {
	for _, msbf := range []bool{false, true} {
		htyp := MakeHtyp(false, msbf, false, false, false, ProtocolVersion1)
		std := StandardHeader{Htyp: htyp, Mcnt: 7, Len: 0x0102}
		buf := make([]byte, StandardHeaderLen)
		require.NoError(t, std.Encode(buf))
		require.Equal(t, byte(0x01), buf[2])
		require.Equal(t, byte(0x02), buf[3])
	}
}

func TestExtrasAreAlwaysBigEndian(t *testing.T) {
	htyp := MakeHtyp(false, false, true, true, true, ProtocolVersion1) // MSBF off
	e := Extras{Ecu: NewId4("ECU1"), Seid: 0x00000001, Tmsp: 0x00000002}
	buf := make([]byte, ExtrasLen(htyp))
	n, err := e.Encode(htyp, buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)

	// seid immediately follows the 4-byte ecu id; big-endian means the
	// 0x01 value lands in the last byte.
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x01}, buf[4:8])
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x02}, buf[8:12])

	var got Extras
	n2, err := got.Decode(htyp, buf)
	require.NoError(t, err)
	require.Equal(t, n, n2)
	require.Equal(t, e, got)
}

func TestExtendedHeaderRoundTrip(t *testing.T) {
	msin := MakeMsin(MsgTypeLog, uint8(LogLevelWarn), true)
	require.True(t, MsinVerboseBit(msin))
	require.Equal(t, MsgTypeLog, MsinMsgType(msin))
	require.Equal(t, uint8(LogLevelWarn), MsinTypeInfo(msin))

	h := ExtendedHeader{Msin: msin, Noar: 3, Apid: NewId4("APP1"), Ctid: NewId4("CTX1")}
	buf := make([]byte, ExtendedHeaderLen)
	require.NoError(t, h.Encode(buf))

	var got ExtendedHeader
	require.NoError(t, got.Decode(buf))
	require.Equal(t, h, got)
}

// scenario S1 from the worked example: htyp=0x3D, msin=0x41, argument
// type_info=0x23000000 on a little-endian host carrying a 32-bit signed
// integer value.
func TestScenarioS1ArgumentDecode(t *testing.T) {
	htyp := uint8(0x3D)
	require.True(t, htyp&HtypMSBF == 0)
	require.True(t, htyp&HtypUEH != 0)
	require.True(t, htyp&HtypWEID != 0)
	require.True(t, htyp&HtypWSID != 0)
	require.True(t, htyp&HtypWTMS != 0)

	msin := uint8(0x41)
	require.True(t, MsinVerboseBit(msin))
	require.Equal(t, MsgTypeLog, MsinMsgType(msin))

	buf := make([]byte, 64)
	n, err := EncodeSint(buf, htyp, 32, -1, nil)
	require.NoError(t, err)

	arg, consumed, err := DecodeArgument(buf[:n], htyp)
	require.NoError(t, err)
	require.Equal(t, n, consumed)
	require.Equal(t, "sint", arg.Kind)
	require.EqualValues(t, -1, arg.Int)
}

func TestBoolArgumentRoundTrip(t *testing.T) {
	for _, htyp := range []uint8{0x00, HtypMSBF} {
		buf := make([]byte, 16)
		n, err := EncodeBool(buf, htyp, true, nil)
		require.NoError(t, err)

		arg, consumed, err := DecodeArgument(buf[:n], htyp)
		require.NoError(t, err)
		require.Equal(t, n, consumed)
		require.Equal(t, "bool", arg.Kind)
		require.True(t, arg.Bool)
	}
}

func TestUintArgumentWithVariAttrRoundTrip(t *testing.T) {
	htyp := uint8(HtypMSBF)
	buf := make([]byte, 64)
	attr := &Attr{Name: "speed", Unit: "km/h"}
	n, err := EncodeUint(buf, htyp, 16, 120, ScodASCII, attr)
	require.NoError(t, err)

	arg, consumed, err := DecodeArgument(buf[:n], htyp)
	require.NoError(t, err)
	require.Equal(t, n, consumed)
	require.Equal(t, "uint", arg.Kind)
	require.EqualValues(t, 120, arg.Uint)
	require.NotNil(t, arg.Attr)
	require.Equal(t, "speed", arg.Attr.Name)
	require.Equal(t, "km/h", arg.Attr.Unit)
}

func TestFloatArgumentRoundTrip(t *testing.T) {
	for _, width := range []int{32, 64} {
		htyp := uint8(0)
		buf := make([]byte, 32)
		n, err := EncodeFloat(buf, htyp, width, 3.5, nil)
		require.NoError(t, err)

		arg, consumed, err := DecodeArgument(buf[:n], htyp)
		require.NoError(t, err)
		require.Equal(t, n, consumed)
		require.Equal(t, "float", arg.Kind)
		require.InDelta(t, 3.5, arg.Float, 0.0001)
	}
}

func TestStringArgumentRoundTrip(t *testing.T) {
	htyp := uint8(HtypMSBF)
	buf := make([]byte, 64)
	n, err := EncodeString(buf, htyp, "hello", EncodingUTF8, nil)
	require.NoError(t, err)

	arg, consumed, err := DecodeArgument(buf[:n], htyp)
	require.NoError(t, err)
	require.Equal(t, n, consumed)
	require.Equal(t, "string", arg.Kind)
	require.Equal(t, "hello", arg.String)
}

func TestStringArgumentTruncation(t *testing.T) {
	htyp := uint8(0)
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'a'
	}
	buf := make([]byte, 64)
	n, err := EncodeString(buf, htyp, string(long), EncodingASCII, nil)
	require.NoError(t, err)

	arg, consumed, err := DecodeArgument(buf[:n], htyp)
	require.NoError(t, err)
	require.Equal(t, n, consumed)
	require.Contains(t, arg.String, "truncated")
}

func TestStringArgumentTruncationPreservesUTF8Boundary(t *testing.T) {
	htyp := uint8(0)
	// A string made entirely of 3-byte runes; the truncation boundary
	// must never land mid-rune.
	long := ""
	for i := 0; i < 20; i++ {
		long += "中" // a CJK rune, 3 bytes in UTF-8
	}
	buf := make([]byte, 48)
	n, err := EncodeString(buf, htyp, long, EncodingUTF8, nil)
	require.NoError(t, err)

	arg, _, err := DecodeArgument(buf[:n], htyp)
	require.NoError(t, err)
	require.True(t, len(arg.String) == 0 || validUTF8Tail(arg.String))
}

func validUTF8Tail(s string) bool {
	for _, r := range s {
		if r == 0xFFFD {
			return false
		}
	}
	return true
}

func TestRawArgumentRoundTrip(t *testing.T) {
	htyp := uint8(HtypMSBF)
	buf := make([]byte, 32)
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	n, err := EncodeRaw(buf, htyp, payload, nil)
	require.NoError(t, err)

	arg, consumed, err := DecodeArgument(buf[:n], htyp)
	require.NoError(t, err)
	require.Equal(t, n, consumed)
	require.Equal(t, "raw", arg.Kind)
	require.Equal(t, payload, arg.Raw)
}

func TestEncodeBufferTooSmall(t *testing.T) {
	buf := make([]byte, 2)
	_, err := EncodeBool(buf, 0, true, nil)
	require.ErrorIs(t, err, ErrBufferFull)
}

func TestFullMessageRoundTrip(t *testing.T) {
	htyp := MakeHtyp(true, true, true, true, true, ProtocolVersion1)
	h := &Header{
		Htyp: htyp,
		Mcnt: 1,
		Extras: Extras{
			Ecu:  NewId4("ECU1"),
			Seid: 42,
			Tmsp: 1000,
		},
		Msin: MakeMsin(MsgTypeLog, uint8(LogLevelInfo), true),
		Noar: 2,
		Apid: NewId4("APP1"),
		Ctid: NewId4("CTX1"),
	}

	buf := make([]byte, 256)
	n, err := EncodeHeader(buf, h)
	require.NoError(t, err)
	require.Equal(t, HeaderLen(htyp), n)

	off := n
	n1, err := EncodeUint(buf[off:], htyp, 32, 7, ScodASCII, nil)
	require.NoError(t, err)
	off += n1
	n2, err := EncodeString(buf[off:], htyp, "hi", EncodingUTF8, nil)
	require.NoError(t, err)
	off += n2

	require.NoError(t, PatchLen(buf, uint16(off)))

	gotHeader, consumed, err := DecodeHeader(buf[:off])
	require.NoError(t, err)
	require.Equal(t, h.Htyp, gotHeader.Htyp)
	require.Equal(t, h.Extras, gotHeader.Extras)
	require.Equal(t, h.Msin, gotHeader.Msin)
	require.Equal(t, h.Apid, gotHeader.Apid)
	require.Equal(t, h.Ctid, gotHeader.Ctid)

	args, err := DecodeArguments(buf[consumed:off], htyp, h.Noar)
	require.NoError(t, err)
	require.Len(t, args, 2)
	require.Equal(t, "uint", args[0].Kind)
	require.EqualValues(t, 7, args[0].Uint)
	require.Equal(t, "string", args[1].Kind)
	require.Equal(t, "hi", args[1].String)

	var std StandardHeader
	require.NoError(t, std.Decode(buf[:off]))
	require.Equal(t, uint16(off), std.Len)
}

func TestNonVerboseMessageID(t *testing.T) {
	htyp := uint8(HtypMSBF)
	buf := make([]byte, 4)
	require.NoError(t, EncodeMessageID(buf, htyp, 0x01020304))
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, buf)

	id, err := DecodeMessageID(buf, htyp)
	require.NoError(t, err)
	require.EqualValues(t, 0x01020304, id)
}

func TestId4TruncatesAndPads(t *testing.T) {
	id := NewId4("TOOLONG")
	require.Equal(t, "TOOL", id.String())

	short := NewId4("AB")
	require.Equal(t, "AB", short.String())
	require.False(t, short.IsZero())

	var zero Id4
	require.True(t, zero.IsZero())
}
