package wire

import (
	"math"
	"unicode/utf8"
)

// Attr carries the optional VARI name/unit pair. Name is always present
// when Attr is non-nil; Unit only applies to numeric kinds (spec §4.1:
// "string/bool/raw carry only name").
type Attr struct {
	Name string
	Unit string
}

func tyleForWidth(width int) (uint32, int, error) {
	switch width {
	case 8:
		return Tyle8, 1, nil
	case 16:
		return Tyle16, 2, nil
	case 32:
		return Tyle32, 4, nil
	case 64:
		return Tyle64, 8, nil
	case 128:
		return Tyle128, 16, nil
	default:
		return 0, 0, ErrWrongParameter
	}
}

func widthForTyle(tyle uint32) int {
	switch tyle {
	case Tyle8:
		return 1
	case Tyle16:
		return 2
	case Tyle32:
		return 4
	case Tyle64:
		return 8
	case Tyle128:
		return 16
	default:
		return 0
	}
}

// encodedAttrLen returns how many bytes the name (and, if withUnit, unit)
// attribute strings occupy when VARI is set.
func encodedAttrLen(attr *Attr, withUnit bool) int {
	if attr == nil {
		return 0
	}
	n := 2 + len(attr.Name)
	if withUnit {
		n += 2 + len(attr.Unit)
	}
	return n
}

func putAttrString(htyp uint8, dst []byte, s string) int {
	putUint16(htyp, dst[0:2], uint16(len(s)))
	copy(dst[2:2+len(s)], s)
	return 2 + len(s)
}

func getAttrString(htyp uint8, src []byte) (string, int, error) {
	if len(src) < 2 {
		return "", 0, ErrContentInvalid
	}
	n := int(getUint16(htyp, src[0:2]))
	if len(src) < 2+n {
		return "", 0, ErrContentInvalid
	}
	return string(src[2 : 2+n]), 2 + n, nil
}

func writeAttrs(htyp uint8, dst []byte, attr *Attr, withUnit bool) (int, error) {
	if attr == nil {
		return 0, nil
	}
	need := encodedAttrLen(attr, withUnit)
	if len(dst) < need {
		return 0, ErrBufferFull
	}
	off := putAttrString(htyp, dst, attr.Name)
	if withUnit {
		off += putAttrString(htyp, dst[off:], attr.Unit)
	}
	return off, nil
}

// EncodeBool appends a BOOL argument. VARI, when attr is non-nil, carries
// only the name (no unit).
func EncodeBool(dst []byte, htyp uint8, v bool, attr *Attr) (int, error) {
	typeInfo := uint32(Tyle8) | TypeInfoBool
	if attr != nil {
		typeInfo |= TypeInfoVari
	}
	need := 4 + encodedAttrLen(attr, false) + 1
	if len(dst) < need {
		return 0, ErrBufferFull
	}
	putUint32(htyp, dst[0:4], typeInfo)
	off := 4
	n, err := writeAttrs(htyp, dst[off:], attr, false)
	if err != nil {
		return 0, err
	}
	off += n
	if v {
		dst[off] = 1
	} else {
		dst[off] = 0
	}
	off++
	return off, nil
}

// EncodeSint appends a signed-integer argument of the given width (one of
// 8/16/32/64/128 bits).
func EncodeSint(dst []byte, htyp uint8, width int, v int64, attr *Attr) (int, error) {
	return encodeIntKind(dst, htyp, width, uint64(v), TypeInfoSint, 0, attr)
}

// EncodeUint appends an unsigned-integer argument. scod selects plain
// decimal (ScodASCII), hex (ScodHex), or binary (ScodBin) string coding.
func EncodeUint(dst []byte, htyp uint8, width int, v uint64, scod uint32, attr *Attr) (int, error) {
	return encodeIntKind(dst, htyp, width, v, TypeInfoUint, scod, attr)
}

func encodeIntKind(dst []byte, htyp uint8, width int, v uint64, kind uint32, scod uint32, attr *Attr) (int, error) {
	tyle, nbytes, err := tyleForWidth(width)
	if err != nil {
		return 0, err
	}
	typeInfo := tyle | kind | MakeTypeInfoScod(scod)
	if attr != nil {
		typeInfo |= TypeInfoVari
	}
	need := 4 + encodedAttrLen(attr, true) + nbytes
	if len(dst) < need {
		return 0, ErrBufferFull
	}
	putUint32(htyp, dst[0:4], typeInfo)
	off := 4
	n, err := writeAttrs(htyp, dst[off:], attr, true)
	if err != nil {
		return 0, err
	}
	off += n
	if err := putIntWidth(htyp, dst[off:off+nbytes], v, nbytes); err != nil {
		return 0, err
	}
	off += nbytes
	return off, nil
}

func putIntWidth(htyp uint8, dst []byte, v uint64, nbytes int) error {
	switch nbytes {
	case 1:
		dst[0] = byte(v)
	case 2:
		putUint16(htyp, dst, uint16(v))
	case 4:
		putUint32(htyp, dst, uint32(v))
	case 8:
		putUint64(htyp, dst, v)
	case 16:
		// 128-bit values are carried as two 64-bit halves in the
		// selected byte order; the low half occupies the
		// lower-addressed 8 bytes regardless of MSBF.
		putUint64(htyp, dst[0:8], v)
		putUint64(htyp, dst[8:16], 0)
	default:
		return ErrWrongParameter
	}
	return nil
}

func getIntWidth(htyp uint8, src []byte, nbytes int) (uint64, error) {
	if len(src) < nbytes {
		return 0, ErrContentInvalid
	}
	switch nbytes {
	case 1:
		return uint64(src[0]), nil
	case 2:
		return uint64(getUint16(htyp, src)), nil
	case 4:
		return uint64(getUint32(htyp, src)), nil
	case 8:
		return getUint64(htyp, src), nil
	case 16:
		return getUint64(htyp, src[0:8]), nil
	default:
		return 0, ErrContentInvalid
	}
}

// EncodeFloat appends a floating-point argument (width 32 or 64).
func EncodeFloat(dst []byte, htyp uint8, width int, v float64, attr *Attr) (int, error) {
	tyle, nbytes, err := tyleForWidth(width)
	if err != nil || (width != 32 && width != 64) {
		return 0, ErrWrongParameter
	}
	typeInfo := tyle | TypeInfoFloa
	if attr != nil {
		typeInfo |= TypeInfoVari
	}
	need := 4 + encodedAttrLen(attr, true) + nbytes
	if len(dst) < need {
		return 0, ErrBufferFull
	}
	putUint32(htyp, dst[0:4], typeInfo)
	off := 4
	n, err := writeAttrs(htyp, dst[off:], attr, true)
	if err != nil {
		return 0, err
	}
	off += n
	if width == 32 {
		putUint32(htyp, dst[off:off+4], math.Float32bits(float32(v)))
	} else {
		putUint64(htyp, dst[off:off+8], math.Float64bits(v))
	}
	off += nbytes
	return off, nil
}

// EncodeRaw appends a length-prefixed raw byte argument.
func EncodeRaw(dst []byte, htyp uint8, v []byte, attr *Attr) (int, error) {
	if len(v) > MaxStandardHeaderLen {
		return 0, ErrWrongParameter
	}
	typeInfo := uint32(TypeInfoRawd)
	if attr != nil {
		typeInfo |= TypeInfoVari
	}
	need := 4 + encodedAttrLen(attr, false) + 2 + len(v)
	if len(dst) < need {
		return 0, ErrBufferFull
	}
	putUint32(htyp, dst[0:4], typeInfo)
	off := 4
	n, err := writeAttrs(htyp, dst[off:], attr, false)
	if err != nil {
		return 0, err
	}
	off += n
	putUint16(htyp, dst[off:off+2], uint16(len(v)))
	off += 2
	copy(dst[off:off+len(v)], v)
	off += len(v)
	return off, nil
}

// StringEncoding selects the NUL-terminated string's character coding.
type StringEncoding uint32

const (
	EncodingASCII StringEncoding = ScodASCII
	EncodingUTF8  StringEncoding = ScodUTF8
)

// EncodeString appends a length-prefixed, NUL-terminated string argument.
// If the encoded form (payload only, excluding the type_info/attr prefix)
// would not fit in remaining, it is truncated per spec §4.1: the longest
// UTF-8-safe prefix is kept, followed by TruncationTail, under the one
// length prefix, never splitting a multi-byte rune.
func EncodeString(dst []byte, htyp uint8, s string, coding StringEncoding, attr *Attr) (int, error) {
	typeInfo := uint32(TypeInfoStrg) | MakeTypeInfoScod(uint32(coding))
	if attr != nil {
		typeInfo |= TypeInfoVari
	}
	prefixLen := 4 + encodedAttrLen(attr, false)
	payload := s + "\x00"
	if prefixLen+2+len(payload) > len(dst) {
		var err error
		payload, err = truncatePayload(dst, prefixLen, payload)
		if err != nil {
			return 0, err
		}
	}
	if prefixLen+2+len(payload) > len(dst) {
		return 0, ErrBufferFull
	}
	putUint32(htyp, dst[0:4], typeInfo)
	off := 4
	n, err := writeAttrs(htyp, dst[off:], attr, false)
	if err != nil {
		return 0, err
	}
	off += n
	putUint16(htyp, dst[off:off+2], uint16(len(payload)))
	off += 2
	copy(dst[off:off+len(payload)], payload)
	off += len(payload)
	return off, nil
}

// truncatePayload computes the truncated tail form: the longest
// UTF-8-safe prefix of payload (minus its trailing NUL) that, with
// TruncationTail appended, still fits in dst after prefixLen and the
// 2-byte length field.
func truncatePayload(dst []byte, prefixLen int, payload string) (string, error) {
	avail := len(dst) - prefixLen - 2
	if avail < len(TruncationTail) {
		return "", ErrBufferFull
	}
	budget := avail - len(TruncationTail)
	body := payload
	if len(body) > 0 && body[len(body)-1] == 0 {
		body = body[:len(body)-1]
	}
	if len(body) > budget {
		cut := budget
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}
	return body + TruncationTail, nil
}

// DecodedArgument is the fully parsed form of one wire argument, used by
// both the decoder and its tests.
type DecodedArgument struct {
	TypeInfo uint32
	Kind     string // "bool", "sint", "uint", "float", "string", "raw"
	Width    int
	Scod     uint32
	Attr     *Attr

	Bool   bool
	Int    int64
	Uint   uint64
	Float  float64
	String string
	Raw    []byte
}

// DecodeArgument parses one verbose-mode argument (type_info-prefixed)
// from src, returning the decoded value and the number of bytes consumed.
func DecodeArgument(src []byte, htyp uint8) (*DecodedArgument, int, error) {
	if len(src) < 4 {
		return nil, 0, ErrContentInvalid
	}
	typeInfo := getUint32(htyp, src[0:4])
	off := 4
	hasVari := typeInfo&TypeInfoVari != 0
	isNumeric := typeInfo&(TypeInfoSint|TypeInfoUint|TypeInfoFloa) != 0

	arg := &DecodedArgument{TypeInfo: typeInfo, Scod: TypeInfoScod(typeInfo)}

	if hasVari {
		name, n, err := getAttrString(htyp, src[off:])
		if err != nil {
			return nil, 0, err
		}
		off += n
		attr := &Attr{Name: name}
		if isNumeric {
			unit, n2, err := getAttrString(htyp, src[off:])
			if err != nil {
				return nil, 0, err
			}
			off += n2
			attr.Unit = unit
		}
		arg.Attr = attr
	}

	width := widthForTyle(typeInfo & TypeInfoTyleMask)
	arg.Width = width * 8

	switch {
	case typeInfo&TypeInfoBool != 0:
		if len(src) < off+1 {
			return nil, 0, ErrContentInvalid
		}
		arg.Kind = "bool"
		arg.Bool = src[off] != 0
		off++
	case typeInfo&TypeInfoSint != 0:
		v, err := getIntWidth(htyp, src[off:], width)
		if err != nil {
			return nil, 0, err
		}
		arg.Kind = "sint"
		arg.Int = signExtend(v, width)
		off += width
	case typeInfo&TypeInfoUint != 0:
		v, err := getIntWidth(htyp, src[off:], width)
		if err != nil {
			return nil, 0, err
		}
		arg.Kind = "uint"
		arg.Uint = v
		off += width
	case typeInfo&TypeInfoFloa != 0:
		v, err := getIntWidth(htyp, src[off:], width)
		if err != nil {
			return nil, 0, err
		}
		arg.Kind = "float"
		if width == 4 {
			arg.Float = float64(math.Float32frombits(uint32(v)))
		} else {
			arg.Float = math.Float64frombits(v)
		}
		off += width
	case typeInfo&TypeInfoStrg != 0:
		if len(src) < off+2 {
			return nil, 0, ErrContentInvalid
		}
		n := int(getUint16(htyp, src[off:off+2]))
		off += 2
		if len(src) < off+n {
			return nil, 0, ErrContentInvalid
		}
		arg.Kind = "string"
		body := src[off : off+n]
		if n > 0 && body[n-1] == 0 {
			body = body[:n-1]
		}
		arg.String = string(body)
		off += n
	case typeInfo&TypeInfoRawd != 0:
		if len(src) < off+2 {
			return nil, 0, ErrContentInvalid
		}
		n := int(getUint16(htyp, src[off:off+2]))
		off += 2
		if len(src) < off+n {
			return nil, 0, ErrContentInvalid
		}
		arg.Kind = "raw"
		arg.Raw = append([]byte(nil), src[off:off+n]...)
		off += n
	default:
		return nil, 0, ErrContentInvalid
	}

	return arg, off, nil
}

func signExtend(v uint64, width int) int64 {
	switch width {
	case 1:
		return int64(int8(v))
	case 2:
		return int64(int16(v))
	case 4:
		return int64(int32(v))
	default:
		return int64(v)
	}
}
