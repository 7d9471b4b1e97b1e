package wire

// Header bundles the per-message header fields the builder layer
// populates before encoding (spec §4.1 steps 1-5).
type Header struct {
	Htyp    uint8
	Mcnt    uint8
	Extras  Extras
	Msin    uint8 // only meaningful when Htyp&HtypUEH is set
	Noar    uint8
	Apid    Id4
	Ctid    Id4
}

// EncodeHeader writes the standard header, optional extras, and optional
// extended header into dst, in that order, leaving the Len field at zero.
// It returns the number of bytes written; the caller is expected to
// append the payload and then call PatchLen once the final size is known
// (spec §4.1 step 6).
func EncodeHeader(dst []byte, h *Header) (int, error) {
	if len(dst) < StandardHeaderLen {
		return 0, ErrBufferFull
	}
	std := StandardHeader{Htyp: h.Htyp, Mcnt: h.Mcnt, Len: 0}
	if err := std.Encode(dst); err != nil {
		return 0, err
	}
	off := StandardHeaderLen

	n, err := h.Extras.Encode(h.Htyp, dst[off:])
	if err != nil {
		return 0, err
	}
	off += n

	if h.Htyp&HtypUEH != 0 {
		eh := ExtendedHeader{Msin: h.Msin, Noar: h.Noar, Apid: h.Apid, Ctid: h.Ctid}
		if err := eh.Encode(dst[off:]); err != nil {
			return 0, err
		}
		off += ExtendedHeaderLen
	}

	return off, nil
}

// HeaderLen returns the number of header bytes EncodeHeader will write for
// the given htyp, without touching any buffer.
func HeaderLen(htyp uint8) int {
	n := StandardHeaderLen + ExtrasLen(htyp)
	if htyp&HtypUEH != 0 {
		n += ExtendedHeaderLen
	}
	return n
}

// DecodeHeader parses the standard header, optional extras, and optional
// extended header from src, returning the populated Header and the number
// of bytes consumed.
func DecodeHeader(src []byte) (*Header, int, error) {
	var std StandardHeader
	if err := std.Decode(src); err != nil {
		return nil, 0, err
	}
	off := StandardHeaderLen

	h := &Header{Htyp: std.Htyp, Mcnt: std.Mcnt}

	n, err := h.Extras.Decode(std.Htyp, src[off:])
	if err != nil {
		return nil, 0, err
	}
	off += n

	if std.Htyp&HtypUEH != 0 {
		var eh ExtendedHeader
		if err := eh.Decode(src[off:]); err != nil {
			return nil, 0, err
		}
		h.Msin, h.Noar, h.Apid, h.Ctid = eh.Msin, eh.Noar, eh.Apid, eh.Ctid
		off += ExtendedHeaderLen
	}

	return h, off, nil
}

// PatchNoar overwrites the extended header's argument-count byte in
// place, a no-op if htyp has no extended header. Builders call this once
// every argument has been appended, since the count is not known when
// the header is first written.
func PatchNoar(dst []byte, htyp uint8, noar uint8) error {
	if htyp&HtypUEH == 0 {
		return nil
	}
	off := StandardHeaderLen + ExtrasLen(htyp)
	if len(dst) < off+2 {
		return ErrBufferFull
	}
	dst[off+1] = noar
	return nil
}

// MessageIDLen is the size of the non-verbose message id prefix.
const MessageIDLen = 4

// EncodeMessageID writes the 32-bit non-verbose message id, honoring
// htyp's MSBF bit like every other argument-layer field (spec §4.1,
// non-verbose mode).
func EncodeMessageID(dst []byte, htyp uint8, id uint32) error {
	if len(dst) < MessageIDLen {
		return ErrBufferFull
	}
	putUint32(htyp, dst[0:4], id)
	return nil
}

// DecodeMessageID reads the 32-bit non-verbose message id.
func DecodeMessageID(src []byte, htyp uint8) (uint32, error) {
	if len(src) < MessageIDLen {
		return 0, ErrContentInvalid
	}
	return getUint32(htyp, src[0:4]), nil
}

// DecodeArguments parses noar successive verbose arguments from src.
func DecodeArguments(src []byte, htyp uint8, noar uint8) ([]*DecodedArgument, error) {
	args := make([]*DecodedArgument, 0, noar)
	off := 0
	for i := 0; i < int(noar); i++ {
		arg, n, err := DecodeArgument(src[off:], htyp)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		off += n
	}
	return args, nil
}
