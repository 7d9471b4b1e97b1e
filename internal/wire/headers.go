package wire

import (
	"encoding/binary"
	"time"
)

// StorageHeaderLen is the fixed on-disk-only header size.
const StorageHeaderLen = 16

// StorageHeader is prepended to a message only when persisting to an MCT
// file; it never appears on the wire to a daemon. All fields are always
// little-endian, independent of htyp's MSBF bit (spec §4.1, §6).
type StorageHeader struct {
	Seconds      uint32
	Microseconds int32
	Ecu          Id4
}

// Set fills the header from the current wall-clock time, as
// set_storage_header(ecu) does in the original implementation.
func (h *StorageHeader) Set(ecu Id4, now time.Time) {
	h.Seconds = uint32(now.Unix())
	h.Microseconds = int32(now.Nanosecond() / 1000)
	h.Ecu = ecu
}

// Encode writes the 16-byte storage header to dst.
func (h *StorageHeader) Encode(dst []byte) error {
	if len(dst) < StorageHeaderLen {
		return ErrBufferFull
	}
	copy(dst[0:4], StorageHeaderPattern[:])
	binary.LittleEndian.PutUint32(dst[4:8], h.Seconds)
	binary.LittleEndian.PutUint32(dst[8:12], uint32(h.Microseconds))
	copy(dst[12:16], h.Ecu[:])
	return nil
}

// Decode parses a 16-byte storage header from src.
func (h *StorageHeader) Decode(src []byte) error {
	if len(src) < StorageHeaderLen {
		return ErrContentInvalid
	}
	if !CheckStorageHeader(src) {
		return ErrContentInvalid
	}
	h.Seconds = binary.LittleEndian.Uint32(src[4:8])
	h.Microseconds = int32(binary.LittleEndian.Uint32(src[8:12]))
	copy(h.Ecu[:], src[12:16])
	return nil
}

// CheckStorageHeader reports whether src begins with the storage header
// pattern "DLT\x01", mirroring check_storage_header.
func CheckStorageHeader(src []byte) bool {
	return len(src) >= 4 &&
		src[0] == StorageHeaderPattern[0] && src[1] == StorageHeaderPattern[1] &&
		src[2] == StorageHeaderPattern[2] && src[3] == StorageHeaderPattern[3]
}

// StandardHeaderLen is the fixed-size portion of the standard header.
const StandardHeaderLen = 4

// StandardHeader is the mandatory 4-byte header of every wire message.
type StandardHeader struct {
	Htyp uint8
	Mcnt uint8
	Len  uint16 // total length after the storage header; always big-endian on the wire
}

// Encode writes the 4-byte standard header. The Len field must already
// reflect the final message size; callers typically patch it in after
// the rest of the message has been written (spec §4.1 step 6).
func (h *StandardHeader) Encode(dst []byte) error {
	if len(dst) < StandardHeaderLen {
		return ErrBufferFull
	}
	dst[0] = h.Htyp
	dst[1] = h.Mcnt
	binary.BigEndian.PutUint16(dst[2:4], h.Len)
	return nil
}

// Decode parses a 4-byte standard header from src.
func (h *StandardHeader) Decode(src []byte) error {
	if len(src) < StandardHeaderLen {
		return ErrContentInvalid
	}
	h.Htyp = src[0]
	h.Mcnt = src[1]
	h.Len = binary.BigEndian.Uint16(src[2:4])
	if h.Len > MaxStandardHeaderLen {
		return ErrContentInvalid
	}
	return nil
}

// PatchLen overwrites just the Len field of an already-encoded standard
// header in place.
func PatchLen(dst []byte, length uint16) error {
	if len(dst) < StandardHeaderLen {
		return ErrBufferFull
	}
	binary.BigEndian.PutUint16(dst[2:4], length)
	return nil
}

// ExtrasLen returns the number of bytes the optional extras (ecu/session
// id/timestamp) occupy for a given htyp.
func ExtrasLen(htyp uint8) int {
	n := 0
	if htyp&HtypWEID != 0 {
		n += 4
	}
	if htyp&HtypWSID != 0 {
		n += 4
	}
	if htyp&HtypWTMS != 0 {
		n += 4
	}
	return n
}

// Extras carries the optional standard-header extensions. Session id and
// timestamp are always big-endian on the wire, independent of MSBF — only
// argument payload fields respect the MSBF bit (spec §4.1, confirmed by
// the worked example in §8 S1 where seid/tmsp are marked `_BE` on a
// little-endian host).
type Extras struct {
	Ecu  Id4
	Seid uint32
	Tmsp uint32
}

// Encode writes the extras selected by htyp.
func (e *Extras) Encode(htyp uint8, dst []byte) (int, error) {
	need := ExtrasLen(htyp)
	if len(dst) < need {
		return 0, ErrBufferFull
	}
	off := 0
	if htyp&HtypWEID != 0 {
		copy(dst[off:off+4], e.Ecu[:])
		off += 4
	}
	if htyp&HtypWSID != 0 {
		binary.BigEndian.PutUint32(dst[off:off+4], e.Seid)
		off += 4
	}
	if htyp&HtypWTMS != 0 {
		binary.BigEndian.PutUint32(dst[off:off+4], e.Tmsp)
		off += 4
	}
	return off, nil
}

// Decode parses the extras selected by htyp from src.
func (e *Extras) Decode(htyp uint8, src []byte) (int, error) {
	need := ExtrasLen(htyp)
	if len(src) < need {
		return 0, ErrContentInvalid
	}
	off := 0
	if htyp&HtypWEID != 0 {
		copy(e.Ecu[:], src[off:off+4])
		off += 4
	}
	if htyp&HtypWSID != 0 {
		e.Seid = binary.BigEndian.Uint32(src[off : off+4])
		off += 4
	}
	if htyp&HtypWTMS != 0 {
		e.Tmsp = binary.BigEndian.Uint32(src[off : off+4])
		off += 4
	}
	return off, nil
}

// ExtendedHeaderLen is the fixed size of the extended header.
const ExtendedHeaderLen = 10

// ExtendedHeader is present only when htyp's UEH bit is set.
type ExtendedHeader struct {
	Msin uint8
	Noar uint8
	Apid Id4
	Ctid Id4
}

// Encode writes the 10-byte extended header.
func (h *ExtendedHeader) Encode(dst []byte) error {
	if len(dst) < ExtendedHeaderLen {
		return ErrBufferFull
	}
	dst[0] = h.Msin
	dst[1] = h.Noar
	copy(dst[2:6], h.Apid[:])
	copy(dst[6:10], h.Ctid[:])
	return nil
}

// Decode parses a 10-byte extended header from src.
func (h *ExtendedHeader) Decode(src []byte) error {
	if len(src) < ExtendedHeaderLen {
		return ErrContentInvalid
	}
	h.Msin = src[0]
	h.Noar = src[1]
	copy(h.Apid[:], src[2:6])
	copy(h.Ctid[:], src[6:10])
	return nil
}
