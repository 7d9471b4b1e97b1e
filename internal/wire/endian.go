package wire

import "encoding/binary"

// byteOrder returns the binary.ByteOrder selected by htyp's MSBF bit.
// Every MSBF-governed field (argument type_info, lengths and values, and
// the non-verbose message id) is read and written through this helper so
// cross-compiled targets never pick up an implicit host-endian bug (spec
// §9, "Endian abstraction"). The standard header's own `len` and the
// extras are always big-endian and the storage header always
// little-endian, regardless of MSBF; those use fixed byte orders.
func byteOrder(htyp uint8) binary.ByteOrder {
	if htyp&HtypMSBF != 0 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func putUint16(htyp uint8, b []byte, v uint16) {
	byteOrder(htyp).PutUint16(b, v)
}

func getUint16(htyp uint8, b []byte) uint16 {
	return byteOrder(htyp).Uint16(b)
}

func putUint32(htyp uint8, b []byte, v uint32) {
	byteOrder(htyp).PutUint32(b, v)
}

func getUint32(htyp uint8, b []byte) uint32 {
	return byteOrder(htyp).Uint32(b)
}

func putUint64(htyp uint8, b []byte, v uint64) {
	byteOrder(htyp).PutUint64(b, v)
}

func getUint64(htyp uint8, b []byte) uint64 {
	return byteOrder(htyp).Uint64(b)
}
