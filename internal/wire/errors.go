package wire

// CodecError is the failure kind surfaced by every encode/decode call in
// this package. Callers must treat a non-nil CodecError as "nothing was
// partially committed" — see spec §4.1 Failure model.
type CodecError string

func (e CodecError) Error() string {
	return string(e)
}

const (
	// ErrBufferFull means the destination buffer has no room left for
	// the bytes about to be written.
	ErrBufferFull CodecError = "wire: buffer full"

	// ErrWrongParameter means the caller passed a value the codec
	// cannot represent (e.g. a length that does not fit in 16 bits).
	ErrWrongParameter CodecError = "wire: wrong parameter"

	// ErrContentInvalid means the decoder found a length or type_info
	// it cannot interpret, or the payload was truncated.
	ErrContentInvalid CodecError = "wire: content invalid"
)
