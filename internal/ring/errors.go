package ring

// Error is the failure kind surfaced by ring operations.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrBufferFull means the ring is at its maximum size (or cannot
	// grow) and has no room for the requested block.
	ErrBufferFull Error = "ring: buffer full"

	// ErrCorrupt means a block's magic or status was invalid on read;
	// the ring has already been reset by the time this is returned.
	ErrCorrupt Error = "ring: corrupt block, ring reset"
)
