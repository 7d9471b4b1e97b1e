// Package transport implements the single IPC endpoint to the daemon:
// Unix stream socket, VSOCK, or a FIFO pair. The spec selects exactly
// one flavor at build time via separate compile targets; this
// implementation selects it at construction time instead so every
// flavor stays reachable from the same test binary.
package transport

import "github.com/minminlittleshrimp/mct-go/internal/wire"

// Result classifies the outcome of a Send call.
type Result int

const (
	ResultOK Result = iota
	ResultPipeFull
	ResultPipeError
	ResultError
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultPipeFull:
		return "pipe-full"
	case ResultPipeError:
		return "pipe-error"
	default:
		return "error"
	}
}

// Transport is the single IPC endpoint the library holds open to the
// daemon. Implementations never partially commit a message: a short
// write is surfaced as an error, never silently truncated.
type Transport interface {
	// Send scatter-gathers parts (user-header, header bytes, payload
	// bytes) as one logical write and classifies the outcome.
	Send(parts ...[]byte) (Result, error)

	// Recv performs a non-blocking read of whatever the daemon has
	// written (control frames), returning 0, nil if nothing is
	// available yet.
	Recv(buf []byte) (int, error)

	// Reconnect closes and reopens the underlying handle, used by the
	// housekeeper's reattach procedure after a PipeError.
	Reconnect() error

	Close() error
}

// Flavor selects which of the three mutually exclusive IPC mechanisms a
// Transport uses.
type Flavor int

const (
	FlavorUnixSocket Flavor = iota
	FlavorVsock
	FlavorFifo
	// FlavorFile is not one of the spec's three mutually-exclusive daemon
	// IPC flavors; it is the supplemented direct-to-file logging mode
	// (spec.md §6 "File size cap"), wired through the same Transport
	// interface so the builder's Finish path needs no special case.
	FlavorFile
)

// Config carries every knob needed to construct any Transport flavor.
type Config struct {
	Flavor Flavor

	// Unix socket.
	IPCPath string // base directory; socket is IPCPath+"/mct"

	// VSOCK.
	VsockCID  uint32
	VsockPort uint32

	// FIFO pair.
	FifoBase string
	Pid      int

	// Direct-to-file.
	FilePath    string
	FileMaxSize int64 // 0 means unbounded
	Ecu         wire.Id4

	// SerialHeader, when true, prepends the 4-byte "DLS\x01" pattern to
	// every send, for links that need byte-stream resync.
	SerialHeader bool
}

func serialPrefix(cfg Config) [][]byte {
	if !cfg.SerialHeader {
		return nil
	}
	return [][]byte{wire.SerialHeaderPattern[:]}
}

// New constructs the Transport selected by cfg.Flavor.
func New(cfg Config) (Transport, error) {
	switch cfg.Flavor {
	case FlavorUnixSocket:
		return newUnixTransport(cfg)
	case FlavorVsock:
		return newVsockTransport(cfg)
	case FlavorFifo:
		return newFifoTransport(cfg)
	case FlavorFile:
		return newFileTransport(cfg)
	default:
		return nil, ErrUnknownFlavor
	}
}
