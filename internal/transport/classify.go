package transport

import (
	"errors"

	"golang.org/x/sys/unix"
)

// classifySendErr maps a send-path errno to the Result categories the
// spec defines: EAGAIN means the kernel buffer is full and the caller
// should defer to the overflow ring; EBADF/EPIPE mean the connection is
// gone and the caller should transition to retry-connect; anything else
// is a generic error.
func classifySendErr(err error) Result {
	if err == nil {
		return ResultOK
	}
	switch {
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EWOULDBLOCK):
		return ResultPipeFull
	case errors.Is(err, unix.EBADF), errors.Is(err, unix.EPIPE), errors.Is(err, unix.ECONNRESET):
		return ResultPipeError
	default:
		return ResultError
	}
}

// isWouldBlock reports whether err is the "no data available yet" signal
// on a non-blocking read, which Recv treats as 0, nil rather than an
// error.
func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}
