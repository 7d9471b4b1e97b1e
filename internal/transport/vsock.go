package transport

import (
	"sync"

	"golang.org/x/sys/unix"
)

// vsockTransport connects to the daemon over AF_VSOCK at a fixed
// CID/port pair, for guest-to-host IPC on virtualized targets.
type vsockTransport struct {
	mu  sync.Mutex
	fd  int
	cfg Config
}

func newVsockTransport(cfg Config) (*vsockTransport, error) {
	t := &vsockTransport{cfg: cfg}
	if err := t.dial(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *vsockTransport) dial() error {
	fd, err := unix.Socket(unix.AF_VSOCK, unix.SOCK_STREAM, 0)
	if err != nil {
		return err
	}
	addr := &unix.SockaddrVM{CID: t.cfg.VsockCID, Port: t.cfg.VsockPort}
	if err := unix.Connect(fd, addr); err != nil {
		unix.Close(fd)
		return err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return err
	}
	t.fd = fd
	return nil
}

func (t *vsockTransport) Send(parts ...[]byte) (Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	allParts := append(serialPrefix(t.cfg), parts...)
	want := 0
	for _, p := range allParts {
		want += len(p)
	}
	n, err := unix.Writev(t.fd, allParts)
	if err != nil {
		return classifySendErr(err), err
	}
	if n != want {
		return ResultError, ErrShortWrite
	}
	return ResultOK, nil
}

func (t *vsockTransport) Recv(buf []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := unix.Read(t.fd, buf)
	if err != nil {
		if isWouldBlock(err) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (t *vsockTransport) Reconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fd != 0 {
		unix.Close(t.fd)
	}
	return t.dial()
}

func (t *vsockTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return unix.Close(t.fd)
}
