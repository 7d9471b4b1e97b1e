package transport

import (
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// unixTransport connects to the daemon over a Unix domain stream socket
// at ${IPCPath}/mct, non-blocking, with SO_LINGER{on,10} (spec §4.5/§6).
type unixTransport struct {
	mu   sync.Mutex
	fd   int
	path string
	cfg  Config
}

func newUnixTransport(cfg Config) (*unixTransport, error) {
	t := &unixTransport{path: filepath.Join(cfg.IPCPath, "mct"), cfg: cfg}
	if err := t.dial(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *unixTransport) dial() error {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return err
	}
	if err := unix.Connect(fd, &unix.SockaddrUnix{Name: t.path}); err != nil {
		unix.Close(fd)
		return err
	}
	if err := unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, &unix.Linger{Onoff: 1, Linger: 10}); err != nil {
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

func (t *unixTransport) Send(parts ...[]byte) (Result, error) {
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

func (t *unixTransport) Recv(buf []byte) (int, error) {
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

func (t *unixTransport) Reconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fd != 0 {
		unix.Close(t.fd)
	}
	return t.dial()
}

func (t *unixTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return unix.Close(t.fd)
}
