package transport

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// fifoTransport writes to the daemon's well-known FIFO and creates its
// own per-pid FIFO for the daemon to write control frames back to (spec
// §4.5/§6). Both ends are opened non-blocking, mode 0620.
type fifoTransport struct {
	mu        sync.Mutex
	writeFd   int
	readFd    int
	writePath string
	readPath  string
	cfg       Config
}

func newFifoTransport(cfg Config) (*fifoTransport, error) {
	t := &fifoTransport{
		writePath: filepath.Join(cfg.FifoBase, "mct"),
		readPath:  filepath.Join(cfg.FifoBase, "mctpipes", fmt.Sprintf("mct%d", cfg.Pid)),
		cfg:       cfg,
	}
	if err := os.MkdirAll(filepath.Join(cfg.FifoBase, "mctpipes"), 0750); err != nil {
		return nil, err
	}
	if err := unix.Mkfifo(t.readPath, 0620); err != nil && !os.IsExist(err) {
		return nil, err
	}
	if err := t.dial(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *fifoTransport) dial() error {
	writeFd, err := unix.Open(t.writePath, unix.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return err
	}
	readFd, err := unix.Open(t.readPath, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		unix.Close(writeFd)
		return err
	}
	t.writeFd = writeFd
	t.readFd = readFd
	return nil
}

func (t *fifoTransport) Send(parts ...[]byte) (Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	allParts := append(serialPrefix(t.cfg), parts...)
	want := 0
	for _, p := range allParts {
		want += len(p)
	}
	n, err := unix.Writev(t.writeFd, allParts)
	if err != nil {
		return classifySendErr(err), err
	}
	if n != want {
		return ResultError, ErrShortWrite
	}
	return ResultOK, nil
}

func (t *fifoTransport) Recv(buf []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := unix.Read(t.readFd, buf)
	if err != nil {
		if isWouldBlock(err) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (t *fifoTransport) Reconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writeFd != 0 {
		unix.Close(t.writeFd)
	}
	if t.readFd != 0 {
		unix.Close(t.readFd)
	}
	return t.dial()
}

func (t *fifoTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	err1 := unix.Close(t.writeFd)
	err2 := unix.Close(t.readFd)
	if err1 != nil {
		return err1
	}
	return err2
}
