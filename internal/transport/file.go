package transport

import (
	"os"
	"sync"
	"time"

	"github.com/minminlittleshrimp/mct-go/internal/wire"
)

// FileSink is the direct-to-file mode: instead of a daemon, the library
// appends storage-headered messages straight to a local file, bounded by
// a configurable size cap (spec §4.1, §6 "File size cap").
type FileSink struct {
	mu      sync.Mutex
	f       *os.File
	maxSize int64 // 0 means unbounded
	size    int64
	ecu     wire.Id4
}

// NewFileSink opens (creating/truncating) path for direct-to-file
// logging. maxSize of 0 means no cap.
func NewFileSink(path string, maxSize int64, ecu wire.Id4) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		return nil, err
	}
	return &FileSink{f: f, maxSize: maxSize, ecu: ecu}, nil
}

// Write prepends a storage header stamped with the current time and
// appends message to the file, refusing the write with ErrFileSizeLimit
// if it would push the file past maxSize.
func (s *FileSink) Write(message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hdr wire.StorageHeader
	hdr.Set(s.ecu, time.Now())
	hdrBuf := make([]byte, wire.StorageHeaderLen)
	if err := hdr.Encode(hdrBuf); err != nil {
		return err
	}

	total := int64(len(hdrBuf) + len(message))
	if s.maxSize > 0 && s.size+total > s.maxSize {
		return ErrFileSizeLimit
	}

	if _, err := s.f.Write(hdrBuf); err != nil {
		return err
	}
	if _, err := s.f.Write(message); err != nil {
		return err
	}
	s.size += total
	return nil
}

// SetMaxSize adjusts the cap at runtime, mirroring set_filesize_max.
func (s *FileSink) SetMaxSize(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxSize = n
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
