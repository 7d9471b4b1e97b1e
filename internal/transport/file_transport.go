package transport

// fileTransport adapts a FileSink to the Transport interface so the
// direct-to-file logging mode (spec.md §6 "File size cap") flows through
// the same builder.Finish path as the daemon flavors, instead of needing
// a special case in the message builder.
type fileTransport struct {
	sink *FileSink
	cfg  Config
}

func newFileTransport(cfg Config) (*fileTransport, error) {
	sink, err := NewFileSink(cfg.FilePath, cfg.FileMaxSize, cfg.Ecu)
	if err != nil {
		return nil, err
	}
	return &fileTransport{sink: sink, cfg: cfg}, nil
}

// Send concatenates parts and appends them to the file behind a fresh
// storage header. There is no daemon pushback on this path: a size-cap
// hit surfaces as ResultError wrapping ErrFileSizeLimit, never
// ResultPipeFull/ResultPipeError (those only describe a live IPC peer).
func (t *fileTransport) Send(parts ...[]byte) (Result, error) {
	var joined []byte
	for _, p := range parts {
		joined = append(joined, p...)
	}
	if err := t.sink.Write(joined); err != nil {
		return ResultError, err
	}
	return ResultOK, nil
}

// Recv always reports nothing available: a file sink has no peer to
// read control frames from.
func (t *fileTransport) Recv(buf []byte) (int, error) { return 0, nil }

// Reconnect is a no-op; the file handle does not go stale the way a
// socket or FIFO peer can.
func (t *fileTransport) Reconnect() error { return nil }

func (t *fileTransport) Close() error { return t.sink.Close() }
