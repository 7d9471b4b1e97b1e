package mct

import (
	"sync"

	"github.com/minminlittleshrimp/mct-go/internal/transport"
)

// MockTransport is a test double implementing transport.Transport,
// tracking every Send call for assertion instead of touching a real
// socket, FIFO, or VSOCK peer. Useful for unit tests that exercise a
// Client without a live daemon.
type MockTransport struct {
	mu sync.Mutex

	sent         [][]byte
	sendResult   transport.Result
	sendErr      error
	sendFailFrom int // Send calls at/after this 1-indexed count fail; 0 disables

	recvQueue [][]byte
	recvErr   error

	reconnectCalls int
	reconnectErr   error
	closed         bool
}

// NewMockTransport constructs a MockTransport that accepts every Send by
// default.
func NewMockTransport() *MockTransport {
	return &MockTransport{sendResult: transport.ResultOK}
}

// Send concatenates parts, records the result, and fails from the call
// configured via FailSendsFrom onward.
func (t *MockTransport) Send(parts ...[]byte) (transport.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var joined []byte
	for _, p := range parts {
		joined = append(joined, p...)
	}
	t.sent = append(t.sent, joined)

	if t.sendFailFrom > 0 && len(t.sent) >= t.sendFailFrom {
		return t.sendResult, t.sendErr
	}
	return transport.ResultOK, nil
}

// Recv dequeues the next buffer queued via QueueRecv, or reports nothing
// available.
func (t *MockTransport) Recv(buf []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.recvErr != nil {
		return 0, t.recvErr
	}
	if len(t.recvQueue) == 0 {
		return 0, nil
	}
	next := t.recvQueue[0]
	t.recvQueue = t.recvQueue[1:]
	return copy(buf, next), nil
}

// Reconnect records the call and returns the configured error.
func (t *MockTransport) Reconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reconnectCalls++
	return t.reconnectErr
}

// Close marks the transport closed.
func (t *MockTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// QueueRecv enqueues bytes to be returned by a future Recv call, for
// tests driving control frames into a Housekeeper under test.
func (t *MockTransport) QueueRecv(b []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recvQueue = append(t.recvQueue, append([]byte(nil), b...))
}

// FailSendsFrom makes every Send from the nth call onward (1-indexed)
// return result/err instead of ResultOK, simulating a daemon that goes
// unreachable partway through a test.
func (t *MockTransport) FailSendsFrom(n int, result transport.Result, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendFailFrom = n
	t.sendResult = result
	t.sendErr = err
}

// SetReconnectErr makes the next Reconnect call fail with err.
func (t *MockTransport) SetReconnectErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reconnectErr = err
}

// SetRecvErr makes every subsequent Recv call fail with err.
func (t *MockTransport) SetRecvErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recvErr = err
}

// Sent returns a copy of every message handed to Send so far, each
// already concatenated across its scatter-gather parts.
func (t *MockTransport) Sent() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.sent))
	copy(out, t.sent)
	return out
}

// SendCount reports how many times Send has been called.
func (t *MockTransport) SendCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

// ReconnectCount reports how many times Reconnect has been called.
func (t *MockTransport) ReconnectCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reconnectCalls
}

// Closed reports whether Close has been called.
func (t *MockTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Reset clears every recorded call and queued response, restoring the
// default accept-everything behavior.
func (t *MockTransport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = nil
	t.recvQueue = nil
	t.reconnectCalls = 0
	t.sendFailFrom = 0
	t.sendErr = nil
	t.recvErr = nil
	t.reconnectErr = nil
	t.closed = false
}

var _ transport.Transport = (*MockTransport)(nil)
