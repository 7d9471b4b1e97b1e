// Package stub implements an in-process stand-in for the real mctd
// daemon: it accepts the same control frames and relayed log messages a
// Client sends over its transport, and can push control frames back to
// exercise injection, log-level-change, and reconnect/replay behavior
// in integration tests. Grounded on the teacher's sharded in-memory
// backend (backend/mem.go): a single mutex-guarded store fed by
// whatever the library side writes, inspected afterward by test
// assertions instead of serving real device I/O.
package stub

import (
	"net"
	"sync"

	"github.com/minminlittleshrimp/mct-go/internal/ctrl"
	"github.com/minminlittleshrimp/mct-go/internal/wire"
)

// Daemon accepts connections on a Unix-domain listener (mirroring the
// library's FlavorUnixSocket transport) and records everything sent to
// it, while allowing a test to push control frames back to whichever
// connection is current — including after a client reconnect.
type Daemon struct {
	listener net.Listener

	mu            sync.Mutex
	conn          net.Conn
	apps          []ctrl.RegisterApp
	unregApps     []ctrl.UnregisterApp
	contexts      []ctrl.RegisterContext
	unregContexts []ctrl.UnregisterContext
	overflows     []ctrl.Overflow
	logs          [][]byte
	resyncCount   uint64

	acceptCount int
	closed      bool
}

// Listen starts a stub daemon on a Unix-domain socket at path, matching
// the path the library's FlavorUnixSocket transport dials
// (IPCPath+"/mct"). It accepts connections in the background for the
// lifetime of the Daemon, so a client's Reconnect after a simulated
// daemon restart finds a listener ready.
func Listen(path string) (*Daemon, error) {
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	d := &Daemon{listener: l}
	go d.acceptLoop()
	return d, nil
}

func (d *Daemon) acceptLoop() {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			return
		}
		d.mu.Lock()
		d.conn = conn
		d.acceptCount++
		d.mu.Unlock()
		go d.serveConn(conn)
	}
}

func (d *Daemon) serveConn(conn net.Conn) {
	buf := make([]byte, 64*1024)
	var pending []byte
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		d.mu.Lock()
		pending = append(pending, buf[:n]...)
		pending = d.dispatchLocked(pending)
		d.mu.Unlock()
	}
}

// dispatchLocked consumes as many complete frames from pending as it
// can find, recording each, and returns the unconsumed remainder. A
// frame is either a "DUH\x01"-prefixed control frame or a raw wire log
// message (spec §4.1's standard header, never storage-header-prefixed
// on the wire) — the two share the same stream since the library sends
// log messages directly via Transport.Send rather than wrapping them in
// a control frame. Anything recognizable as neither advances by one
// byte, counted as a resync, mirroring the housekeeper's own resync
// discipline on the opposite direction of this same channel.
func (d *Daemon) dispatchLocked(pending []byte) []byte {
	for {
		if len(pending) < wire.StandardHeaderLen {
			return pending
		}

		if isControlPattern(pending) {
			if len(pending) < 8 {
				return pending
			}
			t, err := ctrl.DecodeUserHeader(pending)
			if err != nil {
				pending = pending[1:]
				d.resyncCount++
				continue
			}
			body, err := ctrl.NewBody(t)
			if err != nil {
				pending = pending[8:]
				d.resyncCount++
				continue
			}
			consumed, err := body.Decode(pending[8:])
			if err != nil {
				return pending // wait for the rest of the body
			}
			d.handleControlLocked(t, body)
			pending = pending[8+consumed:]
			continue
		}

		n, ok := wireMessageLen(pending)
		if !ok {
			pending = pending[1:]
			d.resyncCount++
			continue
		}
		if len(pending) < n {
			return pending // wait for the rest of the message
		}
		d.logs = append(d.logs, append([]byte(nil), pending[:n]...))
		pending = pending[n:]
	}
}

func isControlPattern(buf []byte) bool {
	return buf[0] == wire.ControlHeaderPattern[0] && buf[1] == wire.ControlHeaderPattern[1] &&
		buf[2] == wire.ControlHeaderPattern[2] && buf[3] == wire.ControlHeaderPattern[3]
}

func wireMessageLen(buf []byte) (int, bool) {
	var h wire.StandardHeader
	if err := h.Decode(buf); err != nil {
		return 0, false
	}
	if int(h.Len) < wire.StandardHeaderLen {
		return 0, false
	}
	return int(h.Len), true
}

func (d *Daemon) handleControlLocked(t ctrl.Type, body ctrl.Body) {
	switch t {
	case ctrl.TypeRegisterApp:
		d.apps = append(d.apps, *body.(*ctrl.RegisterApp))
	case ctrl.TypeUnregisterApp:
		d.unregApps = append(d.unregApps, *body.(*ctrl.UnregisterApp))
	case ctrl.TypeRegisterContext:
		d.contexts = append(d.contexts, *body.(*ctrl.RegisterContext))
	case ctrl.TypeUnregisterContext:
		d.unregContexts = append(d.unregContexts, *body.(*ctrl.UnregisterContext))
	case ctrl.TypeOverflow:
		d.overflows = append(d.overflows, *body.(*ctrl.Overflow))
	}
}

func (d *Daemon) send(t ctrl.Type, body ctrl.Body) error {
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if conn == nil {
		return ErrNoClient
	}
	buf := make([]byte, 8+body.Len())
	n, err := ctrl.EncodeFrame(buf, t, body)
	if err != nil {
		return err
	}
	_, err = conn.Write(buf[:n])
	return err
}

// SendLogLevel pushes a daemon-originated log-level control frame,
// updating the cache cell at pos on the client side.
func (d *Daemon) SendLogLevel(pos uint32, level, traceStatus int8) error {
	return d.send(ctrl.TypeLogLevel, &ctrl.LogLevel{LogLevel: level, TraceStatus: traceStatus, LogLevelPos: pos})
}

// SendInjection pushes a daemon-originated injection request for the
// context registered at pos.
func (d *Daemon) SendInjection(pos, serviceID uint32, payload []byte) error {
	return d.send(ctrl.TypeInjection, &ctrl.Injection{LogLevelPos: pos, ServiceID: serviceID, Payload: payload})
}

// SendLogState pushes a daemon-originated log-state notification.
func (d *Daemon) SendLogState(state uint8) error {
	return d.send(ctrl.TypeLogState, &ctrl.LogState{LogState: state})
}

// SendSetBlockMode pushes a daemon-originated block-mode switch.
func (d *Daemon) SendSetBlockMode(mode uint8) error {
	return d.send(ctrl.TypeSetBlockMode, &ctrl.SetBlockMode{BlockMode: mode})
}

// Apps returns a copy of every register-app frame received so far.
func (d *Daemon) Apps() []ctrl.RegisterApp {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ctrl.RegisterApp, len(d.apps))
	copy(out, d.apps)
	return out
}

// Contexts returns a copy of every register-context frame received so
// far.
func (d *Daemon) Contexts() []ctrl.RegisterContext {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ctrl.RegisterContext, len(d.contexts))
	copy(out, d.contexts)
	return out
}

// Overflows returns a copy of every overflow report received so far.
func (d *Daemon) Overflows() []ctrl.Overflow {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ctrl.Overflow, len(d.overflows))
	copy(out, d.overflows)
	return out
}

// Logs returns a copy of every raw log message received so far, each
// the complete wire-encoded message (standard header onward).
func (d *Daemon) Logs() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.logs))
	copy(out, d.logs)
	return out
}

// ResyncCount reports how many times bytes were discarded while
// resyncing onto a recognizable frame boundary (one count per discard,
// whether it drops one byte or a whole user header).
func (d *Daemon) ResyncCount() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resyncCount
}

// AcceptCount reports how many client connections have been accepted,
// including reconnects.
func (d *Daemon) AcceptCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acceptCount
}

// Close shuts down the listener and the current connection, if any.
func (d *Daemon) Close() error {
	d.mu.Lock()
	d.closed = true
	conn := d.conn
	d.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	return d.listener.Close()
}
