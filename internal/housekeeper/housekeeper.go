// Package housekeeper implements the background task that polls the
// daemon for control frames, drains the overflow ring once the transport
// accepts writes again, and reattaches (re-registers the application and
// its contexts) after a reconnect.
package housekeeper

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/minminlittleshrimp/mct-go/internal/blockmode"
	"github.com/minminlittleshrimp/mct-go/internal/ctrl"
	"github.com/minminlittleshrimp/mct-go/internal/logging"
	"github.com/minminlittleshrimp/mct-go/internal/registry"
	"github.com/minminlittleshrimp/mct-go/internal/ring"
	"github.com/minminlittleshrimp/mct-go/internal/transport"
	"github.com/minminlittleshrimp/mct-go/internal/wire"
)

// defaultPollInterval mirrors the spec's ~500ms housekeeper poll timeout.
const defaultPollInterval = 500 * time.Millisecond

// defaultReattachBackoff bounds how often a failed Reattach is retried,
// so a daemon that stays down doesn't get hammered with a reconnect
// attempt on every poll tick.
const defaultReattachBackoff = 2 * time.Second

// InjectionHandler is invoked for an injection control frame, addressed
// by cache-cell position since the daemon does not echo back the ctid.
type InjectionHandler func(pos uint32, serviceID uint32, payload []byte)

// LogStateHandler is invoked whenever the daemon reports whether an
// external client is listening.
type LogStateHandler func(state uint8)

// LogLevelChangedHandler is invoked after the cache cell at pos has been
// updated by a log-level control frame, addressed by position since the
// daemon does not echo back the ctid.
type LogLevelChangedHandler func(pos uint32, level, traceStatus int8)

// Housekeeper owns the single background goroutine that services one
// application's transport: poll, dispatch, drain, reattach.
type Housekeeper struct {
	transport    transport.Transport
	ring         *ring.Ring
	registry     *registry.Registry
	policy       *blockmode.Policy
	pollInterval time.Duration

	apid        wire.Id4
	description string
	pid         int32

	recvBuf []byte
	pending []byte
	drainBuf []byte

	// reattachBackoff/nextReattach bound Reattach retries. Both are only
	// ever touched from the single goroutine Run drives Poll/DrainRing
	// from, so they need no lock of their own.
	reattachBackoff time.Duration
	nextReattach    time.Time

	log *logging.CategoryLogger

	mu                  sync.Mutex
	injectionHandler    InjectionHandler
	logStateHandler     LogStateHandler
	logLevelChanged     LogLevelChangedHandler

	resyncCount atomic.Uint64
}

// New constructs a Housekeeper for a single registered application.
func New(t transport.Transport, r *ring.Ring, reg *registry.Registry, policy *blockmode.Policy, apid wire.Id4, description string, pid int32) *Housekeeper {
	return &Housekeeper{
		transport:       t,
		ring:            r,
		registry:        reg,
		policy:          policy,
		pollInterval:    defaultPollInterval,
		reattachBackoff: defaultReattachBackoff,
		apid:            apid,
		description:     description,
		pid:             pid,
		recvBuf:         make([]byte, 64*1024),
		drainBuf:        make([]byte, 64*1024),
		log:             logging.Default().Cat(logging.CategoryHousekeeper),
	}
}

// SetLogger overrides the logger used for reconnect/reattach diagnostics,
// normally the process-wide default tagged with the housekeeper category.
func (h *Housekeeper) SetLogger(l *logging.Logger) {
	h.log = l.Cat(logging.CategoryHousekeeper)
}

// SetPollInterval overrides the default ~500ms poll cadence; exposed for
// tests that would otherwise wait out the default interval.
func (h *Housekeeper) SetPollInterval(d time.Duration) {
	h.pollInterval = d
}

// SetReattachBackoff overrides the default 2s minimum gap between
// Reattach retries; exposed for tests that would otherwise wait out the
// default backoff.
func (h *Housekeeper) SetReattachBackoff(d time.Duration) {
	h.reattachBackoff = d
}

// SetInjectionHandler registers the callback invoked for injection
// frames. Called with no lock held, per the spec's callback discipline.
func (h *Housekeeper) SetInjectionHandler(fn InjectionHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.injectionHandler = fn
}

// SetLogStateHandler registers the callback invoked for log-state
// frames.
func (h *Housekeeper) SetLogStateHandler(fn LogStateHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logStateHandler = fn
}

// SetLogLevelChangedHandler registers the callback invoked after a
// log-level control frame updates a cache cell.
func (h *Housekeeper) SetLogLevelChangedHandler(fn LogLevelChangedHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logLevelChanged = fn
}

// ResyncCount reports how many times Poll had to discard bytes on the
// daemon-to-library channel because the "DUH\x01" pattern was missing or
// an unrecognized frame type followed it — a diagnostic for a flaky FIFO
// peer (spec §9 supplemented feature).
func (h *Housekeeper) ResyncCount() uint64 {
	return h.resyncCount.Load()
}

// Run blocks, polling and draining on pollInterval until ctx is
// cancelled. Callers typically invoke this via `go hk.Run(ctx)`.
func (h *Housekeeper) Run(ctx context.Context) {
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Poll()
			h.DrainRing()
		}
	}
}

// Start launches Run in its own goroutine.
func (h *Housekeeper) Start(ctx context.Context) {
	go h.Run(ctx)
}

// Poll performs one non-blocking receive and dispatches every complete
// control frame found, applying the byte-by-byte resync discipline: an
// unrecognized type skips only the user header, a short body waits for
// the next poll, and a missing pattern keeps at most the last three
// bytes (a possible partial pattern) for the next receive.
func (h *Housekeeper) Poll() {
	n, err := h.transport.Recv(h.recvBuf)
	if err != nil {
		h.maybeReattach()
		return
	}
	if n == 0 {
		return
	}
	h.pending = append(h.pending, h.recvBuf[:n]...)

	for {
		idx := ctrl.FindPattern(h.pending)
		if idx < 0 {
			if len(h.pending) > 3 {
				h.resyncCount.Add(1)
				h.pending = h.pending[len(h.pending)-3:]
			}
			return
		}
		if idx > 0 {
			h.resyncCount.Add(1)
		}
		if idx+8 > len(h.pending) {
			h.pending = h.pending[idx:]
			return
		}

		t, err := ctrl.DecodeUserHeader(h.pending[idx:])
		if err != nil {
			h.resyncCount.Add(1)
			h.pending = h.pending[idx+1:]
			continue
		}

		body, err := ctrl.NewBody(t)
		if err != nil {
			h.resyncCount.Add(1)
			h.pending = h.pending[idx+8:]
			continue
		}

		consumed, err := body.Decode(h.pending[idx+8:])
		if err != nil {
			h.pending = h.pending[idx:]
			return
		}

		h.handleFrame(t, body)
		h.pending = h.pending[idx+8+consumed:]
	}
}

func (h *Housekeeper) handleFrame(t ctrl.Type, body ctrl.Body) {
	switch t {
	case ctrl.TypeLogLevel:
		b := body.(*ctrl.LogLevel)
		h.registry.UpdateCache(b.LogLevelPos, b.LogLevel, b.TraceStatus)
		h.mu.Lock()
		fn := h.logLevelChanged
		h.mu.Unlock()
		if fn != nil {
			fn(b.LogLevelPos, b.LogLevel, b.TraceStatus)
		}

	case ctrl.TypeInjection:
		b := body.(*ctrl.Injection)
		h.mu.Lock()
		fn := h.injectionHandler
		h.mu.Unlock()
		if fn != nil {
			fn(b.LogLevelPos, b.ServiceID, b.Payload)
		}

	case ctrl.TypeLogState:
		b := body.(*ctrl.LogState)
		h.mu.Lock()
		fn := h.logStateHandler
		h.mu.Unlock()
		if fn != nil {
			fn(b.LogState)
		}

	case ctrl.TypeSetBlockMode:
		b := body.(*ctrl.SetBlockMode)
		if b.BlockMode == 0 {
			h.policy.SetMode(blockmode.NonBlocking)
		} else {
			h.policy.SetMode(blockmode.Blocking)
		}
	}
}

// DrainRing resends queued overflow blocks in order, stopping at the
// first send failure so the ring keeps whatever it could not yet
// deliver. It signals the block-mode policy once the ring empties.
func (h *Housekeeper) DrainRing() {
	for !h.ring.Empty() {
		size, err := h.ring.Copy(h.drainBuf)
		if err != nil {
			return
		}
		if size == 0 {
			return
		}
		if size > len(h.drainBuf) {
			h.drainBuf = make([]byte, size)
			continue
		}

		result, sendErr := h.transport.Send(h.drainBuf[:size])
		if sendErr != nil || result == transport.ResultPipeError || result == transport.ResultError {
			h.maybeReattach()
			return
		}
		if result != transport.ResultOK {
			// ResultPipeFull: transient backpressure, connection is
			// still good. Leave the block queued and try again next
			// tick rather than reconnecting.
			return
		}
		if err := h.ring.Remove(); err != nil {
			return
		}
	}
	h.policy.SignalDrained()
}

// maybeReattach calls Reattach unless the last attempt failed within
// reattachBackoff, so a daemon that stays down for a while gets one
// reconnect attempt per backoff window rather than one per poll tick.
func (h *Housekeeper) maybeReattach() {
	now := time.Now()
	if now.Before(h.nextReattach) {
		return
	}
	if err := h.Reattach(); err != nil {
		h.log.Warnf("reattach failed, retrying in %s: %v", h.reattachBackoff, err)
		h.nextReattach = now.Add(h.reattachBackoff)
	} else {
		h.log.Infof("reattached: re-registered app %s and its contexts", h.apid)
		h.nextReattach = time.Time{}
	}
}

// Reattach reconnects the transport and replays registration state: the
// application frame, then one register-context frame per context (the
// registry lock is released across each individual send, per the
// registry's own snapshot discipline), then a single overflow report if
// any messages were dropped while disconnected.
func (h *Housekeeper) Reattach() error {
	if err := h.transport.Reconnect(); err != nil {
		return err
	}

	buf := make([]byte, 4096)

	regApp := &ctrl.RegisterApp{Apid: h.apid, Pid: h.pid, Description: h.description}
	n, err := ctrl.EncodeFrame(buf, ctrl.TypeRegisterApp, regApp)
	if err != nil {
		return err
	}
	if _, err := h.transport.Send(buf[:n]); err != nil {
		return err
	}

	for _, c := range h.registry.Contexts(h.apid) {
		level, traceStatus, _ := h.registry.ReadLevel(c.Pos)
		regCtx := &ctrl.RegisterContext{
			Apid:        h.apid,
			Ctid:        c.Ctid,
			LogLevelPos: c.Pos,
			LogLevel:    level,
			TraceStatus: traceStatus,
			Pid:         h.pid,
			Description: c.Description,
		}
		n, err := ctrl.EncodeFrame(buf, ctrl.TypeRegisterContext, regCtx)
		if err != nil {
			return err
		}
		if _, err := h.transport.Send(buf[:n]); err != nil {
			return err
		}
	}

	if cnt := h.ring.OverflowCount(); cnt > 0 {
		ov := &ctrl.Overflow{OverflowCounter: cnt, Apid: h.apid}
		n, err := ctrl.EncodeFrame(buf, ctrl.TypeOverflow, ov)
		if err != nil {
			return err
		}
		if _, err := h.transport.Send(buf[:n]); err == nil {
			h.ring.ResetOverflowCount()
		}
	}

	h.policy.SignalReset()
	return nil
}
