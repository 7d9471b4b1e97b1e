package mct

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/minminlittleshrimp/mct-go/internal/blockmode"
	"github.com/minminlittleshrimp/mct-go/internal/builder"
	"github.com/minminlittleshrimp/mct-go/internal/transport"
	"github.com/minminlittleshrimp/mct-go/internal/wire"
)

// LogLevel is the library's public mirror of the wire-level log level, so
// callers never import the internal wire package directly.
type LogLevel int8

const (
	LogLevelDefault LogLevel = LogLevel(wire.LogLevelDefault)
	LogLevelOff     LogLevel = LogLevel(wire.LogLevelOff)
	LogLevelFatal   LogLevel = LogLevel(wire.LogLevelFatal)
	LogLevelError   LogLevel = LogLevel(wire.LogLevelError)
	LogLevelWarn    LogLevel = LogLevel(wire.LogLevelWarn)
	LogLevelInfo    LogLevel = LogLevel(wire.LogLevelInfo)
	LogLevelDebug   LogLevel = LogLevel(wire.LogLevelDebug)
	LogLevelVerbose LogLevel = LogLevel(wire.LogLevelVerbose)
)

// TraceStatus is the library's public mirror of the wire-level trace
// status.
type TraceStatus int8

const (
	TraceStatusDefault TraceStatus = TraceStatus(wire.TraceStatusDefault)
	TraceStatusOff     TraceStatus = TraceStatus(wire.TraceStatusOff)
	TraceStatusOn      TraceStatus = TraceStatus(wire.TraceStatusOn)
)

// Width selects the byte width of an integer or float argument, one of
// 8/16/32/64/128 (128 for signed/unsigned integers only).
type Width int

const (
	Width8   Width = 8
	Width16  Width = 16
	Width32  Width = 32
	Width64  Width = 64
	Width128 Width = 128
)

// InjectionCallback is invoked when the daemon asks this context to run
// a verbose-mode injection service, identified by serviceID (spec §4.7).
type InjectionCallback func(serviceID uint32, payload []byte)

// LogLevelChangedCallback is invoked after the daemon changes this
// context's cached level or trace status (spec §4.7, §8 scenario S5).
type LogLevelChangedCallback func(level LogLevel, trace TraceStatus)

// Context is one registered application context. LogMessages are
// created from it and finalized back through it.
type Context struct {
	client      *Client
	apid, ctid  wire.Id4
	pos         uint32
	description string

	mcnt atomic.Uint32

	mu                   sync.Mutex
	injectionCallbacks   map[uint32]InjectionCallback
	levelChangedCallback LogLevelChangedCallback
}

// ID returns the context's four-character identifier.
func (c *Context) ID() string { return c.ctid.String() }

// Level reads the context's current effective level and trace status
// without taking the registry lock, the same fast path the log-level
// gate uses.
func (c *Context) Level() (LogLevel, TraceStatus) {
	lvl, trace, _ := c.client.registry.ReadLevel(c.pos)
	return LogLevel(lvl), TraceStatus(trace)
}

// OnInjection registers the callback invoked for serviceID's injection
// requests, replacing any previously registered callback for the same
// id.
func (c *Context) OnInjection(serviceID uint32, fn InjectionCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.injectionCallbacks[serviceID] = fn
}

// OnLogLevelChanged registers the callback invoked whenever the daemon
// changes this context's level or trace status.
func (c *Context) OnLogLevelChanged(fn LogLevelChangedCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.levelChangedCallback = fn
}

func (c *Context) dispatchInjection(serviceID uint32, payload []byte) {
	c.mu.Lock()
	fn := c.injectionCallbacks[serviceID]
	c.mu.Unlock()
	if fn != nil {
		fn(serviceID, payload)
	}
}

func (c *Context) dispatchLevelChanged(level, trace int8) {
	c.mu.Lock()
	fn := c.levelChangedCallback
	c.mu.Unlock()
	if fn != nil {
		fn(LogLevel(level), TraceStatus(trace))
	}
}

// gate applies the fast-path log-level check and reports whether level
// should be emitted at all.
func (c *Context) gate(level LogLevel) bool {
	if c.client.forked() {
		return false
	}
	curLevel, _, ok := c.client.registry.ReadLevel(c.pos)
	if !ok || curLevel == wire.LogLevelOff {
		return false
	}
	return int8(level) <= curLevel
}

// Log begins a verbose-mode message at level, or returns nil if the
// fast-path gate rejects it — the common case, and safe to chain Write*
// calls against since every method here tolerates a nil receiver.
func (c *Context) Log(level LogLevel) *LogMessage {
	if !c.gate(level) {
		return nil
	}
	cl := c.client
	mcnt := uint8(c.mcnt.Add(1))
	b := builder.Start(cl.pool, cl.htyp(), c.apid, c.ctid, mcnt, wire.MsgTypeLog, int8(level), cl.cfg.StagingBufLen)
	cl.stampMessage(b)
	return &LogMessage{client: cl, ctx: c, b: b}
}

// LogID begins a non-verbose-mode message carrying msgID instead of a
// typed-argument stream (spec §4.1, non-verbose mode).
func (c *Context) LogID(level LogLevel, msgID uint32) *LogMessage {
	if !c.gate(level) {
		return nil
	}
	cl := c.client
	mcnt := uint8(c.mcnt.Add(1))
	includeExtended := !cl.cfg.DisableExtendedHeaderForNonVerbose
	b := builder.StartID(cl.pool, cl.htyp(), c.apid, c.ctid, mcnt, wire.MsgTypeLog, int8(level), cl.cfg.StagingBufLen, includeExtended, msgID)
	cl.stampMessage(b)
	return &LogMessage{client: cl, ctx: c, b: b}
}

// stampMessage patches in the ecu/session/timestamp extras Start already
// reserved space for, and wires up the local-echo callback when
// MCT_LOCAL_PRINT_MODE calls for it.
func (c *Client) stampMessage(b *builder.Builder) {
	b.SetExtras(wire.NewId4(c.cfg.EcuID), uint32(c.pid), 0)
	if c.localEchoFn != nil {
		b.WithLocalEcho(c.localEchoFn)
	}
}

// LogMessage stages one outgoing message; call Write* methods to append
// typed arguments, then Finish to hand it to the transport. A nil
// *LogMessage (the fast-path gate already rejected the call) tolerates
// every method here as a no-op.
type LogMessage struct {
	client *Client
	ctx    *Context
	b      *builder.Builder
}

func (m *LogMessage) warn(op string, err error) {
	if err != nil {
		m.client.log.Debugf("%s: %v", op, err)
	}
}

// WriteBool appends a boolean argument.
func (m *LogMessage) WriteBool(v bool) *LogMessage {
	if m == nil {
		return nil
	}
	m.warn("WriteBool", m.b.WriteBool(v))
	return m
}

// WriteSint appends a signed integer argument of the given width.
func (m *LogMessage) WriteSint(width Width, v int64) *LogMessage {
	if m == nil {
		return nil
	}
	m.warn("WriteSint", m.b.WriteSint(int(width), v))
	return m
}

// WriteUint appends an unsigned integer argument of the given width.
func (m *LogMessage) WriteUint(width Width, v uint64) *LogMessage {
	if m == nil {
		return nil
	}
	m.warn("WriteUint", m.b.WriteUint(int(width), v))
	return m
}

// WriteFloat appends a floating-point argument (width 32 or 64).
func (m *LogMessage) WriteFloat(width Width, v float64) *LogMessage {
	if m == nil {
		return nil
	}
	m.warn("WriteFloat", m.b.WriteFloat(int(width), v))
	return m
}

// WriteRaw appends a length-prefixed raw byte argument.
func (m *LogMessage) WriteRaw(v []byte) *LogMessage {
	if m == nil {
		return nil
	}
	m.warn("WriteRaw", m.b.WriteRaw(v))
	return m
}

// WriteString appends a UTF-8 string argument, subject to the staging
// buffer's truncation policy once the configured cap is reached.
func (m *LogMessage) WriteString(s string) *LogMessage {
	if m == nil {
		return nil
	}
	m.warn("WriteString", m.b.WriteString(s))
	return m
}

// Printf appends a single formatted string argument, a convenience
// mirroring the teacher's error-message construction style.
func (m *LogMessage) Printf(format string, args ...any) *LogMessage {
	if m == nil {
		return nil
	}
	return m.WriteString(fmt.Sprintf(format, args...))
}

// Finish finalizes the message and hands it to the transport, falling
// back to the overflow ring on backpressure. A nil receiver (the
// fast-path gate rejected the call) returns nil — not logging-disabled
// is not itself a failure the caller needs to react to.
func (m *LogMessage) Finish() *Error {
	if m == nil {
		return nil
	}
	defer m.b.Release()

	if m.client.forked() {
		return NewContextError("Finish", m.ctx.apid.String(), m.ctx.ctid.String(), KindError, "client used after fork")
	}

	outcome := m.b.Finish(m.client.transport, m.client.ring)
	switch outcome {
	case builder.OutcomeOK:
		m.client.metrics.recordOutcome(KindOK)
		return nil
	case builder.OutcomeUserBufferFull:
		m.client.metrics.recordOutcome(KindUserBufferFull)
		return NewContextError("Finish", m.ctx.apid.String(), m.ctx.ctid.String(), KindUserBufferFull, "staging buffer exhausted")
	case builder.OutcomePipeFull:
		m.client.metrics.recordOutcome(KindPipeFull)
		return NewContextError("Finish", m.ctx.apid.String(), m.ctx.ctid.String(), KindPipeFull, "daemon pipe full, queued to overflow ring")
	case builder.OutcomePipeError:
		m.client.metrics.recordOutcome(KindPipeError)
		return NewContextError("Finish", m.ctx.apid.String(), m.ctx.ctid.String(), KindPipeError, "daemon pipe broken, queued to overflow ring")
	case builder.OutcomeBufferFull:
		if m.client.policy.Mode() == blockmode.Blocking {
			m.client.policy.MarkBufferFull()
			m.client.policy.WaitForDrain()
		}
		m.client.metrics.recordOutcome(KindBufferFull)
		return NewContextError("Finish", m.ctx.apid.String(), m.ctx.ctid.String(), KindBufferFull, "overflow ring full")
	default:
		err := m.b.Err()
		if errors.Is(err, transport.ErrFileSizeLimit) {
			return NewContextError("Finish", m.ctx.apid.String(), m.ctx.ctid.String(), KindFileSizeError, "direct-to-file size cap exceeded")
		}
		return WrapError("Finish", KindError, err)
	}
}

// localEchoToStdout renders a finished message's text form to stdout,
// the MCT_LOCAL_PRINT_MODE supplemented feature.
func localEchoToStdout(apid, ctid wire.Id4, level int8, text string) {
	fmt.Printf("%s %s [%d] %s\n", apid.String(), ctid.String(), level, text)
}
