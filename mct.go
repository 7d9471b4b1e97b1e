// Package mct is a userspace client library for the MCT diagnostic
// log/trace protocol: register an application and its contexts, then
// emit typed log messages through a shared transport to a daemon,
// falling back to an in-process overflow ring under backpressure.
package mct

import (
	"context"
	"os"
	"sync"

	"github.com/minminlittleshrimp/mct-go/internal/blockmode"
	"github.com/minminlittleshrimp/mct-go/internal/ctrl"
	"github.com/minminlittleshrimp/mct-go/internal/housekeeper"
	"github.com/minminlittleshrimp/mct-go/internal/logging"
	"github.com/minminlittleshrimp/mct-go/internal/registry"
	"github.com/minminlittleshrimp/mct-go/internal/ring"
	"github.com/minminlittleshrimp/mct-go/internal/stageio"
	"github.com/minminlittleshrimp/mct-go/internal/transport"
	"github.com/minminlittleshrimp/mct-go/internal/wire"
)

// defaultContextLogLevel is the effective level a context gets when the
// caller passes LogLevelDefault and no MCT_INITIAL_LOG_LEVEL entry names
// it explicitly.
const defaultContextLogLevel = wire.LogLevelWarn

// Client is the process-wide handle to one registered MCT application:
// a connected transport, the overflow ring, the context registry, and
// the background housekeeper that services them. Exactly one
// application may be registered per Client (spec §3 "one application per
// process").
type Client struct {
	cfg *Config

	registry  *registry.Registry
	transport transport.Transport
	ring      *ring.Ring
	policy    *blockmode.Policy
	pool      *stageio.Pool
	log       *logging.Logger

	hk      *housekeeper.Housekeeper
	cancel  context.CancelFunc
	metrics *Metrics

	apid        wire.Id4
	description string
	pid         int32

	ctxMu    sync.Mutex
	contexts map[uint32]*Context

	localEchoFn func(apid, ctid wire.Id4, level int8, text string)

	// forkPid freezes the pid this Client was constructed under; a
	// child process observing a different os.Getpid() must not reuse
	// the parent's transport fd, ring, or registry (spec §9 fork
	// hazard) — Context.gate and LogMessage.Finish refuse to stage or
	// send anything once detected.
	forkPid int
}

// NewClient constructs the transport, ring, registry, and block-mode
// policy described by cfg but does not yet register an application; call
// RegisterApp before logging. A nil cfg reads from the environment
// (spec §6).
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = ConfigFromEnv()
	}

	pid := os.Getpid()
	cfg.Transport.Pid = pid
	if cfg.Transport.Flavor == transport.FlavorFile && cfg.Transport.Ecu.IsZero() {
		cfg.Transport.Ecu = wire.NewId4(cfg.EcuID)
	}

	t, err := transport.New(cfg.Transport)
	if err != nil {
		return nil, WrapError("NewClient", KindError, err)
	}

	c := &Client{
		cfg:       cfg,
		registry:  registry.New(),
		transport: t,
		ring:      ring.New(cfg.RingMinSize, cfg.RingMaxSize, cfg.RingStepSize),
		policy:    blockmode.New(cfg.ForceBlocking),
		pool:      stageio.NewPool(),
		log:       logging.NewFromEnv(),
		pid:       int32(pid),
		contexts:  make(map[uint32]*Context),
		forkPid:   pid,
		metrics:   NewMetrics(),
	}
	c.registry.ParseInitialLevels(cfg.InitialLogLevel)

	if cfg.LocalPrintMode == LocalPrintForceOn {
		c.localEchoFn = localEchoToStdout
	}

	return c, nil
}

// Metrics returns the Client's operational counters.
func (c *Client) Metrics() *Metrics { return c.metrics }

// forked reports whether the calling process's pid no longer matches the
// one this Client was built under.
func (c *Client) forked() bool {
	return os.Getpid() != c.forkPid
}

// htyp assembles the standard-header flags byte this process stamps on
// every message it emits: extended header on by default (callers using
// LogID may turn it back off via DisableExtendedHeaderForNonVerbose),
// the configured extras, and the configured byte order.
func (c *Client) htyp() uint8 {
	return wire.MakeHtyp(true, c.cfg.BigEndian, c.cfg.WithEcuID, c.cfg.WithSessionID, c.cfg.WithTimestamp, wire.ProtocolVersion1)
}

// RegisterApp registers this process's single application, starting the
// background housekeeper. MCT_APP_ID, when set, overrides apid (spec
// §6). Calling it twice on the same Client is an error.
func (c *Client) RegisterApp(apid, description string) error {
	if !c.apid.IsZero() {
		return NewError("RegisterApp", KindWrongParameter, "an application is already registered for this client")
	}

	id := wire.NewId4(apid)
	if c.cfg.AppID != "" {
		id = wire.NewId4(c.cfg.AppID)
	}

	c.registry.RegisterApp(id, c.pid, description)
	c.apid = id
	c.description = description

	buf := make([]byte, 4096)
	frame := &ctrl.RegisterApp{Apid: id, Pid: c.pid, Description: description}
	if n, err := ctrl.EncodeFrame(buf, ctrl.TypeRegisterApp, frame); err == nil {
		if _, sendErr := c.transport.Send(buf[:n]); sendErr != nil {
			c.log.Cat(logging.CategoryTransport).Warnf("register-app send failed, will resend on reattach: %v", sendErr)
		}
	}

	c.hk = housekeeper.New(c.transport, c.ring, c.registry, c.policy, id, description, c.pid)
	c.hk.SetLogger(c.log)
	c.hk.SetInjectionHandler(c.dispatchInjection)
	c.hk.SetLogLevelChangedHandler(c.dispatchLogLevelChanged)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.hk.Start(ctx)

	return nil
}

// UnregisterApp sends an unregister-app control frame, stops the
// housekeeper, and drops the application from the registry. The Client
// may call RegisterApp again afterward.
func (c *Client) UnregisterApp() error {
	if c.apid.IsZero() {
		return nil
	}

	buf := make([]byte, 4096)
	frame := &ctrl.UnregisterApp{Apid: c.apid, Pid: c.pid}
	if n, err := ctrl.EncodeFrame(buf, ctrl.TypeUnregisterApp, frame); err == nil {
		c.transport.Send(buf[:n])
	}

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	c.registry.UnregisterApp(c.apid)
	c.ctxMu.Lock()
	c.contexts = make(map[uint32]*Context)
	c.ctxMu.Unlock()
	c.apid = wire.Id4{}
	c.hk = nil

	return nil
}

// RegisterContext registers ctid under this Client's application,
// resolving its initial level/trace status through MCT_INITIAL_LOG_LEVEL
// (taking priority) then the caller-supplied level/trace (LogLevelDefault
// resolves to defaultContextLogLevel, TraceStatusDefault to off).
func (c *Client) RegisterContext(ctid, description string, level LogLevel, trace TraceStatus) (*Context, error) {
	if c.apid.IsZero() {
		return nil, NewError("RegisterContext", KindWrongParameter, "no application registered")
	}

	id := wire.NewId4(ctid)
	lvl := int8(level)
	if level == LogLevelDefault {
		lvl = defaultContextLogLevel
	}
	ts := int8(trace)
	if trace == TraceStatusDefault {
		ts = wire.TraceStatusOff
	}

	rc, err := c.registry.RegisterContext(c.apid, id, description, lvl, ts)
	if err != nil {
		return nil, WrapError("RegisterContext", KindError, err)
	}

	curLevel, curTrace, _ := c.registry.ReadLevel(rc.Pos)

	buf := make([]byte, 4096)
	frame := &ctrl.RegisterContext{
		Apid: c.apid, Ctid: id, LogLevelPos: rc.Pos,
		LogLevel: curLevel, TraceStatus: curTrace, Pid: c.pid, Description: description,
	}
	if n, encErr := ctrl.EncodeFrame(buf, ctrl.TypeRegisterContext, frame); encErr == nil {
		if _, sendErr := c.transport.Send(buf[:n]); sendErr != nil {
			c.log.Cat(logging.CategoryTransport).Warnf("register-context send failed, will resend on reattach: %v", sendErr)
		}
	}

	ctxWrapper := &Context{
		client:             c,
		apid:               c.apid,
		ctid:               id,
		pos:                rc.Pos,
		description:        description,
		injectionCallbacks: make(map[uint32]InjectionCallback),
	}
	c.ctxMu.Lock()
	c.contexts[rc.Pos] = ctxWrapper
	c.ctxMu.Unlock()

	return ctxWrapper, nil
}

// UnregisterContext sends an unregister-context control frame and drops
// ctx from the registry and callback table.
func (c *Client) UnregisterContext(ctx *Context) error {
	if ctx == nil {
		return nil
	}

	buf := make([]byte, 4096)
	frame := &ctrl.UnregisterContext{Apid: c.apid, Ctid: ctx.ctid, Pid: c.pid}
	if n, err := ctrl.EncodeFrame(buf, ctrl.TypeUnregisterContext, frame); err == nil {
		c.transport.Send(buf[:n])
	}

	c.registry.UnregisterContext(c.apid, ctx.ctid)
	c.ctxMu.Lock()
	delete(c.contexts, ctx.pos)
	c.ctxMu.Unlock()

	return nil
}

func (c *Client) dispatchInjection(pos uint32, serviceID uint32, payload []byte) {
	c.ctxMu.Lock()
	ctx := c.contexts[pos]
	c.ctxMu.Unlock()
	if ctx != nil {
		ctx.dispatchInjection(serviceID, payload)
	}
}

func (c *Client) dispatchLogLevelChanged(pos uint32, level, traceStatus int8) {
	c.ctxMu.Lock()
	ctx := c.contexts[pos]
	c.ctxMu.Unlock()
	if ctx != nil {
		ctx.dispatchLevelChanged(level, traceStatus)
	}
}

// Close stops the housekeeper, waits up to AtExitDrainTimeout for the
// overflow ring to empty, and closes the transport. Any messages still
// queued after the timeout are reported to the library logger and lost,
// matching the daemon-side at-exit handler's best-effort contract
// (spec §4.8).
func (c *Client) Close() error {
	if c.cancel != nil {
		c.cancel()
	}

	c.policy.DrainUntil(c.cfg.AtExitDrainTimeout)
	if remaining := c.ring.Count(); remaining > 0 {
		c.log.Cat(logging.CategoryRing).Warnf("closing with %d undelivered message(s) in the overflow ring", remaining)
	}

	if !c.apid.IsZero() {
		c.registry.UnregisterApp(c.apid)
	}

	return c.transport.Close()
}
