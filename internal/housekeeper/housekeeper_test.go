package housekeeper

import (
	"errors"
	"testing"
	"time"

	"github.com/minminlittleshrimp/mct-go/internal/blockmode"
	"github.com/minminlittleshrimp/mct-go/internal/ctrl"
	"github.com/minminlittleshrimp/mct-go/internal/registry"
	"github.com/minminlittleshrimp/mct-go/internal/ring"
	"github.com/minminlittleshrimp/mct-go/internal/transport"
	"github.com/minminlittleshrimp/mct-go/internal/wire"
	"github.com/stretchr/testify/require"
)

// fakeTransport is a transport.Transport double driven by a queue of
// chunks returned one per Recv call, and configurable Send behavior.
type fakeTransport struct {
	recvQueue    [][]byte
	recvErr      error // returned once, then cleared, simulating a broken pipe
	sent         [][]byte
	sendResult   transport.Result
	sendErr      error
	sendFailFrom int // index (0-based, across all Send calls) at which to start failing
	sendCount    int
	reconnected  int
}

func (f *fakeTransport) Recv(buf []byte) (int, error) {
	if f.recvErr != nil {
		err := f.recvErr
		f.recvErr = nil
		return 0, err
	}
	if len(f.recvQueue) == 0 {
		return 0, nil
	}
	chunk := f.recvQueue[0]
	f.recvQueue = f.recvQueue[1:]
	n := copy(buf, chunk)
	return n, nil
}

func (f *fakeTransport) Send(parts ...[]byte) (transport.Result, error) {
	var joined []byte
	for _, p := range parts {
		joined = append(joined, p...)
	}
	idx := f.sendCount
	f.sendCount++
	if f.sendFailFrom > 0 && idx >= f.sendFailFrom {
		return transport.ResultPipeError, nil
	}
	f.sent = append(f.sent, joined)
	if f.sendErr != nil {
		return transport.ResultError, f.sendErr
	}
	return f.sendResult, nil
}

func (f *fakeTransport) Reconnect() error { f.reconnected++; return nil }
func (f *fakeTransport) Close() error     { return nil }

func encodeFrame(t *testing.T, typ ctrl.Type, body ctrl.Body) []byte {
	buf := make([]byte, 4096)
	n, err := ctrl.EncodeFrame(buf, typ, body)
	require.NoError(t, err)
	return buf[:n]
}

func newTestHousekeeper(tr *fakeTransport) (*Housekeeper, *registry.Registry, *ring.Ring, *blockmode.Policy) {
	reg := registry.New()
	reg.RegisterApp(wire.NewId4("APP1"), 100, "test app")
	r := ring.New(4096, 4096, 4096)
	policy := blockmode.New(false)
	hk := New(tr, r, reg, policy, wire.NewId4("APP1"), "test app", 100)
	return hk, reg, r, policy
}

func TestPollDispatchesLogLevel(t *testing.T) {
	tr := &fakeTransport{sendResult: transport.ResultOK}
	hk, reg, _, _ := newTestHousekeeper(tr)

	ctx, err := reg.RegisterContext(wire.NewId4("APP1"), wire.NewId4("CTX1"), "ctx", wire.LogLevelWarn, wire.TraceStatusOff)
	require.NoError(t, err)

	frame := encodeFrame(t, ctrl.TypeLogLevel, &ctrl.LogLevel{LogLevel: wire.LogLevelDebug, TraceStatus: wire.TraceStatusOn, LogLevelPos: ctx.Pos})
	tr.recvQueue = [][]byte{frame}

	hk.Poll()

	level, traceStatus, ok := reg.ReadLevel(ctx.Pos)
	require.True(t, ok)
	require.EqualValues(t, wire.LogLevelDebug, level)
	require.EqualValues(t, wire.TraceStatusOn, traceStatus)
}

func TestPollResyncsPastGarbage(t *testing.T) {
	tr := &fakeTransport{sendResult: transport.ResultOK}
	hk, reg, _, _ := newTestHousekeeper(tr)
	ctx, err := reg.RegisterContext(wire.NewId4("APP1"), wire.NewId4("CTX1"), "ctx", wire.LogLevelWarn, wire.TraceStatusOff)
	require.NoError(t, err)

	frame := encodeFrame(t, ctrl.TypeLogLevel, &ctrl.LogLevel{LogLevel: wire.LogLevelError, TraceStatus: wire.TraceStatusOff, LogLevelPos: ctx.Pos})
	garbage := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	tr.recvQueue = [][]byte{append(garbage, frame...)}

	hk.Poll()

	level, _, ok := reg.ReadLevel(ctx.Pos)
	require.True(t, ok)
	require.EqualValues(t, wire.LogLevelError, level)
}

func TestPollWaitsForPartialFrame(t *testing.T) {
	tr := &fakeTransport{sendResult: transport.ResultOK}
	hk, reg, _, _ := newTestHousekeeper(tr)
	ctx, err := reg.RegisterContext(wire.NewId4("APP1"), wire.NewId4("CTX1"), "ctx", wire.LogLevelWarn, wire.TraceStatusOff)
	require.NoError(t, err)

	frame := encodeFrame(t, ctrl.TypeLogLevel, &ctrl.LogLevel{LogLevel: wire.LogLevelDebug, TraceStatus: wire.TraceStatusOn, LogLevelPos: ctx.Pos})
	split := len(frame) / 2
	tr.recvQueue = [][]byte{frame[:split], frame[split:]}

	hk.Poll()
	level, _, _ := reg.ReadLevel(ctx.Pos)
	require.EqualValues(t, wire.LogLevelWarn, level, "frame incomplete, cache must not change yet")

	hk.Poll()
	level, _, _ = reg.ReadLevel(ctx.Pos)
	require.EqualValues(t, wire.LogLevelDebug, level)
}

func TestPollInvokesInjectionHandler(t *testing.T) {
	tr := &fakeTransport{sendResult: transport.ResultOK}
	hk, _, _, _ := newTestHousekeeper(tr)

	var gotPos, gotService uint32
	var gotPayload []byte
	hk.SetInjectionHandler(func(pos uint32, serviceID uint32, payload []byte) {
		gotPos, gotService, gotPayload = pos, serviceID, payload
	})

	frame := encodeFrame(t, ctrl.TypeInjection, &ctrl.Injection{LogLevelPos: 3, ServiceID: 7, Payload: []byte("hi")})
	tr.recvQueue = [][]byte{frame}
	hk.Poll()

	require.EqualValues(t, 3, gotPos)
	require.EqualValues(t, 7, gotService)
	require.Equal(t, "hi", string(gotPayload))
}

func TestPollAppliesSetBlockMode(t *testing.T) {
	tr := &fakeTransport{sendResult: transport.ResultOK}
	hk, _, _, policy := newTestHousekeeper(tr)

	frame := encodeFrame(t, ctrl.TypeSetBlockMode, &ctrl.SetBlockMode{BlockMode: 1})
	tr.recvQueue = [][]byte{frame}
	hk.Poll()

	require.Equal(t, blockmode.Blocking, policy.Mode())
}

func TestDrainRingStopsOnFirstFailure(t *testing.T) {
	tr := &fakeTransport{sendResult: transport.ResultOK}
	hk, _, r, policy := newTestHousekeeper(tr)

	require.NoError(t, r.Push3([]byte("first"), nil, nil))
	require.NoError(t, r.Push3([]byte("second"), nil, nil))

	tr.sendResult = transport.ResultPipeFull // every send attempted during drain fails
	policy.MarkBufferFull()                  // a producer found the ring full before this drain
	hk.DrainRing()

	require.Equal(t, 2, r.Count(), "nothing should drain once the first send fails")
	require.False(t, policy.BufferEmpty())
}

func TestDrainRingDrainsAllOnSuccess(t *testing.T) {
	tr := &fakeTransport{sendResult: transport.ResultOK}
	hk, _, r, policy := newTestHousekeeper(tr)

	require.NoError(t, r.Push3([]byte("first"), nil, nil))
	require.NoError(t, r.Push3([]byte("second"), nil, nil))

	hk.DrainRing()

	require.Equal(t, 0, r.Count())
	require.True(t, policy.BufferEmpty())
	require.Len(t, tr.sent, 2)
}

func TestPollReattachesOnRecvError(t *testing.T) {
	tr := &fakeTransport{sendResult: transport.ResultOK, recvErr: errors.New("pipe gone")}
	hk, reg, _, _ := newTestHousekeeper(tr)
	_, err := reg.RegisterContext(wire.NewId4("APP1"), wire.NewId4("CTX1"), "ctx", wire.LogLevelWarn, wire.TraceStatusOff)
	require.NoError(t, err)

	hk.Poll()

	require.Equal(t, 1, tr.reconnected, "a Recv error must trigger Reattach")
	require.Len(t, tr.sent, 2, "reattach replays register-app and register-context")
}

func TestPollHonorsReattachBackoff(t *testing.T) {
	// sendErr makes Reattach itself fail (Reconnect succeeds but the
	// register-app replay does not), so the first failed attempt opens a
	// backoff window; the second Poll must not retry within it.
	tr := &fakeTransport{sendResult: transport.ResultOK, sendErr: errors.New("still down"), recvErr: errors.New("pipe gone")}
	hk, _, _, _ := newTestHousekeeper(tr)
	hk.SetReattachBackoff(time.Hour)

	hk.Poll()
	require.Equal(t, 1, tr.reconnected)

	tr.recvErr = errors.New("pipe still gone")
	hk.Poll()
	require.Equal(t, 1, tr.reconnected, "a second failure within the backoff window must not retry yet")
}

func TestDrainRingReattachesOnSendError(t *testing.T) {
	tr := &fakeTransport{sendResult: transport.ResultOK}
	hk, _, r, _ := newTestHousekeeper(tr)
	require.NoError(t, r.Push3([]byte("queued"), nil, nil))

	tr.sendErr = errors.New("broken pipe")
	hk.DrainRing()

	require.Equal(t, 1, tr.reconnected, "a Send error during drain must trigger Reattach")
	require.Equal(t, 1, r.Count(), "the undelivered block stays queued")
}

func TestReattachResendsRegistrationAndOverflow(t *testing.T) {
	tr := &fakeTransport{sendResult: transport.ResultOK}
	hk, reg, r, policy := newTestHousekeeper(tr)

	_, err := reg.RegisterContext(wire.NewId4("APP1"), wire.NewId4("CTX1"), "ctx one", wire.LogLevelWarn, wire.TraceStatusOff)
	require.NoError(t, err)
	_, err = reg.RegisterContext(wire.NewId4("APP1"), wire.NewId4("CTX2"), "ctx two", wire.LogLevelInfo, wire.TraceStatusOff)
	require.NoError(t, err)

	// Force an overflow so Reattach also reports it.
	tiny := ring.New(8, 8, 8)
	require.Error(t, tiny.Push3(make([]byte, 100), nil, nil))
	require.EqualValues(t, 1, tiny.OverflowCount())
	hk.ring = tiny
	_ = r

	require.NoError(t, hk.Reattach())

	require.Equal(t, 1, tr.reconnected)
	require.Len(t, tr.sent, 4) // register-app + 2x register-context + overflow
	require.Zero(t, tiny.OverflowCount())
	_ = policy
}
