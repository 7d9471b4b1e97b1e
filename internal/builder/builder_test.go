package builder

import (
	"testing"

	"github.com/minminlittleshrimp/mct-go/internal/ring"
	"github.com/minminlittleshrimp/mct-go/internal/stageio"
	"github.com/minminlittleshrimp/mct-go/internal/transport"
	"github.com/minminlittleshrimp/mct-go/internal/wire"
	"github.com/stretchr/testify/require"
)

// fakeTransport is a minimal transport.Transport double returning a
// fixed Result from every Send call.
type fakeTransport struct {
	result transport.Result
	sent   [][]byte
}

func (f *fakeTransport) Send(parts ...[]byte) (transport.Result, error) {
	var joined []byte
	for _, p := range parts {
		joined = append(joined, p...)
	}
	f.sent = append(f.sent, joined)
	return f.result, nil
}
func (f *fakeTransport) Recv(buf []byte) (int, error) { return 0, nil }
func (f *fakeTransport) Reconnect() error              { return nil }
func (f *fakeTransport) Close() error                  { return nil }

func TestBuilderAppendsArgumentsAndFinishesOK(t *testing.T) {
	pool := stageio.NewPool()
	htyp := wire.MakeHtyp(true, false, true, false, false, wire.ProtocolVersion1)
	b := Start(pool, htyp, wire.NewId4("APP1"), wire.NewId4("CTX1"), 1, wire.MsgTypeLog, wire.LogLevelInfo, 0)

	require.NoError(t, b.WriteString("hello"))
	require.NoError(t, b.WriteUint(32, 42))
	require.EqualValues(t, 2, b.NumArgs())

	r := ring.New(4096, 4096, 4096)
	tr := &fakeTransport{result: transport.ResultOK}
	outcome := b.Finish(tr, r)
	require.Equal(t, OutcomeOK, outcome)

	var std wire.StandardHeader
	require.NoError(t, std.Decode(b.Bytes()))
	require.EqualValues(t, len(b.Bytes()), std.Len)
}

func TestBuilderPushesToRingOnPipeFull(t *testing.T) {
	pool := stageio.NewPool()
	htyp := wire.MakeHtyp(false, false, false, false, false, wire.ProtocolVersion1)
	b := Start(pool, htyp, wire.NewId4("APP1"), wire.NewId4("CTX1"), 1, wire.MsgTypeLog, wire.LogLevelInfo, 0)
	require.NoError(t, b.WriteBool(true))

	r := ring.New(4096, 4096, 4096)
	tr := &fakeTransport{result: transport.ResultPipeFull}
	outcome := b.Finish(tr, r)
	require.Equal(t, OutcomePipeFull, outcome)
	require.Equal(t, 1, r.Count())
}

func TestBuilderReportsBufferFullWhenRingCannotAccept(t *testing.T) {
	pool := stageio.NewPool()
	htyp := wire.MakeHtyp(false, false, false, false, false, wire.ProtocolVersion1)
	b := Start(pool, htyp, wire.NewId4("APP1"), wire.NewId4("CTX1"), 1, wire.MsgTypeLog, wire.LogLevelInfo, 0)
	require.NoError(t, b.WriteRaw(make([]byte, 100)))

	r := ring.New(16, 16, 16) // far too small for the finished message
	tr := &fakeTransport{result: transport.ResultPipeError}
	outcome := b.Finish(tr, r)
	require.Equal(t, OutcomeBufferFull, outcome)
}

func TestStartIDOmitsExtendedHeaderWhenDisabled(t *testing.T) {
	pool := stageio.NewPool()
	htyp := wire.MakeHtyp(true, false, false, false, false, wire.ProtocolVersion1)
	b := StartID(pool, htyp, wire.NewId4("APP1"), wire.NewId4("CTX1"), 1, wire.MsgTypeLog, wire.LogLevelInfo, 0, false, 0xAABBCCDD)

	var std wire.StandardHeader
	require.NoError(t, std.Decode(b.Bytes()))
	require.Zero(t, std.Htyp&wire.HtypUEH)
}

func TestStartIDKeepsExtendedHeaderWhenEnabled(t *testing.T) {
	pool := stageio.NewPool()
	htyp := wire.MakeHtyp(true, false, false, false, false, wire.ProtocolVersion1)
	b := StartID(pool, htyp, wire.NewId4("APP1"), wire.NewId4("CTX1"), 1, wire.MsgTypeLog, wire.LogLevelInfo, 0, true, 0xAABBCCDD)

	var std wire.StandardHeader
	require.NoError(t, std.Decode(b.Bytes()))
	require.NotZero(t, std.Htyp&wire.HtypUEH)
}

func TestLocalEchoInvokedOnFinish(t *testing.T) {
	pool := stageio.NewPool()
	htyp := wire.MakeHtyp(false, false, false, false, false, wire.ProtocolVersion1)
	b := Start(pool, htyp, wire.NewId4("APP1"), wire.NewId4("CTX1"), 1, wire.MsgTypeLog, wire.LogLevelInfo, 0)
	require.NoError(t, b.WriteString("echoed"))

	var gotText string
	b.WithLocalEcho(func(apid, ctid wire.Id4, level int8, text string) {
		gotText = text
	})

	r := ring.New(1024, 1024, 1024)
	tr := &fakeTransport{result: transport.ResultOK}
	b.Finish(tr, r)
	require.Equal(t, "echoed", gotText)
}

func TestWriteStringGrowsBufferPastFirstBucket(t *testing.T) {
	pool := stageio.NewPool()
	htyp := wire.MakeHtyp(false, false, false, false, false, wire.ProtocolVersion1)
	b := Start(pool, htyp, wire.NewId4("APP1"), wire.NewId4("CTX1"), 1, wire.MsgTypeLog, wire.LogLevelInfo, 0)

	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'x'
	}
	require.NoError(t, b.WriteString(string(long)))
	require.Greater(t, len(b.buf), 256)
}

func TestFinishReportsUserBufferFullWhenRawArgCannotFit(t *testing.T) {
	pool := stageio.NewPool()
	htyp := wire.MakeHtyp(false, false, false, false, false, wire.ProtocolVersion1)
	// maxLen is far smaller than the initial 256-byte stage buffer, so
	// ensureCapacity refuses to grow and EncodeRaw has no room for a
	// 1000-byte payload; unlike WriteString, WriteRaw has no truncation
	// fallback and must fail outright.
	b := Start(pool, htyp, wire.NewId4("APP1"), wire.NewId4("CTX1"), 1, wire.MsgTypeLog, wire.LogLevelInfo, 64)

	err := b.WriteRaw(make([]byte, 1000))
	require.Error(t, err)

	r := ring.New(4096, 4096, 4096)
	tr := &fakeTransport{result: transport.ResultOK}
	outcome := b.Finish(tr, r)
	require.Equal(t, OutcomeUserBufferFull, outcome)
	require.Empty(t, tr.sent, "a capacity-exhausted message must never reach the transport")
}

func TestWriteStringTruncatesAtStagingCap(t *testing.T) {
	pool := stageio.NewPool()
	htyp := wire.MakeHtyp(false, false, false, false, false, wire.ProtocolVersion1)
	b := Start(pool, htyp, wire.NewId4("APP1"), wire.NewId4("CTX1"), 1, wire.MsgTypeLog, wire.LogLevelInfo, 256)

	long := make([]byte, 10000)
	for i := range long {
		long[i] = 'a'
	}
	require.NoError(t, b.WriteString(string(long)))
	require.LessOrEqual(t, len(b.Bytes()), 256)
}
