package transport

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/minminlittleshrimp/mct-go/internal/wire"
	"github.com/stretchr/testify/require"
)

func TestClassifySendErrNil(t *testing.T) {
	require.Equal(t, ResultOK, classifySendErr(nil))
}

func TestFileSinkEnforcesCap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.mct")

	sink, err := NewFileSink(path, int64(wire.StorageHeaderLen+10), wire.NewId4("ECU1"))
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Write([]byte("short")))
	err = sink.Write([]byte("this message is far too long to fit"))
	require.ErrorIs(t, err, ErrFileSizeLimit)
}

func TestFileSinkUnboundedByDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.mct")

	sink, err := NewFileSink(path, 0, wire.NewId4("ECU1"))
	require.NoError(t, err)
	defer sink.Close()

	for i := 0; i < 100; i++ {
		require.NoError(t, sink.Write([]byte("payload")))
	}
}

func TestUnixTransportSendReceivedByPeer(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "mct")

	ln, err := net.Listen("unix", sockPath)
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 256)
		n, _ := conn.Read(buf)
		received <- buf[:n]
	}()

	tr, err := New(Config{Flavor: FlavorUnixSocket, IPCPath: dir})
	require.NoError(t, err)
	defer tr.Close()

	result, err := tr.Send([]byte("hello"), []byte(" world"))
	require.NoError(t, err)
	require.Equal(t, ResultOK, result)

	select {
	case got := <-received:
		require.Equal(t, "hello world", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for peer to receive data")
	}
}

func TestUnixTransportReconnectAfterClose(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "mct")

	ln, err := net.Listen("unix", sockPath)
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				buf := make([]byte, 64)
				conn.Read(buf)
				conn.Close()
			}()
		}
	}()

	tr, err := New(Config{Flavor: FlavorUnixSocket, IPCPath: dir})
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, tr.Reconnect())
	result, err := tr.Send([]byte("ping"))
	require.NoError(t, err)
	require.Equal(t, ResultOK, result)
}
