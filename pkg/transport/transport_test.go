package transport

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dsbus/dsclient/core"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// TestConnReadLoopSplitsFramesOnMessageSeparator verifies that a stream
// containing several frames written back to back is split correctly even
// when they arrive in one Write (no per-frame packet boundary to rely on).
func TestConnReadLoopSplitsFramesOnMessageSeparator(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	pool := core.NewBufPool(false)
	conn := NewConn(client, pool, testLogger())

	got := make(chan string, 3)
	done := make(chan error, 1)
	go func() {
		done <- conn.ReadLoop(func(buf *core.Buf) {
			got <- string(buf.Get())
			buf.Release()
		})
	}()

	go func() {
		w := bufio.NewWriter(server)
		w.WriteString("A\x1fA\x1e")
		w.WriteString("P\x1fA\x1fS\x1e")
		w.Flush()
	}()

	for i := 0; i < 2; i++ {
		select {
		case frame := <-got:
			if i == 0 {
				require.Equal(t, "A\x1fA\x1e", frame)
			} else {
				require.Equal(t, "P\x1fA\x1fS\x1e", frame)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for frame")
		}
	}

	server.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ReadLoop did not return after peer close")
	}
}

// TestConnDisconnectIsIdempotent matches the Transport.Disconnect contract
// in core.Transport: calling it twice must not panic or double-error.
func TestConnDisconnectIsIdempotent(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	pool := core.NewBufPool(false)
	conn := NewConn(client, pool, testLogger())

	require.NoError(t, conn.Disconnect())
	require.NoError(t, conn.Disconnect())
}

// TestConnSendReleasesBuffer checks that Send hands ownership of buf back
// to the pool exactly once, matching the mutate-in-place/no-copy contract.
func TestConnSendReleasesBuffer(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	pool := core.NewBufPool(true)
	conn := NewConn(client, pool, testLogger())

	readDone := make(chan []byte, 1)
	go func() {
		r := bufio.NewReader(server)
		frame, _ := r.ReadBytes('\x1e')
		readDone <- frame
	}()

	buf := conn.AllocSendBuffer(8)
	copy(buf.Get(), "P\x1fA\x1fS\x1e")

	var completeErr error
	called := false
	require.NoError(t, conn.Send(buf, func(err error) {
		called = true
		completeErr = err
	}))
	require.True(t, called)
	require.NoError(t, completeErr)
	require.Equal(t, 0, pool.InUseCount(), "Send must release buf back to the pool")

	select {
	case frame := <-readDone:
		require.Equal(t, "P\x1fA\x1fS\x1e", string(frame))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for write")
	}
}
