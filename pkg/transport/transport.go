// Package transport provides core.Transport implementations: a default
// TCP connection and an alternate websocket connection, both built
// around a single reader goroutine that splits inbound bytes on
// core.MessageSeparator and hands each frame to the client as an owning
// core.Buf, and a writer path that submits core.Buf buffers directly
// without copying.
package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dsbus/dsclient/core"
)

// Handler receives one inbound frame per call, taking ownership of buf.
// Satisfied by *core.Client.HandleServerDirective.
type Handler func(buf *core.Buf)

// Conn wraps a net.Conn into a core.Transport: a blocking reader goroutine
// splits incoming bytes on core.MessageSeparator (grounded on
// stages/util.go's conn_handle goroutine-per-direction style, adapted
// from io.Copy-to-a-pipe.Input to a frame-splitting reader since there is
// no bgpfix pipe here), and writes submit straight to the socket.
type Conn struct {
	zerolog.Logger

	conn net.Conn
	pool *core.BufPool

	mu          sync.Mutex
	closed      bool
	onClosed    func()
	readTimeout func(n int, err error)
}

// NewConn wraps an already-established net.Conn. pool sizes send buffers
// via AllocSendBuffer; logger scopes trace/error logs to this connection.
func NewConn(conn net.Conn, pool *core.BufPool, logger zerolog.Logger) *Conn {
	return &Conn{
		Logger: logger.With().Str("component", "transport").Str("remote", conn.RemoteAddr().String()).Logger(),
		conn:   conn,
		pool:   pool,
	}
}

// AllocSendBuffer implements core.Transport.
func (c *Conn) AllocSendBuffer(size int) *core.Buf {
	b := c.pool.Acquire(size)
	return &b
}

// Send implements core.Transport: writes buf's bytes to the socket, then
// releases buf and invokes onComplete (if non-nil) with the write error.
// Matches §6: "the default completion releases buf to the pool."
func (c *Conn) Send(buf *core.Buf, onComplete func(err error)) error {
	_, err := c.conn.Write(buf.Get())
	buf.Release()
	if onComplete != nil {
		onComplete(err)
	}
	if err != nil {
		return fmt.Errorf("transport write: %w", err)
	}
	return nil
}

// Disconnect implements core.Transport. Idempotent.
func (c *Conn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// OnClosed registers a callback invoked once the reader loop exits
// (EOF, read error, or a call to Disconnect). Typically wired to
// Client.OnTransportClosed.
func (c *Conn) OnClosed(fn func()) {
	c.onClosed = fn
}

// ReadLoop blocks, splitting inbound bytes into core.MessageSeparator
// delimited frames and invoking handle with an owning core.Buf for each,
// until the connection closes or a read error occurs. Intended to run in
// its own goroutine; returns the terminating error (nil on clean close:
// EOF from the peer or a local Disconnect).
func (c *Conn) ReadLoop(handle Handler) error {
	r := bufio.NewReaderSize(c.conn, core.SendBufSize)
	for {
		frame, err := r.ReadBytes(core.MessageSeparator)
		if len(frame) > 0 {
			buf := c.pool.Acquire(len(frame))
			copy(buf.Get(), frame)
			handle(&buf)
		}
		if err != nil {
			c.Trace().Err(err).Msg("read loop returned")
			if c.onClosed != nil {
				c.onClosed()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
	}
}
