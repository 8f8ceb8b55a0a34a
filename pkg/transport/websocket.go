package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/dsbus/dsclient/core"
)

// WS is a core.Transport over a websocket connection, an alternative to
// Conn for deployments that must tunnel through an HTTP(S) front door.
// Grounded on stages/websocket.go's client-dial path; the server/listen
// half of that file has no analogue here (the client always dials out).
type WS struct {
	zerolog.Logger

	conn *websocket.Conn
	pool *core.BufPool

	mu       sync.Mutex
	closed   bool
	onClosed func()
}

// DialWS connects to a ws:// or wss:// URL, matching stages/websocket.go's
// prepareClient dial call (without that file's retry loop — retry policy
// for the client as a whole belongs to Reconnector).
func DialWS(ctx context.Context, url string, pool *core.BufPool, logger zerolog.Logger) (*WS, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	logger.Info().Str("url", url).Msg("dialing")
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &WS{
		Logger: logger.With().Str("component", "transport-ws").Str("url", url).Logger(),
		conn:   conn,
		pool:   pool,
	}, nil
}

// AllocSendBuffer implements core.Transport.
func (w *WS) AllocSendBuffer(size int) *core.Buf {
	b := w.pool.Acquire(size)
	return &b
}

// Send implements core.Transport, writing buf as a single binary websocket
// message.
func (w *WS) Send(buf *core.Buf, onComplete func(err error)) error {
	err := w.conn.WriteMessage(websocket.BinaryMessage, buf.Get())
	buf.Release()
	if onComplete != nil {
		onComplete(err)
	}
	if err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

// Disconnect implements core.Transport. Idempotent.
func (w *WS) Disconnect() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.conn.Close()
}

// OnClosed registers a callback invoked once ReadLoop exits.
func (w *WS) OnClosed(fn func()) {
	w.onClosed = fn
}

// ReadLoop reads binary/text websocket messages, each treated as one
// complete frame (no core.MessageSeparator splitting needed — a websocket
// message boundary already delimits one server directive), until the
// connection closes.
func (w *WS) ReadLoop(handle Handler) error {
	for {
		mt, data, err := w.conn.ReadMessage()
		if err != nil {
			w.Trace().Err(err).Msg("read loop returned")
			if w.onClosed != nil {
				w.onClosed()
			}
			return err
		}
		if mt != websocket.BinaryMessage && mt != websocket.TextMessage {
			w.Warn().Int("type", mt).Msg("ignoring unexpected websocket message type")
			continue
		}
		buf := w.pool.Acquire(len(data))
		copy(buf.Get(), data)
		handle(&buf)
	}
}
