package transport

import (
	"context"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/dsbus/dsclient/core"
)

// DialTCP connects to addr, applying TCP_USER_TIMEOUT tuning where the
// platform supports it (tcpopts_linux.go / tcpopts_other.go), and wraps
// the result in a *Conn. Grounded on stages/connect.go's Connect.Prepare.
func DialTCP(ctx context.Context, addr string, pool *core.BufPool, logger zerolog.Logger) (*Conn, error) {
	var dialer net.Dialer
	dialer.Control = func(network, address string, c syscall.RawConn) error {
		return setTCPUserTimeout(c, 30*time.Second)
	}

	logger.Info().Str("addr", addr).Msg("dialing")
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewConn(conn, pool, logger), nil
}

// Reconnector redials addr on demand, pacing attempts with a token-bucket
// limiter rather than a square-law-plus-jitter backoff: a rate.Limiter
// gives the same "don't hammer a down server" property with a dependency
// already in use elsewhere for per-message rate limiting, repurposed here
// one layer out to per-reconnect.
type Reconnector struct {
	addr    string
	pool    *core.BufPool
	logger  zerolog.Logger
	limiter *rate.Limiter
}

// NewReconnector paces reconnect attempts to at most one per interval,
// with a burst of 1 (no thundering-herd retry on first failure).
func NewReconnector(addr string, interval time.Duration, pool *core.BufPool, logger zerolog.Logger) *Reconnector {
	return &Reconnector{
		addr:    addr,
		pool:    pool,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Dial waits for the limiter to admit an attempt, then dials once. Callers
// loop on Dial until it returns a live connection or ctx is done.
func (r *Reconnector) Dial(ctx context.Context) (*Conn, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("reconnect: %w", err)
	}
	return DialTCP(ctx, r.addr, r.pool, r.logger)
}
