//go:build !linux

package transport

import (
	"syscall"
	"time"
)

// setTCPUserTimeout is a no-op on platforms without TCP_USER_TIMEOUT,
// matching stages/util_unsupported.go's "no support on this platform"
// fallback shape (there: an error; here a silent no-op, since the
// timeout is an optimization, not a correctness requirement).
func setTCPUserTimeout(c syscall.RawConn, timeout time.Duration) error {
	return nil
}
