//go:build linux

package transport

import (
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// setTCPUserTimeout sets TCP_USER_TIMEOUT on the connection so a dead peer
// (cable pulled, box powered off) is detected within timeout even with no
// application-level heartbeat, instead of lingering on the default
// retransmission timeout. Grounded on stages/util_linux.go's
// syscall.RawConn.Control + unix.SetsockoptString idiom for per-platform
// socket tuning.
func setTCPUserTimeout(c syscall.RawConn, timeout time.Duration) error {
	var err error
	ctrlErr := c.Control(func(fd uintptr) {
		err = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_USER_TIMEOUT, int(timeout.Milliseconds()))
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return err
}
