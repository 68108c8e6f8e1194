//go:build windows

package netip

import "net"

// listenTCP binds addr. reuseAddr is ignored on Windows: SO_REUSEADDR
// there permits simultaneous binds to the same address, which is not
// the restart-friendly semantic this facade wants.
func listenTCP(addr *net.TCPAddr, reuseAddr bool) (*net.TCPListener, error) {
	return net.ListenTCP("tcp", addr)
}
