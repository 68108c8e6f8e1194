package conn

import (
	"net"
)

// MemPipe returns two net.Conn endpoints connected by in-memory
// pipes, for framing-focused unit tests that don't need a real
// socket. Addresses are synthetic (pipe) but satisfy net.Conn's
// interface fully, including independent halves for each direction,
// so tests can exercise tcpio.Handler without a loopback listener.
func MemPipe() (a, b net.Conn) {
	return net.Pipe()
}
