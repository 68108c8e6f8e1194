// Package netip is the application-facing facade spec.md §6 asks for:
// one call per socket role, binding the socket (or preparing the
// connector) and wrapping it in the matching entity, so calling code
// never builds an entity or binds a socket itself.
package netip

import (
	"net"
	"sync"
	"time"

	"github.com/pkopriv2/netio/common"
	"github.com/pkopriv2/netio/concurrent"
	"github.com/pkopriv2/netio/entity"
	"github.com/pkopriv2/netio/handle"
	"github.com/pkopriv2/netio/udpio"
)

// Stack owns the strong references to every entity it constructs,
// mirroring the original's net_ip class: basic_net_entity (our
// handle.Handle) only ever holds a weak_ptr-equivalent, and it is
// whatever object built it -- here, the Stack -- that holds the
// shared_ptr-equivalent keeping the entity alive. Application code
// that only ever stores the handle returned from a Make* method can
// never accidentally pin an entity's lifetime to its own, matching
// spec.md §5's "sockets and timers are bound to an entity for its
// lifetime; they are released on stop() (or on drop of the last
// strong reference)" -- StopAll is this Stack's "drop every strong
// reference" moment.
type Stack struct {
	mu         sync.Mutex
	acceptors  []*entity.TcpAcceptor
	connectors []*entity.TcpConnector
	endpoints  []*udpio.Endpoint
}

// NewStack returns an empty Stack ready for Make* calls.
func NewStack() *Stack {
	return &Stack{}
}

// MakeTCPAcceptor binds localEndpoint ("host:port", host may be empty
// for all interfaces) and returns a weak handle to a TcpAcceptor ready
// for Start. reuseAddr sets SO_REUSEADDR on the listening socket
// before bind, so a restarted process can rebind a port still draining
// TIME_WAIT connections.
func (s *Stack) MakeTCPAcceptor(ctx common.Context, pool common.WorkPool, localEndpoint string, reuseAddr bool) (handle.Handle[entity.TcpAcceptor], error) {
	addr, err := net.ResolveTCPAddr("tcp", localEndpoint)
	if err != nil {
		return handle.Handle[entity.TcpAcceptor]{}, err
	}

	listener, err := listenTCP(addr, reuseAddr)
	if err != nil {
		return handle.Handle[entity.TcpAcceptor]{}, err
	}

	a := entity.NewTcpAcceptor(ctx, listener, pool)

	s.mu.Lock()
	s.acceptors = append(s.acceptors, a)
	s.mu.Unlock()

	return a.Self(), nil
}

// MakeTCPConnectorHost returns a weak handle to a TcpConnector that
// resolves host via DNS once, on Start, and then cycles through the
// resolved addresses, reconnecting every reconnectDuration while
// disconnected. Reconnect attempts do not resolve host again.
func (s *Stack) MakeTCPConnectorHost(ctx common.Context, pool common.WorkPool, host, port string, reconnectDuration time.Duration) handle.Handle[entity.TcpConnector] {
	c := entity.NewTcpConnectorHost(ctx, pool, host, port, entity.DefaultConnectorOptions(reconnectDuration))

	s.mu.Lock()
	s.connectors = append(s.connectors, c)
	s.mu.Unlock()

	return c.Self()
}

// MakeTCPConnectorEndpoints returns a weak handle to a TcpConnector
// over a fixed candidate list of "host:port" strings, skipping DNS
// resolution.
func (s *Stack) MakeTCPConnectorEndpoints(ctx common.Context, pool common.WorkPool, endpoints []string, reconnectDuration time.Duration) handle.Handle[entity.TcpConnector] {
	c := entity.NewTcpConnectorEndpoints(ctx, pool, endpoints, entity.DefaultConnectorOptions(reconnectDuration))

	s.mu.Lock()
	s.connectors = append(s.connectors, c)
	s.mu.Unlock()

	return c.Self()
}

// MakeUDPUnicast binds a UDP socket at localEndpoint ("host:port"; an
// empty string binds an OS-assigned port on all interfaces) and
// returns a weak handle to an Endpoint ready for Start. Datagrams are
// sent with an explicit destination via Endpoint.Send; there is no
// default peer.
func (s *Stack) MakeUDPUnicast(ctx common.Context, pool common.WorkPool, localEndpoint string) (handle.Handle[udpio.Endpoint], error) {
	var addr *net.UDPAddr
	if localEndpoint != "" {
		resolved, err := net.ResolveUDPAddr("udp", localEndpoint)
		if err != nil {
			return handle.Handle[udpio.Endpoint]{}, err
		}
		addr = resolved
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return handle.Handle[udpio.Endpoint]{}, err
	}

	e := udpio.NewEndpoint(ctx, "udp/"+conn.LocalAddr().String(), conn, nil, pool)

	s.mu.Lock()
	s.endpoints = append(s.endpoints, e)
	s.mu.Unlock()

	return e.Self(), nil
}

// MakeUDPMulticastReceiver joins group on the default multicast
// interface at port and returns a weak handle to an Endpoint ready for
// Start.
func (s *Stack) MakeUDPMulticastReceiver(ctx common.Context, pool common.WorkPool, group string, port int) (handle.Handle[udpio.Endpoint], error) {
	ip := net.ParseIP(group)
	if ip == nil {
		return handle.Handle[udpio.Endpoint]{}, &net.AddrError{Err: "invalid multicast group", Addr: group}
	}

	conn, err := udpio.BindMulticast(nil, ip, port)
	if err != nil {
		return handle.Handle[udpio.Endpoint]{}, err
	}

	e := udpio.NewEndpoint(ctx, "udp-multicast/"+group, conn, nil, pool)

	s.mu.Lock()
	s.endpoints = append(s.endpoints, e)
	s.mu.Unlock()

	return e.Self(), nil
}

// StopAll stops every entity this Stack has ever constructed and
// drops the Stack's own strong references to them. Any handle the
// application is still holding will observe HandleExpired once the
// garbage collector reclaims the now-unreferenced entity. Entities are
// stopped concurrently -- spec.md's concurrency model gives no
// ordering guarantee across entities, so there's nothing to gain from
// tearing them down one at a time -- using concurrent.Wait to block
// until every Stop call has returned.
func (s *Stack) StopAll() {
	s.mu.Lock()
	acceptors := s.acceptors
	connectors := s.connectors
	endpoints := s.endpoints
	s.acceptors = nil
	s.connectors = nil
	s.endpoints = nil
	s.mu.Unlock()

	wg := concurrent.NewWait()
	for _, a := range acceptors {
		wg.Inc()
		go func(a *entity.TcpAcceptor) {
			defer wg.Dec()
			a.Stop()
		}(a)
	}
	for _, c := range connectors {
		wg.Inc()
		go func(c *entity.TcpConnector) {
			defer wg.Dec()
			c.Stop()
		}(c)
	}
	for _, e := range endpoints {
		wg.Inc()
		go func(e *udpio.Endpoint) {
			defer wg.Dec()
			e.Stop()
		}(e)
	}
	<-wg.Wait()
}
