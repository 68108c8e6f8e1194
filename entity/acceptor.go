package entity

import (
	"fmt"
	"net"

	metrics "github.com/rcrowley/go-metrics"

	"github.com/pkopriv2/netio/common"
	"github.com/pkopriv2/netio/concurrent"
	"github.com/pkopriv2/netio/handle"
	"github.com/pkopriv2/netio/neterr"
	"github.com/pkopriv2/netio/tcpio"
)

// TcpAcceptor listens on a bound socket and accepts connections
// indefinitely until Stop. Each accepted connection becomes a
// tcpio.Handler tracked in the live-handler set (spec.md §4.5).
type TcpAcceptor struct {
	base     *Base
	listener *net.TCPListener
	pool     common.WorkPool
	strand   *concurrent.Strand
	ctx      common.Context

	self handle.Handle[TcpAcceptor]
}

// NewTcpAcceptor wraps an already-bound listener. Binding (and the
// SO_REUSEADDR decision spec.md §6 asks makeTcpAcceptor to take) is
// the netip facade's job; this type only ever Accepts.
func NewTcpAcceptor(ctx common.Context, listener *net.TCPListener, pool common.WorkPool) *TcpAcceptor {
	backlog := common.Max(1, ctx.Config().OptionalInt(confStrandBacklog, defaultStrandBacklog))
	a := &TcpAcceptor{
		base:     NewBase(metrics.NewRegistry(), fmt.Sprintf("acceptor(%v)", listener.Addr())),
		listener: listener,
		pool:     pool,
		strand:   concurrent.NewStrand(backlog),
		ctx:      ctx,
	}
	a.self = handle.Wrap(a)
	return a
}

// Start begins the accept loop. ioReadyCb fires once per accepted
// connection; stopCb fires once per handler teardown, including once
// per still-live handler, with neterr.TcpAcceptorStopped, when Stop
// tears them all down.
func (a *TcpAcceptor) Start(ioReadyCb IoReadyCallback, stopCb StopCallback) bool {
	if !a.base.Start() {
		return false
	}
	a.base.SetCallbacks(ioReadyCb, stopCb)
	a.pool.Submit(a.acceptLoop)
	return true
}

// IsStarted reports whether Start has succeeded and Stop hasn't run.
func (a *TcpAcceptor) IsStarted() bool {
	return a.base.IsStarted()
}

// ConnectionCount returns the number of live accepted connections.
func (a *TcpAcceptor) ConnectionCount() int {
	return a.base.ConnectionCount()
}

// Self returns a weak handle observing this acceptor.
func (a *TcpAcceptor) Self() handle.Handle[TcpAcceptor] {
	return a.self
}

// Addr returns the listener's bound address.
func (a *TcpAcceptor) Addr() net.Addr {
	return a.listener.Addr()
}

// Stop cancels the accept loop, tears down every live handler (firing
// stopCb for each with neterr.TcpAcceptorStopped), and closes the
// listening socket. Idempotent.
func (a *TcpAcceptor) Stop() bool {
	var stopped bool
	a.strand.PostAndWait(func() {
		if !a.base.Stop() {
			return
		}
		a.listener.Close()

		handlers := a.base.ClearHandlers()
		remaining := len(handlers)
		for _, h := range handlers {
			remaining--
			h.StopQuiet()
			h.Close()
			a.base.FireStop(h.Self(), neterr.New(neterr.TcpAcceptorStopped), remaining)
		}
		stopped = true
	})
	if stopped {
		// Safe to close synchronously here: PostAndWait has already
		// returned, so this runs on Stop's caller, not a.strand's own
		// goroutine.
		a.strand.Close()
	}
	return stopped
}

func (a *TcpAcceptor) acceptLoop() {
	for {
		conn, err := a.listener.Accept()

		var cont bool
		a.strand.PostAndWait(func() {
			cont = a.onAccept(conn, err)
		})
		if !cont {
			return
		}
	}
}

func (a *TcpAcceptor) onAccept(conn net.Conn, err error) bool {
	if !a.base.IsStarted() {
		if conn != nil {
			conn.Close()
		}
		return false // Stop() already closed the listener; expected.
	}
	if err != nil {
		a.ctx.Logger().Error("tcpAcceptor(%v): accept failed: %v", a.listener.Addr(), err)
		return false
	}

	h := tcpio.NewHandler(a.ctx, fmt.Sprintf("acceptor(%v)/%v", a.listener.Addr(), conn.RemoteAddr()), conn, a.pool, a.onHandlerNotify)
	count := a.base.AddHandler(h)
	a.base.FireIoReady(h.Self(), count)
	return true
}

// onHandlerNotify is called from h's own strand; it hops onto the
// acceptor's strand before touching the handler set, per spec.md
// §4.5's "handler set is only mutated from the executor thread".
func (a *TcpAcceptor) onHandlerNotify(h *tcpio.Handler, cause error) {
	a.strand.Post(func() {
		h.Close()
		count := a.base.RemoveHandler(h)
		a.base.FireStop(h.Self(), cause, count)
	})
}
