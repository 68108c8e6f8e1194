package entity

import (
	"fmt"
	"net"
	"time"

	metrics "github.com/rcrowley/go-metrics"

	"github.com/pkopriv2/netio/common"
	"github.com/pkopriv2/netio/concurrent"
	"github.com/pkopriv2/netio/handle"
	"github.com/pkopriv2/netio/neterr"
	"github.com/pkopriv2/netio/tcpio"
)

// ConnectorOptions configures a TcpConnector's reconnect behavior.
type ConnectorOptions struct {
	ReconnectDuration time.Duration

	// NotifyOnEveryReconnect resolves spec.md §9's open question on
	// stopCb cadence: true (the default) fires stopCb on every
	// teardown, including each reconnect cycle; false fires it only
	// once, for the connector's final teardown: the explicit Stop(),
	// or a failed DNS lookup, which also stops the connector.
	NotifyOnEveryReconnect bool
}

// DefaultConnectorOptions returns the documented default: fire stopCb
// on every reconnect cycle.
func DefaultConnectorOptions(reconnectDuration time.Duration) ConnectorOptions {
	return ConnectorOptions{ReconnectDuration: reconnectDuration, NotifyOnEveryReconnect: true}
}

// TcpConnector connects to one of a set of candidate endpoints,
// reconnecting on a fixed periodic timer for as long as it stays
// started (spec.md §4.6). At most one handler is ever live.
type TcpConnector struct {
	base     *Base
	ctx      common.Context
	pool     common.WorkPool
	strand   *concurrent.Strand
	ctrl     common.Control
	resolver *Resolver

	host string
	port string

	staticEndpoints bool
	endpoints       []string
	idx             int

	reconnectDur         time.Duration
	notifyEveryReconnect bool

	handler *tcpio.Handler
	self    handle.Handle[TcpConnector]
}

// NewTcpConnectorHost builds a connector that resolves host via DNS
// on start, trying every resolved address in turn.
func NewTcpConnectorHost(ctx common.Context, pool common.WorkPool, host, port string, opts ConnectorOptions) *TcpConnector {
	c := newConnector(ctx, pool, opts)
	c.host = host
	c.port = port
	return c
}

// NewTcpConnectorEndpoints builds a connector over a fixed candidate
// list ("host:port" strings), skipping DNS resolution entirely.
func NewTcpConnectorEndpoints(ctx common.Context, pool common.WorkPool, endpoints []string, opts ConnectorOptions) *TcpConnector {
	c := newConnector(ctx, pool, opts)
	c.staticEndpoints = true
	c.endpoints = endpoints
	return c
}

func newConnector(ctx common.Context, pool common.WorkPool, opts ConnectorOptions) *TcpConnector {
	backlog := common.Max(1, ctx.Config().OptionalInt(confStrandBacklog, defaultStrandBacklog))
	c := &TcpConnector{
		base:                 NewBase(metrics.NewRegistry(), "connector"),
		ctx:                  ctx,
		pool:                 pool,
		strand:               concurrent.NewStrand(backlog),
		ctrl:                 ctx.Control().Sub(),
		reconnectDur:         opts.ReconnectDuration,
		notifyEveryReconnect: opts.NotifyOnEveryReconnect,
	}
	c.resolver = NewResolver(pool)
	c.self = handle.Wrap(c)
	return c
}

// Start begins resolving (if constructed with a host) or connecting
// directly (if constructed with a static endpoint list).
func (c *TcpConnector) Start(ioReadyCb IoReadyCallback, stopCb StopCallback) bool {
	if !c.base.Start() {
		return false
	}
	c.base.SetCallbacks(ioReadyCb, stopCb)
	c.strand.Post(c.beginConnect)
	return true
}

// IsStarted reports whether Start has succeeded and Stop hasn't run.
func (c *TcpConnector) IsStarted() bool {
	return c.base.IsStarted()
}

// Self returns a weak handle observing this connector.
func (c *TcpConnector) Self() handle.Handle[TcpConnector] {
	return c.self
}

// Stop cancels the reconnect timer, stops the active handler (if
// any), and fires a final stopCb with neterr.TcpConnectorStopped.
// Idempotent.
func (c *TcpConnector) Stop() bool {
	var stopped bool
	c.strand.PostAndWait(func() {
		if !c.base.Stop() {
			return
		}
		c.ctrl.Close() // cancels any armed reconnect timer

		h := c.handler
		c.handler = nil

		self := handle.Handle[tcpio.Handler]{}
		if h != nil {
			h.StopQuiet()
			h.Close()
			c.base.RemoveHandler(h)
			self = h.Self()
		}
		c.base.FireStop(self, neterr.New(neterr.TcpConnectorStopped), 0)
		stopped = true
	})
	if stopped {
		// Safe to close synchronously here: PostAndWait has already
		// returned, so this runs on Stop's caller, not c.strand's own
		// goroutine.
		c.strand.Close()
	}
	return stopped
}

func (c *TcpConnector) beginConnect() {
	if !c.base.IsStarted() {
		return
	}
	if c.staticEndpoints {
		c.idx = 0
		c.tryConnect()
		return
	}

	c.resolver.Lookup(c.host, c.port, func(endpoints []string, err error) {
		c.strand.Post(func() { c.onResolved(endpoints, err) })
	})
}

func (c *TcpConnector) onResolved(endpoints []string, err error) {
	if !c.base.IsStarted() {
		return
	}
	if err != nil {
		c.base.Stop()
		c.base.FireStop(handle.Handle[tcpio.Handler]{}, neterr.Wrap(neterr.TcpConnectorStopped, err), 0)
		// This runs on c.strand's own goroutine (posted by beginConnect),
		// so closing synchronously would deadlock run() against itself;
		// a spawned goroutine lets it drain and exit on its own. Stop()
		// is now a no-op (c.base.Stop() already flipped started false)
		// so nothing else will ever close this strand.
		go c.strand.Close()
		return
	}

	c.endpoints = endpoints
	c.idx = 0
	c.tryConnect()
}

func (c *TcpConnector) tryConnect() {
	if !c.base.IsStarted() || len(c.endpoints) == 0 {
		c.armReconnect()
		return
	}

	endpoint := c.endpoints[c.idx%len(c.endpoints)]
	c.idx++

	c.pool.Submit(func() {
		conn, err := net.Dial("tcp", endpoint)
		c.strand.Post(func() { c.onConnectComplete(conn, err) })
	})
}

func (c *TcpConnector) onConnectComplete(conn net.Conn, err error) {
	if !c.base.IsStarted() {
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		if c.notifyEveryReconnect {
			c.base.FireStop(handle.Handle[tcpio.Handler]{}, neterr.Wrap(neterr.TcpConnectorStopped, err), 0)
		}
		c.armReconnect()
		return
	}

	h := tcpio.NewHandler(c.ctx, fmt.Sprintf("connector/%v", conn.RemoteAddr()), conn, c.pool, c.onHandlerNotify)
	c.handler = h
	count := c.base.AddHandler(h)
	c.base.FireIoReady(h.Self(), count)
}

// onHandlerNotify runs on h's own strand; it hops onto the
// connector's strand before touching c.handler or the reconnect
// state, mirroring TcpAcceptor.onHandlerNotify.
func (c *TcpConnector) onHandlerNotify(h *tcpio.Handler, cause error) {
	c.strand.Post(func() {
		h.Close()
		c.base.RemoveHandler(h)
		if c.handler == h {
			c.handler = nil
		}

		if !c.base.IsStarted() {
			return // Stop() is already firing the final stopCb
		}

		if c.notifyEveryReconnect {
			c.base.FireStop(h.Self(), cause, 0)
		}
		c.armReconnect()
	})
}

func (c *TcpConnector) armReconnect() {
	ch := common.NewTimer(c.ctrl, c.reconnectDur)
	go func() {
		<-ch
		c.strand.Post(c.onReconnectTimerFired)
	}()
}

func (c *TcpConnector) onReconnectTimerFired() {
	if !c.base.IsStarted() {
		return
	}
	c.tryConnect()
}
