// Package entity implements the long-lived socket-role state
// machines: TcpAcceptor (listen+accept), TcpConnector (connect with
// reconnect), the Resolver adapter around DNS lookups, and the
// future/wait-queue delivery adapters that bridge their state-change
// callbacks to application code.
package entity

import (
	"sync"

	"github.com/emirpasic/gods/sets/hashset"
	metrics "github.com/rcrowley/go-metrics"

	"github.com/pkopriv2/netio/handle"
	"github.com/pkopriv2/netio/tcpio"
	"github.com/pkopriv2/netio/utils"
)

const (
	confStrandBacklog    = "netio.entity.strand.backlog"
	defaultStrandBacklog = 64
)

// IoReadyCallback is invoked once per new IO handler becoming ready
// (a TCP accept, or a connector's single successful connect).
type IoReadyCallback func(self handle.Handle[tcpio.Handler], count int)

// StopCallback is invoked once per IO handler tearing down, carrying
// the reason and the handler count immediately after the removal.
type StopCallback func(self handle.Handle[tcpio.Handler], cause error, count int)

// Base is the scaffolding shared by TcpAcceptor and TcpConnector:
// an atomic started flag, storage for the two state-change callbacks,
// and (for the acceptor) a live-handler set. Per spec.md §4.7 the
// handler set is only ever mutated from the owning entity's strand;
// the mutex here exists solely so ConnectionCount can be read from
// any thread without hopping onto the strand.
type Base struct {
	started *utils.AtomicBool

	ioReadyCb IoReadyCallback
	stopCb    StopCallback

	mu       sync.Mutex
	handlers *hashset.Set

	countGauge metrics.Gauge
}

// NewBase constructs an empty Base, registering a connection-count
// gauge under name in registry.
func NewBase(registry metrics.Registry, name string) *Base {
	b := &Base{
		started:    utils.NewAtomicBool(),
		handlers:   hashset.New(),
		countGauge: metrics.NewGauge(),
	}
	registry.Register(name+".connections", b.countGauge)
	return b
}

// Start atomically flips started false->true.
func (b *Base) Start() bool {
	return b.started.Swap(false, true)
}

// Stop atomically flips started true->false.
func (b *Base) Stop() bool {
	return b.started.Swap(true, false)
}

// IsStarted is safe to call from any thread.
func (b *Base) IsStarted() bool {
	return b.started.Get()
}

// SetCallbacks installs the state-change callbacks. Called once, from
// Start, before any handler can be added.
func (b *Base) SetCallbacks(ioReadyCb IoReadyCallback, stopCb StopCallback) {
	b.ioReadyCb = ioReadyCb
	b.stopCb = stopCb
}

// AddHandler inserts h into the live set and returns the new count.
func (b *Base) AddHandler(h *tcpio.Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers.Add(h)
	n := b.handlers.Size()
	b.countGauge.Update(int64(n))
	return n
}

// RemoveHandler removes h from the live set and returns the new
// count.
func (b *Base) RemoveHandler(h *tcpio.Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers.Remove(h)
	n := b.handlers.Size()
	b.countGauge.Update(int64(n))
	return n
}

// ClearHandlers removes and returns every handler currently in the
// set, for a bulk shutdown.
func (b *Base) ClearHandlers() []*tcpio.Handler {
	b.mu.Lock()
	defer b.mu.Unlock()

	vals := b.handlers.Values()
	out := make([]*tcpio.Handler, 0, len(vals))
	for _, v := range vals {
		out = append(out, v.(*tcpio.Handler))
	}
	b.handlers.Clear()
	b.countGauge.Update(0)
	return out
}

// ConnectionCount returns |handlerSet|. Safe from any thread.
func (b *Base) ConnectionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handlers.Size()
}

// FireIoReady invokes the installed IoReadyCallback, if any.
func (b *Base) FireIoReady(self handle.Handle[tcpio.Handler], count int) {
	if b.ioReadyCb != nil {
		b.ioReadyCb(self, count)
	}
}

// FireStop invokes the installed StopCallback, if any. self is the
// zero handle.Handle[tcpio.Handler]{} when no handler was ever
// constructed (e.g. a TcpConnector's resolver failed before connect).
func (b *Base) FireStop(self handle.Handle[tcpio.Handler], cause error, count int) {
	if b.stopCb != nil {
		b.stopCb(self, cause, count)
	}
}
