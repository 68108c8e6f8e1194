// Package ioqueue implements the per-IO-handler outbound buffer queue
// and the shared started/write-in-flight bookkeeping every IO handler
// (TCP or UDP) needs. All mutation is expected to happen on the owning
// entity's single-threaded executor; see the netio/concurrent package.
package ioqueue

import (
	"net"

	metrics "github.com/rcrowley/go-metrics"

	"github.com/pkopriv2/netio/buf"
	"github.com/pkopriv2/netio/utils"
)

// Element is one queued outbound send: a buffer plus an optional
// destination (UDP only; nil for TCP and for UDP sends that rely on the
// endpoint's default destination).
type Element struct {
	Payload     *buf.SharedBuffer
	Destination net.Addr
}

// Stats is a point-in-time snapshot of OutputQueue occupancy.
type Stats struct {
	QueueSize   int
	BytesQueued int64
}

// OutputQueue is an ordered sequence of queued Elements plus size/byte
// counters. At most one write may be in flight per handler; additional
// sends are appended here and dispatched as the in-flight write
// completes (see IoCommon.GetNextElement).
type OutputQueue struct {
	elements []Element
	bytes    int64

	depthGauge metrics.GaugeFloat64
	bytesGauge metrics.GaugeFloat64
}

// NewOutputQueue builds an empty queue, registering its depth/byte
// gauges in registry under name (private per-handler registry, never a
// shared global one -- see SPEC_FULL.md §3.3).
func NewOutputQueue(registry metrics.Registry, name string) *OutputQueue {
	q := &OutputQueue{
		depthGauge: metrics.NewGaugeFloat64(),
		bytesGauge: metrics.NewGaugeFloat64(),
	}
	registry.Register(name+".queue.depth", q.depthGauge)
	registry.Register(name+".queue.bytes", q.bytesGauge)
	return q
}

func (q *OutputQueue) push(e Element) {
	q.elements = append(q.elements, e)
	q.bytes += int64(e.Payload.Len())
	q.sync()
}

func (q *OutputQueue) pop() (Element, bool) {
	if len(q.elements) == 0 {
		return Element{}, false
	}

	e := q.elements[0]
	q.elements = q.elements[1:]
	q.bytes -= int64(e.Payload.Len())
	q.sync()
	return e, true
}

func (q *OutputQueue) sync() {
	q.depthGauge.Update(float64(len(q.elements)))
	q.bytesGauge.Update(float64(q.bytes))
}

// Stats snapshots the current queue length and pending-bytes count.
func (q *OutputQueue) Stats() Stats {
	return Stats{QueueSize: len(q.elements), BytesQueued: q.bytes}
}

// IoCommon serializes the lifecycle transitions shared by every IO
// handler: started/stopped, and the single-writer-in-flight discipline
// over its OutputQueue.
//
// Every method here is only ever called from the owning entity's
// strand, with one exception noted on IsStarted: the started/writeInFlight
// flags are atomics purely so a handle can read IsStarted-style state
// from any thread without hopping onto the strand.
type IoCommon struct {
	started       *utils.AtomicBool
	writeInFlight *utils.AtomicBool
	queue         *OutputQueue
}

// NewIoCommon builds an IoCommon with a fresh OutputQueue registered
// under name in registry.
func NewIoCommon(registry metrics.Registry, name string) *IoCommon {
	return &IoCommon{
		started:       utils.NewAtomicBool(),
		writeInFlight: utils.NewAtomicBool(),
		queue:         NewOutputQueue(registry, name),
	}
}

// SetIoStarted atomically flips started false->true. Returns false if it
// was already started.
func (c *IoCommon) SetIoStarted() bool {
	return c.started.Swap(false, true)
}

// Stop atomically flips started true->false. Returns false if it was
// already stopped. A stopped handler must reject further sends.
func (c *IoCommon) Stop() bool {
	return c.started.Swap(true, false)
}

// IsStarted is safe to call from any thread.
func (c *IoCommon) IsStarted() bool {
	return c.started.Get()
}

// StartWriteSetup implements the send()/write-scheduling contract:
//   - not started: drops buf, returns false.
//   - a write is already in flight: enqueues buf, returns false (do not
//     start a new write).
//   - otherwise: marks writeInFlight, returns true (caller must now
//     start exactly one async write of buf).
func (c *IoCommon) StartWriteSetup(payload *buf.SharedBuffer, dest net.Addr) bool {
	if !c.started.Get() {
		return false
	}

	if !c.writeInFlight.Swap(false, true) {
		c.queue.push(Element{Payload: payload, Destination: dest})
		return false
	}

	return true
}

// GetNextElement is called on write completion. It pops the next queued
// element (keeping writeInFlight true) or clears writeInFlight and
// returns ok=false when the queue is drained.
func (c *IoCommon) GetNextElement() (Element, bool) {
	e, ok := c.queue.pop()
	if !ok {
		c.writeInFlight.Set(false)
		return Element{}, false
	}
	return e, true
}

// GetOutputQueueStats snapshots the underlying OutputQueue.
func (c *IoCommon) GetOutputQueueStats() Stats {
	return c.queue.Stats()
}
