// Package udpio implements the single-object UDP entity+IO-handler:
// UDP has no connection, so one Endpoint carries both the "entity"
// bind/lifecycle role and the "IO handler" read/write role that TCP
// splits across entity and tcpio.Handler.
package udpio

import (
	"net"

	metrics "github.com/rcrowley/go-metrics"

	"github.com/pkopriv2/netio/buf"
	"github.com/pkopriv2/netio/common"
	"github.com/pkopriv2/netio/concurrent"
	"github.com/pkopriv2/netio/handle"
	"github.com/pkopriv2/netio/ioqueue"
	"github.com/pkopriv2/netio/neterr"
	"github.com/pkopriv2/netio/utils"
)

// MessageHandler receives one inbound datagram. The byte slice is a
// borrowed view valid only for the duration of the call. Returning
// false drives the endpoint to stop with neterr.UdpIoHandlerStopped.
type MessageHandler func(payload []byte, self handle.Handle[Endpoint], sender net.Addr) bool

// StateChangeCallback is Endpoint's counterpart of
// entity.IoReadyCallback/entity.StopCallback, folded into one
// signature with a starting flag. It is declared here because the
// entity callbacks carry a handle.Handle[tcpio.Handler].
type StateChangeCallback func(self handle.Handle[Endpoint], cause error, count int, starting bool)

// ErrCallback reports the read error that ends a UDP endpoint's
// receive loop; it fires just before the endpoint stops and stopCb
// fires. No other error, and no non-fatal error, is reported through it.
type ErrCallback func(self handle.Handle[Endpoint], cause error)

const (
	confStrandBacklog    = "netio.udpio.strand.backlog"
	defaultStrandBacklog = 64

	// maxUDPDatagramSize is the largest payload a UDP/IPv4 datagram can
	// carry; StartIo's read buffer is clamped to it regardless of what
	// the caller requests.
	maxUDPDatagramSize = 65507
)

// Endpoint is a bound (or unbound, send-only) UDP socket plus the
// IoCommon bookkeeping every IO handler needs for its outbound queue.
type Endpoint struct {
	conn       *net.UDPConn
	defaultDst *net.UDPAddr

	common *ioqueue.IoCommon
	strand *concurrent.Strand
	pool   common.WorkPool
	log    common.Logger

	started *utils.AtomicBool

	maxSize    int
	msgHandler MessageHandler

	stopCb StateChangeCallback
	errCb  ErrCallback

	bytesRead    int64
	bytesWritten int64
	datagramsIn  int64

	self handle.Handle[Endpoint]
}

// NewEndpoint wraps an already-bound or already-connected *net.UDPConn.
// defaultDst, if non-nil, is used by Send when no per-call destination
// is given.
func NewEndpoint(ctx common.Context, name string, conn *net.UDPConn, defaultDst *net.UDPAddr, pool common.WorkPool) *Endpoint {
	backlog := common.Max(1, ctx.Config().OptionalInt(confStrandBacklog, defaultStrandBacklog))
	e := &Endpoint{
		conn:       conn,
		defaultDst: defaultDst,
		common:     ioqueue.NewIoCommon(metrics.NewRegistry(), name),
		strand:     concurrent.NewStrand(backlog),
		pool:       pool,
		log:        ctx.Logger(),
		started:    utils.NewAtomicBool(),
	}
	e.self = handle.Wrap(e)
	return e
}

// Start announces the endpoint as ready. Per spec.md §4.4 this always
// succeeds once the socket is already bound (bind failure happens
// earlier, in the netip facade's constructor, since Go's net package
// has no separate bind-without-listen step to fail asynchronously).
func (e *Endpoint) Start(readyCb StateChangeCallback, stopCb StateChangeCallback) bool {
	if !e.started.Swap(false, true) {
		return false
	}
	e.stopCb = stopCb
	if readyCb != nil {
		readyCb(e.self, nil, 1, true)
	}
	return true
}

// StartIo begins the async receive-from loop. msgHandler is invoked
// once per datagram; maxSize bounds the per-datagram read buffer.
// May be called exactly once.
func (e *Endpoint) StartIo(maxSize int, msgHandler MessageHandler, errCb ErrCallback) bool {
	if !e.common.SetIoStarted() {
		return false
	}

	e.maxSize = common.Min(maxSize, maxUDPDatagramSize)
	e.msgHandler = msgHandler
	e.errCb = errCb

	e.pool.Submit(e.readLoop)
	return true
}

// IsIoStarted reports whether StartIo has succeeded and the endpoint
// has not yet stopped.
func (e *Endpoint) IsIoStarted() bool {
	return e.common.IsStarted()
}

// Send transmits payload to endp, or to the endpoint's default
// destination if endp is nil. Rejected (buffer dropped) if neither is
// available, or if IO hasn't started.
func (e *Endpoint) Send(payload *buf.SharedBuffer, endp net.Addr) {
	e.strand.Post(func() {
		dest := endp
		if dest == nil {
			dest = e.defaultDst
		}
		if dest == nil {
			payload.Release()
			return
		}

		if e.common.StartWriteSetup(payload, dest) {
			e.pool.Submit(func() { e.writeOnce(payload, dest) })
		}
	})
}

// Stop closes the socket and fires stopCb with neterr.UdpEntityStopped.
// Idempotent; returns false if already stopped.
func (e *Endpoint) Stop() bool {
	var stopped bool
	e.strand.PostAndWait(func() {
		stopped = e.onStop(neterr.New(neterr.UdpEntityStopped))
	})
	return stopped
}

// GetOutputQueueStats snapshots the pending outbound queue.
func (e *Endpoint) GetOutputQueueStats() ioqueue.Stats {
	return e.common.GetOutputQueueStats()
}

// LocalAddr returns the endpoint's bound address.
func (e *Endpoint) LocalAddr() net.Addr {
	return e.conn.LocalAddr()
}

// Self returns a weak handle observing this endpoint.
func (e *Endpoint) Self() handle.Handle[Endpoint] {
	return e.self
}

func (e *Endpoint) readLoop() {
	buf := make([]byte, e.maxSize)
	for {
		n, sender, err := e.conn.ReadFromUDP(buf)

		var data []byte
		if n > 0 {
			data = append([]byte(nil), buf[:n]...)
		}

		var cont bool
		e.strand.PostAndWait(func() {
			cont = e.onReadCompletion(data, sender, err)
		})
		if !cont {
			return
		}
	}
}

func (e *Endpoint) onReadCompletion(data []byte, sender net.Addr, err error) bool {
	if err != nil {
		if !e.started.Get() {
			return false // Stop() already closed the socket; this is expected
		}
		if e.errCb != nil {
			e.errCb(e.self, neterr.Wrap(neterr.UdpIoHandlerStopped, err))
		}
		e.onStop(neterr.Wrap(neterr.UdpIoHandlerStopped, err))
		return false
	}

	e.bytesRead += int64(len(data))
	e.datagramsIn++

	if e.msgHandler == nil {
		return true
	}
	if !e.msgHandler(data, e.self, sender) {
		e.onStop(neterr.New(neterr.UdpIoHandlerStopped))
		return false
	}
	return true
}

// onStop is gated on e.started, not IoCommon -- Stop() must close the
// socket and fire stopCb even if StartIo was never called. IoCommon's
// own Stop() is invoked too (best-effort; it's a no-op if IO was
// never started) purely so IsIoStarted reflects reality afterward.
// onStop always runs on e.strand's own goroutine (called from within
// Stop's and onReadCompletion's strand.PostAndWait closures), so the
// strand can't be closed synchronously here -- that would deadlock
// run() waiting on itself. Closing it from a spawned goroutine lets
// run() finish draining and exit on its own.
func (e *Endpoint) onStop(cause error) bool {
	if !e.started.Swap(true, false) {
		return false
	}
	e.common.Stop()
	e.conn.Close()
	if e.stopCb != nil {
		e.stopCb(e.self, cause, 0, false)
	}
	go e.strand.Close()
	return true
}

func (e *Endpoint) writeOnce(payload *buf.SharedBuffer, dest net.Addr) {
	udpDest, _ := dest.(*net.UDPAddr)
	n, err := e.conn.WriteToUDP(payload.Bytes(), udpDest)
	e.strand.Post(func() {
		e.onWriteCompletion(payload, n, err)
	})
}

func (e *Endpoint) onWriteCompletion(payload *buf.SharedBuffer, n int, err error) {
	payload.Release()

	if err != nil {
		e.log.Debug("udpio: write failed: %v", err)
	} else {
		e.bytesWritten += int64(n)
	}

	next, ok := e.common.GetNextElement()
	if !ok {
		return
	}
	e.pool.Submit(func() { e.writeOnce(next.Payload, next.Destination) })
}
