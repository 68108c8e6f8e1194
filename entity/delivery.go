package entity

import (
	"github.com/pkopriv2/netio/handle"
	"github.com/pkopriv2/netio/tcpio"
	"github.com/pkopriv2/netio/waitqueue"
)

// StateChange is the payload both delivery adapters carry: one
// IoReadyCallback/StopCallback invocation, flattened into a single
// value. Cause is nil on a ready event.
type StateChange struct {
	Self     handle.Handle[tcpio.Handler]
	Cause    error
	Count    int
	Starting bool
}

// FuturePair builds one-shot start/stop callbacks backed by two
// channels that each buffer one event. The callbacks have the TCP
// callback types, so the pair fits a TcpConnector; udpio.Endpoint's
// StateChangeCallback has a different signature and is not served by
// this adapter. Per spec.md §4.9 it must not be used for a
// TcpAcceptor, which may start/stop many handlers over its lifetime --
// use WaitQueueStream for that.
func FuturePair() (ioReadyCb IoReadyCallback, stopCb StopCallback, start <-chan StateChange, stop <-chan StateChange) {
	startCh := make(chan StateChange, 1)
	stopCh := make(chan StateChange, 1)

	ioReadyCb = func(self handle.Handle[tcpio.Handler], count int) {
		startCh <- StateChange{Self: self, Count: count, Starting: true}
	}
	stopCb = func(self handle.Handle[tcpio.Handler], cause error, count int) {
		stopCh <- StateChange{Self: self, Cause: cause, Count: count, Starting: false}
	}

	return ioReadyCb, stopCb, startCh, stopCh
}

// WaitQueueStream pushes every start/stop event into q. Suitable for
// TcpAcceptor and TcpConnector (mandatory for a TcpAcceptor per
// spec.md §4.9); like FuturePair, its callbacks have the TCP callback
// types and do not fit udpio.Endpoint.
func WaitQueueStream(q waitqueue.Queue[StateChange]) (IoReadyCallback, StopCallback) {
	ioReadyCb := func(self handle.Handle[tcpio.Handler], count int) {
		q.Push(StateChange{Self: self, Count: count, Starting: true})
	}
	stopCb := func(self handle.Handle[tcpio.Handler], cause error, count int) {
		q.Push(StateChange{Self: self, Cause: cause, Count: count, Starting: false})
	}
	return ioReadyCb, stopCb
}

// WaitQueueStreamAutoStart behaves like WaitQueueStream, but also
// calls StartIo on the freshly-readied handler before pushing its
// event, so the next message may already be arriving by the time a
// consumer observes the event (spec.md §4.9).
func WaitQueueStreamAutoStart(q waitqueue.Queue[StateChange], framing tcpio.Framing, msgHandler tcpio.MessageHandler) (IoReadyCallback, StopCallback) {
	ioReadyCb := func(self handle.Handle[tcpio.Handler], count int) {
		if h, err := self.Upgrade(); err == nil {
			h.StartIo(framing, msgHandler)
		}
		q.Push(StateChange{Self: self, Count: count, Starting: true})
	}
	stopCb := func(self handle.Handle[tcpio.Handler], cause error, count int) {
		q.Push(StateChange{Self: self, Cause: cause, Count: count, Starting: false})
	}
	return ioReadyCb, stopCb
}
