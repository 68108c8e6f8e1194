// Package waitqueue implements the closable, bounded/unbounded MPMC FIFO
// that the rest of netio uses both internally (surfacing entity
// state-change events to application threads) and as a standalone
// primitive applications may use directly.
package waitqueue

import (
	"sync"
	"time"

	wqueue "github.com/Workiva/go-datastructures/queue"
	"github.com/pkg/errors"
)

// ErrClosed is returned by Push once the queue has been closed.
var ErrClosed = errors.New("WAITQUEUE:CLOSED")

// Queue is a closable, multi-producer multi-consumer FIFO of T.
//
// Push appends a value and wakes at most one waiter; it fails once the
// queue is closed. Pop blocks until a value is available or the queue is
// closed-and-empty (in which case it returns ok=false). TryPop never
// blocks. Close is idempotent and wakes every waiter. Open reopens an
// empty, closed unbounded queue; a bounded (ring-backed) queue cannot be
// reopened, and its Open always returns an error.
type Queue[T any] interface {
	Push(v T) error
	Pop() (T, bool)
	TryPop() (T, bool)
	Close()
	Open() error
	Size() int
	Empty() bool
}

// NewBounded returns a Queue[T] backed by a fixed-capacity ring buffer.
// Per spec, callers that know their traffic is bursty-but-bounded (e.g.
// a single IO handler's event stream) should prefer this over the
// unbounded variant to avoid unbounded heap growth under a slow consumer.
func NewBounded[T any](capacity int) Queue[T] {
	if capacity <= 0 {
		panic("waitqueue: capacity must be positive")
	}
	return &ringQueue[T]{ring: wqueue.NewRingBuffer(uint64(capacity))}
}

// NewUnbounded returns a Queue[T] backed by a growable slice, guarded by
// a mutex and condition variable, as described by the wait-queue
// contract. Suitable when callers would rather grow memory than block a
// producer (e.g. an acceptor's default state-change stream).
func NewUnbounded[T any]() Queue[T] {
	q := &condQueue[T]{}
	q.cond = sync.NewCond(&q.lock)
	return q
}

// ringQueue wraps github.com/Workiva/go-datastructures/queue.RingBuffer,
// recovering static typing by boxing/unboxing through interface{}.
type ringQueue[T any] struct {
	ring *wqueue.RingBuffer
}

func (q *ringQueue[T]) Push(v T) error {
	if err := q.ring.Put(v); err != nil {
		return ErrClosed
	}
	return nil
}

func (q *ringQueue[T]) Pop() (T, bool) {
	v, err := q.ring.Get()
	if err != nil {
		var zero T
		return zero, false
	}
	return v.(T), true
}

func (q *ringQueue[T]) TryPop() (T, bool) {
	// Poll(0) waits with no timeout; the shortest positive timeout makes
	// this a single non-blocking attempt.
	v, err := q.ring.Poll(time.Nanosecond)
	if err != nil {
		var zero T
		return zero, false
	}
	return v.(T), true
}

func (q *ringQueue[T]) Close() {
	if !q.ring.IsDisposed() {
		q.ring.Dispose()
	}
}

func (q *ringQueue[T]) Open() error {
	return errors.New("WAITQUEUE:REOPEN_UNSUPPORTED: bounded ring-backed queues cannot be reopened")
}

func (q *ringQueue[T]) Size() int {
	return int(q.ring.Len())
}

func (q *ringQueue[T]) Empty() bool {
	return q.Size() == 0
}

// condQueue is the unbounded, mutex+cond backed implementation.
type condQueue[T any] struct {
	lock   sync.Mutex
	cond   *sync.Cond
	buf    []T
	closed bool
}

func (q *condQueue[T]) Push(v T) error {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.closed {
		return ErrClosed
	}

	q.buf = append(q.buf, v)
	q.cond.Signal()
	return nil
}

func (q *condQueue[T]) Pop() (T, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	for len(q.buf) == 0 && !q.closed {
		q.cond.Wait()
	}

	if len(q.buf) == 0 {
		var zero T
		return zero, false
	}

	v := q.buf[0]
	q.buf = q.buf[1:]
	return v, true
}

func (q *condQueue[T]) TryPop() (T, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if len(q.buf) == 0 {
		var zero T
		return zero, false
	}

	v := q.buf[0]
	q.buf = q.buf[1:]
	return v, true
}

func (q *condQueue[T]) Close() {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

func (q *condQueue[T]) Open() error {
	q.lock.Lock()
	defer q.lock.Unlock()
	if len(q.buf) != 0 {
		return errors.New("WAITQUEUE:NOT_EMPTY: Open is only permitted on an empty queue")
	}
	q.closed = false
	return nil
}

func (q *condQueue[T]) Size() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.buf)
}

func (q *condQueue[T]) Empty() bool {
	return q.Size() == 0
}
