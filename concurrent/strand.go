package concurrent

import "sync"

// Strand is a single-consumer task queue. Every closure posted to it runs
// on the same goroutine, in post order, never concurrently with another
// posted closure. It is the serialization primitive that lets the
// tcpio/udpio/entity packages treat framing, output-queue transitions and
// state-change callbacks as single-threaded, even though the blocking
// net.Conn calls that feed them run on their own goroutines.
type Strand struct {
	tasks  chan func()
	done   chan struct{}
	stopMu sync.Mutex
	stopped bool
}

// NewStrand starts the strand's consumer goroutine. backlog bounds the
// number of pending posts before Post blocks its caller.
func NewStrand(backlog int) *Strand {
	if backlog <= 0 {
		backlog = 1
	}

	s := &Strand{
		tasks: make(chan func(), backlog),
		done:  make(chan struct{}),
	}

	go s.run()
	return s
}

func (s *Strand) run() {
	defer close(s.done)
	for fn := range s.tasks {
		fn()
	}
}

// Post enqueues fn to run on the strand's goroutine. Returns false if the
// strand has already been closed; fn is never invoked in that case.
func (s *Strand) Post(fn func()) bool {
	s.stopMu.Lock()
	if s.stopped {
		s.stopMu.Unlock()
		return false
	}
	s.tasks <- fn
	s.stopMu.Unlock()
	return true
}

// PostAndWait posts fn and blocks until it has run.
func (s *Strand) PostAndWait(fn func()) bool {
	wait := make(chan struct{})
	ok := s.Post(func() {
		defer close(wait)
		fn()
	})
	if !ok {
		return false
	}
	<-wait
	return true
}

// Close stops accepting new posts and waits for any already-queued tasks
// to drain. Safe to call more than once.
func (s *Strand) Close() {
	s.stopMu.Lock()
	if s.stopped {
		s.stopMu.Unlock()
		return
	}
	s.stopped = true
	close(s.tasks)
	s.stopMu.Unlock()
	<-s.done
}
