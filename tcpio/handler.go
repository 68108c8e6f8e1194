// Package tcpio implements the per-connection TCP read/framing/write
// state machine. A Handler owns exactly one connected socket; reads are
// framed according to one of four strategies and delivered to an
// application message handler, while sends are serialized through an
// ioqueue.IoCommon so at most one write is ever in flight.
package tcpio

import (
	"bytes"
	"net"

	metrics "github.com/rcrowley/go-metrics"

	"github.com/pkopriv2/netio/buf"
	"github.com/pkopriv2/netio/common"
	"github.com/pkopriv2/netio/concurrent"
	"github.com/pkopriv2/netio/handle"
	"github.com/pkopriv2/netio/ioqueue"
	"github.com/pkopriv2/netio/neterr"
)

// FrameMode selects one of the four framing strategies spec'd for
// Handler.StartIo.
type FrameMode int

const (
	FrameHeaderCallback FrameMode = iota
	FrameDelimiter
	FrameFixedSize
	FrameNoOp
)

// HeaderCallback inspects everything accumulated so far (at least
// headerSize bytes of it) and returns the number of additional bytes
// still needed before the message is complete. Returning 0 means the
// message is complete and ready for delivery.
type HeaderCallback func(accumulated []byte) int

// MessageHandler receives one framed message. The byte slice is a
// borrowed view valid only for the duration of the call; copy it to
// retain it. Returning false tears the handler down with
// neterr.MessageHandlerTerminated.
type MessageHandler func(payload []byte, self handle.Handle[Handler], remote net.Addr) bool

// Framing configures StartIo's read loop.
type Framing struct {
	mode       FrameMode
	headerSize int
	headerCb   HeaderCallback
	delimiter  []byte
	fixedSize  int
}

// HeaderCallbackFraming reads a fixed headerSize-byte header, then
// repeatedly invokes cb with everything accumulated so far until it
// returns 0. headerSize must be > 0; per spec.md §4.3 this framing
// mode is rejected otherwise. The number of additional bytes cb asks
// for is not bounded by Handler.
func HeaderCallbackFraming(headerSize int, cb HeaderCallback) Framing {
	if headerSize <= 0 {
		panic("tcpio: headerSize must be > 0 for HeaderCallbackFraming")
	}
	return Framing{mode: FrameHeaderCallback, headerSize: headerSize, headerCb: cb}
}

// DelimiterFraming reads until delim appears in the stream. The
// delivered message includes the delimiter; bytes read past it are
// retained for the next message.
func DelimiterFraming(delim []byte) Framing {
	return Framing{mode: FrameDelimiter, delimiter: delim}
}

// FixedSizeFraming delivers exactly n bytes per message.
func FixedSizeFraming(n int) Framing {
	return Framing{mode: FrameFixedSize, fixedSize: n}
}

// NoOpFraming reads and discards one byte at a time; no message is
// ever delivered to a handler.
func NoOpFraming() Framing {
	return Framing{mode: FrameNoOp}
}

const (
	confStrandBacklog    = "netio.tcpio.strand.backlog"
	defaultStrandBacklog = 64
)

// Stats is a point-in-time snapshot of one Handler's byte/message
// counters, supplementing ioqueue.Stats with framing-level detail.
type Stats struct {
	BytesRead    int64
	BytesWritten int64
	MessagesRead int64
}

// Handler owns exactly one connected TCP socket. Created exclusively
// by an entity.TcpAcceptor (per accepted connection) or an
// entity.TcpConnector (exactly one); destroyed once its owning entity
// drops its last strong reference after notify fires.
type Handler struct {
	conn   net.Conn
	notify func(h *Handler, cause error)

	common *ioqueue.IoCommon
	strand *concurrent.Strand
	pool   common.WorkPool
	log    common.Logger

	framing    Framing
	readBuf    []byte
	pendingLen int
	msgHandler MessageHandler

	bytesRead    int64
	bytesWritten int64
	messagesRead int64

	self handle.Handle[Handler]
}

// NewHandler wraps conn. notify is invoked exactly once, from the
// handler's own strand, when the handler stops for any reason (socket
// error, message-handler rejection, or an explicit StopIo). The
// caller is responsible for closing conn and forgetting the handler
// once notify fires; Handler never closes its own socket.
func NewHandler(ctx common.Context, name string, conn net.Conn, pool common.WorkPool, notify func(*Handler, error)) *Handler {
	backlog := common.Max(1, ctx.Config().OptionalInt(confStrandBacklog, defaultStrandBacklog))
	h := &Handler{
		conn:   conn,
		notify: notify,
		common: ioqueue.NewIoCommon(metrics.NewRegistry(), name),
		strand: concurrent.NewStrand(backlog),
		pool:   pool,
		log:    ctx.Logger(),
	}
	h.self = handle.Wrap(h)
	return h
}

// StartIo begins the read loop under framing, delivering messages to
// msgHandler. May be called exactly once; subsequent calls return
// false and are a no-op.
func (h *Handler) StartIo(framing Framing, msgHandler MessageHandler) bool {
	if !h.common.SetIoStarted() {
		return false
	}

	h.framing = framing
	h.msgHandler = msgHandler
	if framing.mode == FrameHeaderCallback {
		h.readBuf = make([]byte, 0, framing.headerSize*2)
	} else {
		h.readBuf = make([]byte, 0, 4096)
	}

	h.pool.Submit(h.readLoop)
	return true
}

// IsIoStarted reports whether StartIo has succeeded and the handler
// has not yet stopped.
func (h *Handler) IsIoStarted() bool {
	return h.common.IsStarted()
}

// StopIo explicitly tears the handler down. Returns false if it was
// already stopped.
func (h *Handler) StopIo() bool {
	var stopped bool
	h.strand.PostAndWait(func() {
		stopped = h.onStop(neterr.New(neterr.TcpIoHandlerStopped))
	})
	return stopped
}

// Send enqueues payload for transmission. Safe to call from any
// thread; posts to the handler's strand and returns immediately. A
// send on a handler that hasn't started IO, or that has already
// stopped, silently drops the buffer.
func (h *Handler) Send(payload *buf.SharedBuffer) {
	h.strand.Post(func() {
		if h.common.StartWriteSetup(payload, nil) {
			h.pool.Submit(func() { h.writeOnce(payload) })
		}
	})
}

// GetOutputQueueStats snapshots the pending outbound queue.
func (h *Handler) GetOutputQueueStats() ioqueue.Stats {
	return h.common.GetOutputQueueStats()
}

// Close closes the underlying socket. Per spec.md §4.5/§4.6 the owning
// entity, not the handler itself, is responsible for calling this once
// it has observed notify -- Handler never closes its own socket.
func (h *Handler) Close() error {
	return h.conn.Close()
}

// StopQuiet tears the handler's IO down without invoking notify. Used
// by the owning entity during a bulk shutdown (entity.Stop), where the
// entity is already iterating every handler itself and would otherwise
// re-enter its own teardown path once per handler.
func (h *Handler) StopQuiet() bool {
	var stopped bool
	h.strand.PostAndWait(func() {
		stopped = h.common.Stop()
	})
	if stopped {
		go h.strand.Close()
	}
	return stopped
}

// Stats snapshots byte/message counters from the handler's strand.
func (h *Handler) Stats() Stats {
	var s Stats
	h.strand.PostAndWait(func() {
		s = Stats{BytesRead: h.bytesRead, BytesWritten: h.bytesWritten, MessagesRead: h.messagesRead}
	})
	return s
}

// RemoteAddr returns the socket's remote endpoint.
func (h *Handler) RemoteAddr() net.Addr {
	return h.conn.RemoteAddr()
}

// Self returns a weak handle observing this handler.
func (h *Handler) Self() handle.Handle[Handler] {
	return h.self
}

func (h *Handler) readLoop() {
	size := 4096
	if h.framing.mode == FrameNoOp {
		size = 1
	}
	chunk := make([]byte, size)
	for {
		n, err := h.conn.Read(chunk)

		var data []byte
		if n > 0 {
			data = append([]byte(nil), chunk[:n]...)
		}

		var cont bool
		h.strand.PostAndWait(func() {
			cont = h.onReadCompletion(data, err)
		})
		if !cont {
			return
		}
	}
}

func (h *Handler) onReadCompletion(data []byte, err error) bool {
	if err != nil {
		h.onStop(neterr.Wrap(neterr.TcpIoHandlerStopped, err))
		return false
	}

	h.bytesRead += int64(len(data))
	h.readBuf = append(h.readBuf, data...)

	for {
		frame, consumed, ok := extractFrame(h.framing, h.readBuf, &h.pendingLen)
		if !ok {
			return true
		}

		if h.framing.mode == FrameNoOp {
			h.readBuf = append(h.readBuf[:0], h.readBuf[consumed:]...)
			continue
		}

		h.messagesRead++
		keep := h.msgHandler(frame, h.self, h.conn.RemoteAddr())
		h.readBuf = append(h.readBuf[:0], h.readBuf[consumed:]...)
		h.pendingLen = 0

		if !keep {
			h.onStop(neterr.New(neterr.MessageHandlerTerminated))
			return false
		}
	}
}

// onStop flips IoCommon's started flag and, on the transition edge,
// notifies the owning entity. Runs only on the strand -- including
// calls reached through StopIo's own PostAndWait, so the strand's
// goroutine can't be collapsed synchronously here without deadlocking
// against itself; closing it from a spawned goroutine lets run()
// drain and exit in its own time.
func (h *Handler) onStop(cause error) bool {
	if !h.common.Stop() {
		return false
	}
	if h.notify != nil {
		h.notify(h, cause)
	}
	go h.strand.Close()
	return true
}

func (h *Handler) writeOnce(payload *buf.SharedBuffer) {
	n, err := h.conn.Write(payload.Bytes())
	h.strand.Post(func() {
		h.onWriteCompletion(payload, n, err)
	})
}

func (h *Handler) onWriteCompletion(payload *buf.SharedBuffer, n int, err error) {
	payload.Release()

	if err != nil {
		h.log.Debug("tcpio: write to %v failed: %v", h.conn.RemoteAddr(), err)
	} else {
		h.bytesWritten += int64(n)
	}

	next, ok := h.common.GetNextElement()
	if !ok {
		return
	}
	h.pool.Submit(func() { h.writeOnce(next.Payload) })
}

// extractFrame attempts to pull one complete message out of buf
// according to f. pendingLen carries HeaderCallback's "accumulated
// length needed before the next callback invocation" across calls for
// the same in-progress message; callers reset it to 0 after a
// successful extraction.
func extractFrame(f Framing, buf []byte, pendingLen *int) (frame []byte, consumed int, ok bool) {
	switch f.mode {
	case FrameNoOp:
		if len(buf) == 0 {
			return nil, 0, false
		}
		return nil, len(buf), true

	case FrameFixedSize:
		if len(buf) < f.fixedSize {
			return nil, 0, false
		}
		return buf[:f.fixedSize], f.fixedSize, true

	case FrameDelimiter:
		idx := bytes.Index(buf, f.delimiter)
		if idx < 0 {
			return nil, 0, false
		}
		end := idx + len(f.delimiter)
		return buf[:end], end, true

	case FrameHeaderCallback:
		for {
			need := f.headerSize
			if *pendingLen > need {
				need = *pendingLen
			}
			if len(buf) < need {
				return nil, 0, false
			}

			more := f.headerCb(buf[:need])
			if more <= 0 {
				return buf[:need], need, true
			}

			*pendingLen = need + more
		}
	}

	return nil, 0, false
}
