// Package neterr defines the error-code taxonomy netio's entity and
// IO-handler layers surface through stopCb/errCb. OS-level and resolver
// errors pass through unchanged (wrapped with github.com/pkg/errors for
// a stack trace at the point they cross into the core); the codes below
// are the ones this core itself originates.
package neterr

import "github.com/pkg/errors"

// Code identifies why an entity or IO handler stopped.
type Code string

const (
	// HandleExpired is returned by a handle operation whose target has
	// already been garbage collected.
	HandleExpired Code = "WEAK_HANDLE_EXPIRED"

	// MessageHandlerTerminated is surfaced when the application's
	// message handler returns false.
	MessageHandlerTerminated Code = "MESSAGE_HANDLER_TERMINATED"

	// TcpIoHandlerStopped is surfaced on a TCP handler's graceful or
	// socket-error-driven teardown.
	TcpIoHandlerStopped Code = "TCP_IO_HANDLER_STOPPED"

	// UdpIoHandlerStopped is surfaced when a UDP endpoint's receive
	// loop stops because the message handler rejected a datagram or a
	// read failed (then wrapping the read error).
	UdpIoHandlerStopped Code = "UDP_IO_HANDLER_STOPPED"

	// UdpEntityStopped is surfaced on an explicit UDP endpoint stop.
	UdpEntityStopped Code = "UDP_ENTITY_STOPPED"

	// TcpAcceptorStopped is surfaced on an explicit acceptor stop.
	TcpAcceptorStopped Code = "TCP_ACCEPTOR_STOPPED"

	// TcpConnectorStopped is surfaced on an explicit connector stop,
	// and wraps the underlying error on a failed connect attempt or a
	// failed DNS lookup.
	TcpConnectorStopped Code = "TCP_CONNECTOR_STOPPED"
)

// Error pairs a Code with an optional underlying cause (an OS-level or
// resolver error passed through from the net package).
type Error struct {
	Code  Code
	Cause error
}

// New builds an Error with no underlying cause.
func New(code Code) *Error {
	return &Error{Code: code}
}

// Wrap builds an Error carrying cause, decorating it with a stack trace
// if it doesn't already have one.
func Wrap(code Code, cause error) *Error {
	if cause == nil {
		return New(code)
	}
	return &Error{Code: code, Cause: errors.WithStack(cause)}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is supports errors.Is(err, neterr.New(SomeCode)) by comparing codes.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == other.Code
}
