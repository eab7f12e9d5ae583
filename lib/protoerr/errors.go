// Package protoerr defines the error-kind taxonomy the session state
// machine reasons about when deciding whether a failure is fatal to the
// transport, answerable with a single ERROR/AUTH_FAILURE message, or safe
// to recover from locally. Every constructor wraps
// github.com/gravitational/trace so callers up the stack keep a stack
// trace and a human message.
package protoerr

import (
	"errors"

	"github.com/gravitational/trace"
)

// Kind classifies an error for the purposes of the session's propagation
// policy.
type Kind int

const (
	KindTransport Kind = iota
	KindFraming
	KindCrypto
	KindReplay
	KindProtocol
	KindAuth
	KindNotFound
	KindPermission
	KindResourceExhausted
	KindExecutor
)

// Error pairs a Kind with the trace-wrapped underlying error so callers can
// switch on Kind without losing the original message or stack.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

func wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func Transport(err error) *Error { return wrap(KindTransport, trace.Wrap(err)) }
func Framing(format string, args ...interface{}) *Error {
	return wrap(KindFraming, trace.BadParameter(format, args...))
}
func Crypto(format string, args ...interface{}) *Error {
	return wrap(KindCrypto, trace.AccessDenied(format, args...))
}
func Replay(expected, got uint32) *Error {
	return wrap(KindReplay, trace.AccessDenied("sequence mismatch: expected %d, got %d", expected, got))
}
func Protocol(format string, args ...interface{}) *Error {
	return wrap(KindProtocol, trace.BadParameter(format, args...))
}
func Auth(format string, args ...interface{}) *Error {
	return wrap(KindAuth, trace.AccessDenied(format, args...))
}
func NotFound(format string, args ...interface{}) *Error {
	return wrap(KindNotFound, trace.NotFound(format, args...))
}
func Permission(format string, args ...interface{}) *Error {
	return wrap(KindPermission, trace.AccessDenied(format, args...))
}
func ResourceExhausted(format string, args ...interface{}) *Error {
	return wrap(KindResourceExhausted, trace.LimitExceeded(format, args...))
}
func Executor(err error) *Error {
	return wrap(KindExecutor, trace.Wrap(err))
}

// Fatal reports whether an error kind always terminates the transport
// regardless of session phase.
func (k Kind) Fatal() bool {
	switch k {
	case KindTransport, KindFraming, KindCrypto, KindReplay:
		return true
	default:
		return false
	}
}

// As extracts a *Error from err, if any wraps one.
func As(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
