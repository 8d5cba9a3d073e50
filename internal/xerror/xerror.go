// Package xerror defines the error taxonomy shared across the gateway
// client's internal packages, so that every internal package (and the
// root package, via re-exported aliases) reports errors the caller can
// branch on with errors.As without caring which internal package raised
// them.
package xerror

import "fmt"

// Kind classifies an Error into one of the taxonomy buckets from the
// spec's error handling design: each kind has a fixed retry treatment.
type Kind int

const (
	// KindConfiguration: invalid token/base_url before connect. Surfaced
	// immediately from the builder; never retried.
	KindConfiguration Kind = iota
	// KindIllegalArgument: bad input (path, URL, unserializable payload).
	// Surfaced to the caller; never retried.
	KindIllegalArgument
	// KindIllegalState: a protocol violation was observed. Non-fatal
	// inside the run loop; triggers a reconnect.
	KindIllegalState
	// KindHTTP: a REST call failed, or the underlying transport did.
	// Surfaced to REST callers directly; non-fatal inside the run loop.
	KindHTTP
	// KindWebSocket: a transport-level WebSocket error. Non-fatal.
	KindWebSocket
	// KindWebSocketClosed: the socket observed a close frame. Fatal iff
	// Code is one of the Discord close codes signalling permanent
	// misconfiguration; otherwise the run loop reconnects.
	KindWebSocketClosed
	// KindIO: underlying socket I/O failure. Non-fatal.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindIllegalArgument:
		return "illegal argument"
	case KindIllegalState:
		return "illegal state"
	case KindHTTP:
		return "http"
	case KindWebSocket:
		return "websocket"
	case KindWebSocketClosed:
		return "websocket closed"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is the tagged-union error surface described in the spec: every
// error the core raises carries a Kind, a human-readable message, and
// optionally a Code (an HTTP status or a Gateway close code) plus the
// underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Code    int
	Cause   error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s (code %d)", e.Kind, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error with no code and no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error that preserves cause for errors.Is/As traversal.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithCode returns a copy of e with Code set, for HTTP statuses and
// Gateway close codes.
func (e *Error) WithCode(code int) *Error {
	cp := *e
	cp.Code = code
	return &cp
}
