package smalld

import "github.com/smalld-go/smalld/internal/xerror"

// Kind classifies an Error the same way across the whole library,
// whether it was raised deep in the HTTP client, the gateway, or the
// session engine.
type Kind = xerror.Kind

// Error is the tagged-union error surface this library raises: every
// error carries a Kind, a message, an optional Code (HTTP status or
// gateway close code), and an optional wrapped cause reachable via
// errors.Unwrap.
type Error = xerror.Error

// The error kinds, re-exported so callers never need to import
// internal/xerror directly.
const (
	KindConfiguration   = xerror.KindConfiguration
	KindIllegalArgument = xerror.KindIllegalArgument
	KindIllegalState    = xerror.KindIllegalState
	KindHTTP            = xerror.KindHTTP
	KindWebSocket       = xerror.KindWebSocket
	KindWebSocketClosed = xerror.KindWebSocketClosed
	KindIO              = xerror.KindIO
)
