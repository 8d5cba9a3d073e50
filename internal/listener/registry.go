// Package listener is the thread-safe fan-out from one inbound payload to
// every subscriber registered before the run loop started.
package listener

import (
	"encoding/json"
	"sync"

	"github.com/smalld-go/smalld/internal/payload"
)

// Func is the signature every listener is invoked with: the client
// handle (opaque to this package — it's whatever the caller passes to
// Notify) and the payload that arrived.
type Func func(client any, p payload.Payload)

// Registry is an ordered, lock-protected list of listeners. Entries are
// never removed once added.
type Registry struct {
	mu        sync.RWMutex
	listeners []Func
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// Add appends fn to the registry. Safe to call concurrently with Notify,
// though a listener added during a Notify pass is not guaranteed to be
// observed by that pass.
func (r *Registry) Add(fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Notify invokes every registered listener, in registration order, with
// client and p. Listeners are expected not to block indefinitely; they
// may call back into client (e.g. to send a payload or request a
// reconnect) because no registry lock, and none of the client's locks,
// is held while a listener runs.
func (r *Registry) Notify(client any, p payload.Payload) {
	r.mu.RLock()
	// Copy the slice header under lock so a concurrent Add cannot race
	// with the range below; the listeners themselves are invoked
	// outside any registry lock.
	listeners := r.listeners
	r.mu.RUnlock()

	for _, fn := range listeners {
		fn(client, p)
	}
}

// OnEvent wraps a callback so it only fires for Dispatch payloads whose
// event name (t) equals name, passing the payload's d field rather than
// the whole envelope.
func OnEvent(name string, fn func(client any, data json.RawMessage)) Func {
	return func(client any, p payload.Payload) {
		if p.Op != payload.OpDispatch || p.T == nil || *p.T != name {
			return
		}
		fn(client, p.D)
	}
}
