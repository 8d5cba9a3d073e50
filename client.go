// Package smalld is a minimalist client for the Discord bot gateway: a
// long-lived, reconnecting session over a WebSocket, with a listener
// surface for inbound events and a resource builder for the REST API.
// It does not model Discord's domain objects (messages, guilds, ...);
// payload and response bodies are handed to callers as raw JSON.
package smalld

import (
	"context"
	"encoding/json"

	"github.com/smalld-go/smalld/internal/httpapi"
	"github.com/smalld-go/smalld/internal/listener"
	"github.com/smalld-go/smalld/internal/payload"
	"github.com/smalld-go/smalld/internal/session"
)

// Client is a cheaply-cloneable handle bundling the REST client, the
// gateway session engine, and the listener registry. It is the value
// passed to every registered listener.
type Client struct {
	http   *httpapi.Client
	engine *session.Engine
	events *listener.Registry
}

// New builds a Client using NewBuilder()'s defaults, then applies Token
// if non-empty (a convenience for the common single-argument case).
func New(token string) (*Client, error) {
	b := NewBuilder()
	if token != "" {
		b.Token = token
	}
	return b.Build()
}

// Run drives the session lifecycle, retrying with the run loop's fixed
// pause between attempts, until a fatal gateway close code is observed,
// ctx is canceled, or Close is called.
func (c *Client) Run(ctx context.Context) error {
	return c.engine.Run(ctx)
}

// Reconnect requests that the current connect attempt unwind and the
// run loop reconnect. Non-blocking.
func (c *Client) Reconnect() {
	c.engine.Reconnect()
}

// Close flips Run's retry loop off and issues a graceful local close,
// so a subsequent Run call returns nil instead of reconnecting forever.
func (c *Client) Close() {
	c.engine.Close()
}

// OnGatewayPayload subscribes fn to every inbound payload, in
// registration order relative to other listeners.
func (c *Client) OnGatewayPayload(fn func(client any, p payload.Payload)) {
	c.events.Add(fn)
}

// OnEvent subscribes fn to Dispatch payloads whose event name equals
// name; fn receives the payload's d field rather than the envelope.
func (c *Client) OnEvent(name string, fn func(client any, data json.RawMessage)) {
	c.events.Add(listener.OnEvent(name, fn))
}

// SendGatewayPayload writes p as an outbound frame on the current
// gateway connection.
func (c *Client) SendGatewayPayload(p payload.Payload) error {
	return c.engine.SendGatewayPayload(p)
}

// Resource starts building a single REST call against path.
func (c *Client) Resource(path string) *httpapi.Resource {
	return c.http.Resource(path)
}
