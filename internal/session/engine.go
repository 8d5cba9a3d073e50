package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/hako/durafmt"
	"golang.org/x/sync/errgroup"

	"github.com/smalld-go/smalld/internal/gateway"
	"github.com/smalld-go/smalld/internal/httpapi"
	"github.com/smalld-go/smalld/internal/listener"
	"github.com/smalld-go/smalld/internal/payload"
	"github.com/smalld-go/smalld/internal/xerror"
)

// Engine is the connect-and-serve retry loop: it discovers the gateway
// URL, connects, fans inbound payloads out through the listener
// registry, and retries on anything short of a fatal close code. It
// implements GatewaySender itself and is the default "client handle"
// passed to every listener's Notify call, until SetHandle replaces it.
type Engine struct {
	logger *slog.Logger

	http      *httpapi.Client
	gw        *gateway.Gateway
	listeners *listener.Registry
	identify  *Identify

	retryPause time.Duration
	closing    atomic.Bool

	// handle is the value Notify passes to listeners. It defaults to the
	// Engine itself (enough for the Heartbeat/Identify actors, which only
	// need GatewaySender) but Builder overrides it with the root Client
	// once one exists, so user listeners also get a Resource method.
	handle any
}

// NewEngine builds an Engine. retryPause is the fixed pause between
// reconnect attempts; pass 0 to get the spec's 5 second default.
func NewEngine(http *httpapi.Client, gw *gateway.Gateway, listeners *listener.Registry, identify *Identify, retryPause time.Duration, logger *slog.Logger) *Engine {
	if retryPause <= 0 {
		retryPause = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger:     logger.With("component", "engine"),
		http:       http,
		gw:         gw,
		listeners:  listeners,
		identify:   identify,
		retryPause: retryPause,
	}
}

// SetHandle overrides the client handle passed to listeners via Notify.
// Called once, after the caller has wrapped this Engine in a richer
// handle (e.g. the root Client, which adds a Resource method).
func (e *Engine) SetHandle(h any) {
	e.handle = h
}

// notifyHandle returns the value Notify should pass to listeners.
func (e *Engine) notifyHandle() any {
	if e.handle != nil {
		return e.handle
	}
	return e
}

// SendGatewayPayload sends p over the current gateway connection.
func (e *Engine) SendGatewayPayload(p payload.Payload) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.gw.Send(ctx, p)
}

// Reconnect unwinds the current attempt with a local close; the run
// loop observes the resulting non-fatal WebSocketClosed and reconnects.
func (e *Engine) Reconnect() {
	e.gw.Close(gateway.CloseReconnect, "Reconnecting...")
}

// Close flips the run loop's stop flag and issues a graceful local
// close, so Run returns nil instead of reconnecting.
func (e *Engine) Close() {
	e.closing.Store(true)
	e.gw.Close(gateway.CloseGraceful, "Closed by caller")
}

// Run blocks, driving the session lifecycle with retries, until a
// fatal close code is observed, the caller's ctx is canceled, or Close
// is called.
func (e *Engine) Run(ctx context.Context) error {
	for {
		if e.closing.Load() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := e.attempt(ctx)

		var wsErr *xerror.Error
		if errors.As(err, &wsErr) && wsErr.Kind == xerror.KindWebSocketClosed && gateway.IsFatalCloseCode(wsErr.Code) {
			e.logger.Error("fatal gateway close, giving up", "code", wsErr.Code, "reason", wsErr.Message)
			return err
		}

		if e.closing.Load() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		e.logger.Info("reconnecting after pause", "pause", durafmt.Parse(e.retryPause).String(), "cause", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.retryPause):
		}
	}
}

// attempt is one connect-and-serve cycle: discover the URL, connect,
// and read until the socket closes or ctx is canceled.
func (e *Engine) attempt(ctx context.Context) error {
	gatewayURL, err := e.resolveGatewayURL(ctx)
	if err != nil {
		return err
	}

	if err := e.gw.Connect(ctx, gatewayURL); err != nil {
		return err
	}
	defer e.gw.Close(gateway.CloseGraceful, "attempt ended")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.readLoop(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		e.gw.Close(gateway.CloseGraceful, "context canceled")
		return gctx.Err()
	})

	return g.Wait()
}

// readLoop polls the gateway until a payload, a close, or cancellation
// arrives, fanning payloads out through the listener registry.
func (e *Engine) readLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		msg := e.gw.Read()
		switch msg.Kind {
		case gateway.MessagePayload:
			e.listeners.Notify(e.notifyHandle(), msg.Payload)
		case gateway.MessageClose:
			return xerror.Newf(xerror.KindWebSocketClosed, "%s", msg.Reason).WithCode(msg.Code)
		case gateway.MessageNone:
			time.Sleep(100 * time.Millisecond)
		}
	}
}

// resolveGatewayURL prefers the resume_gateway_url captured on a prior
// READY (avoiding a redundant REST call) and otherwise asks
// GET /gateway/bot.
func (e *Engine) resolveGatewayURL(ctx context.Context) (string, error) {
	if u := e.identify.ResumeURL(); u != "" {
		return u, nil
	}

	data, err := e.http.Resource("/gateway/bot").Get(ctx)
	if err != nil {
		return "", err
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return "", xerror.Wrap(xerror.KindIllegalState, err, "decode /gateway/bot response")
	}
	if body.URL == "" {
		return "", xerror.New(xerror.KindIllegalState, "missing url field in /gateway/bot response")
	}
	if _, err := url.Parse(body.URL); err != nil {
		return "", xerror.Wrap(xerror.KindIllegalArgument, err, fmt.Sprintf("bad gateway url: %s", body.URL))
	}

	return body.URL, nil
}
