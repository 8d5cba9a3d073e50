package session

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/smalld-go/smalld/internal/intent"
	"github.com/smalld-go/smalld/internal/payload"
)

const clientName = "smalld-go"

// identifyProperties is the "properties" object Discord expects on
// Identify.
type identifyProperties struct {
	OS      string `json:"$os"`
	Browser string `json:"$browser"`
	Device  string `json:"$device"`
}

type identifyData struct {
	Token      string             `json:"token"`
	Properties identifyProperties `json:"properties"`
	Intents    intent.Intent      `json:"intents"`
}

type resumeData struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
}

// Identify is the listener that drives the Hello -> Identify/Resume ->
// Ready handshake. Every field here is touched only on the run-loop
// thread (the same goroutine that calls listener.Registry.Notify), so
// none of it needs a lock: the one exception, Heartbeat's own sequence
// copy, lives in Heartbeat itself because a second thread reads it.
type Identify struct {
	logger *slog.Logger

	token   string
	intents intent.Intent

	sessionID string
	resumeURL string
	sequence  int64 // -1 until observed
}

// NewIdentify creates an Identify actor for the given token and intents.
// logger defaults to slog.Default() when nil.
func NewIdentify(token string, intents intent.Intent, logger *slog.Logger) *Identify {
	if logger == nil {
		logger = slog.Default()
	}
	return &Identify{
		logger:   logger.With("component", "identify"),
		token:    token,
		intents:  intents,
		sequence: -1,
	}
}

// Listener returns the payload.Payload/client-any observer function this
// actor registers with the listener registry.
func (id *Identify) Listener() func(client any, p payload.Payload) {
	return func(client any, p payload.Payload) {
		id.onPayload(client.(GatewaySender), p)
	}
}

// ResumeURL returns the resume_gateway_url captured on the most recent
// READY, or "" if none has been observed yet.
func (id *Identify) ResumeURL() string {
	return id.resumeURL
}

func (id *Identify) onPayload(sender GatewaySender, p payload.Payload) {
	if p.S != nil {
		id.sequence = *p.S
	}

	switch {
	case p.Op == payload.OpHello:
		id.handleHello(sender)

	case p.Op == payload.OpReconnect:
		id.logger.Info("server requested reconnect")
		sender.Reconnect()

	case p.Op == payload.OpDispatch && p.T != nil && *p.T == "READY":
		var ready struct {
			SessionID string `json:"session_id"`
			ResumeURL string `json:"resume_gateway_url"`
		}
		if err := p.DataInto(&ready); err != nil {
			id.logger.Error("failed to decode READY", "error", err)
			return
		}
		id.sessionID = ready.SessionID
		id.resumeURL = ready.ResumeURL
		id.logger.Info("session established", "session_id", id.sessionID)

	case p.Op == payload.OpInvalidSession:
		id.logger.Warn("session invalidated, re-identifying")
		id.sessionID = ""
		id.resumeURL = ""
		time.Sleep(2 * time.Second)
		id.sendIdentify(sender)
	}
}

func (id *Identify) handleHello(sender GatewaySender) {
	if id.sessionID != "" && id.sequence >= 0 {
		id.sendResume(sender)
		return
	}
	id.sendIdentify(sender)
}

func (id *Identify) sendIdentify(sender GatewaySender) {
	data := identifyData{
		Token: id.token,
		Properties: identifyProperties{
			OS:      runtime.GOOS,
			Browser: clientName,
			Device:  clientName,
		},
		Intents: id.intents,
	}

	p, err := payload.New(payload.OpIdentify).WithData(data)
	if err != nil {
		id.logger.Error("failed to build identify payload", "error", err)
		return
	}
	if err := sender.SendGatewayPayload(p); err != nil {
		id.logger.Warn("failed to send identify", "error", err)
	}
}

func (id *Identify) sendResume(sender GatewaySender) {
	data := resumeData{
		Token:     id.token,
		SessionID: id.sessionID,
		Seq:       id.sequence,
	}

	p, err := payload.New(payload.OpResume).WithData(data)
	if err != nil {
		id.logger.Error("failed to build resume payload", "error", err)
		return
	}
	if err := sender.SendGatewayPayload(p); err != nil {
		id.logger.Warn("failed to send resume", "error", err)
	}
}

