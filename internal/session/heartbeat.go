package session

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"

	"github.com/smalld-go/smalld/internal/payload"
)

// Heartbeat is the listener that keeps the connection alive. It is
// spawned exactly once, on the first Hello payload observed, and then
// runs for the lifetime of the process: reconnects reuse the same
// goroutine, which simply picks up whatever interval the next Hello
// announces.
type Heartbeat struct {
	logger *slog.Logger

	start sync.Once

	intervalMS atomic.Int64 // 0 until the first Hello
	sequence   atomic.Int64 // -1 until a sequence number is observed
	ack        atomic.Bool
	lastAckAt  atomic.Int64 // unix nanoseconds
}

// NewHeartbeat creates a Heartbeat actor. logger defaults to
// slog.Default() when nil.
func NewHeartbeat(logger *slog.Logger) *Heartbeat {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Heartbeat{logger: logger.With("component", "heartbeat")}
	h.sequence.Store(-1)
	h.ack.Store(true)
	h.lastAckAt.Store(time.Now().UnixNano())
	return h
}

// Listener returns the payload.Payload/client-any observer function this
// actor registers with the listener registry.
func (h *Heartbeat) Listener() func(client any, p payload.Payload) {
	return func(client any, p payload.Payload) {
		h.onPayload(client.(GatewaySender), p)
	}
}

func (h *Heartbeat) onPayload(sender GatewaySender, p payload.Payload) {
	if p.S != nil {
		h.sequence.Store(*p.S)
	}

	switch {
	case p.Op == payload.OpHello:
		var hello struct {
			HeartbeatInterval int64 `json:"heartbeat_interval"`
		}
		if err := p.DataInto(&hello); err == nil && hello.HeartbeatInterval > 0 {
			h.intervalMS.Store(hello.HeartbeatInterval)
			h.logger.Info("heartbeat interval announced",
				"interval", durafmt.Parse(time.Duration(hello.HeartbeatInterval)*time.Millisecond).String())
		}
		h.start.Do(func() { go h.run(sender) })

	case p.Op == payload.OpHeartbeatAck:
		h.markAcked()

	case p.Op == payload.OpDispatch && p.T != nil && *p.T == "READY":
		h.markAcked()
	}
}

func (h *Heartbeat) markAcked() {
	h.ack.Store(true)
	h.lastAckAt.Store(time.Now().UnixNano())
}

// run is the heartbeat thread, launched exactly once via start.Do.
func (h *Heartbeat) run(sender GatewaySender) {
	for {
		interval := h.intervalMS.Load()
		if interval <= 0 {
			time.Sleep(5 * time.Second)
			continue
		}

		time.Sleep(time.Duration(interval) * time.Millisecond)

		if h.ack.CompareAndSwap(true, false) {
			h.send(sender)
			continue
		}

		lastAck := time.Unix(0, h.lastAckAt.Load())
		h.logger.Warn("heartbeat ack missed, reconnecting", "last_ack", humanize.Time(lastAck))
		sender.Reconnect()
	}
}

func (h *Heartbeat) send(sender GatewaySender) {
	seq := h.sequence.Load()
	// Discord expects an explicit JSON null, not an absent d, when no
	// sequence has been observed yet.
	var d any = json.RawMessage("null")
	if seq >= 0 {
		d = seq
	}

	p, err := payload.New(payload.OpHeartbeat).WithData(d)
	if err != nil {
		h.logger.Error("failed to build heartbeat payload", "error", err)
		return
	}

	if err := sender.SendGatewayPayload(p); err != nil {
		h.logger.Warn("failed to send heartbeat", "error", err)
	}
}
