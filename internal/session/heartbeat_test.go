package session

import (
	"sync"
	"testing"
	"time"

	"github.com/smalld-go/smalld/internal/payload"
)

// fakeSender records every SendGatewayPayload/Reconnect call, standing
// in for the root Client in actor-level tests.
type fakeSender struct {
	mu         sync.Mutex
	sent       []payload.Payload
	reconnects int
}

func (f *fakeSender) SendGatewayPayload(p payload.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, p)
	return nil
}

func (f *fakeSender) Reconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
}

func (f *fakeSender) snapshot() ([]payload.Payload, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sent := make([]payload.Payload, len(f.sent))
	copy(sent, f.sent)
	return sent, f.reconnects
}

func helloPayload(t *testing.T, intervalMS int64) payload.Payload {
	t.Helper()
	p, err := payload.New(payload.OpHello).WithData(map[string]int64{"heartbeat_interval": intervalMS})
	if err != nil {
		t.Fatalf("build hello payload: %v", err)
	}
	return p
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}

func TestHeartbeatSendsWithinInterval(t *testing.T) {
	h := NewHeartbeat(nil)
	sender := &fakeSender{}
	fn := h.Listener()

	fn(sender, helloPayload(t, 20))

	waitFor(t, 2*time.Second, func() bool {
		sent, _ := sender.snapshot()
		return len(sent) >= 1
	})

	sent, _ := sender.snapshot()
	if sent[0].Op != payload.OpHeartbeat {
		t.Fatalf("op = %v, want Heartbeat", sent[0].Op)
	}
}

func TestHeartbeatCarriesLastSequence(t *testing.T) {
	h := NewHeartbeat(nil)
	sender := &fakeSender{}
	fn := h.Listener()

	fn(sender, helloPayload(t, 20))
	fn(sender, payload.New(payload.OpDispatch).WithType("MESSAGE_CREATE").WithSequence(12))

	waitFor(t, 2*time.Second, func() bool {
		sent, _ := sender.snapshot()
		return len(sent) >= 1
	})

	sent, _ := sender.snapshot()
	var d int64
	if err := sent[0].DataInto(&d); err != nil {
		t.Fatalf("decode heartbeat data: %v", err)
	}
	if d != 12 {
		t.Errorf("heartbeat d = %d, want 12", d)
	}
}

func TestHeartbeatMissedAckReconnects(t *testing.T) {
	h := NewHeartbeat(nil)
	sender := &fakeSender{}
	fn := h.Listener()

	fn(sender, helloPayload(t, 20))

	// Wait for the first heartbeat to go out (this flips ack to false).
	waitFor(t, 2*time.Second, func() bool {
		sent, _ := sender.snapshot()
		return len(sent) >= 1
	})

	// No ack is ever delivered, so the next interval should reconnect.
	waitFor(t, 2*time.Second, func() bool {
		_, reconnects := sender.snapshot()
		return reconnects >= 1
	})
}

func TestHeartbeatAckSuppressesReconnect(t *testing.T) {
	h := NewHeartbeat(nil)
	sender := &fakeSender{}
	fn := h.Listener()

	fn(sender, helloPayload(t, 20))

	waitFor(t, 2*time.Second, func() bool {
		sent, _ := sender.snapshot()
		return len(sent) >= 1
	})

	fn(sender, payload.New(payload.OpHeartbeatAck))

	time.Sleep(60 * time.Millisecond)
	_, reconnects := sender.snapshot()
	if reconnects != 0 {
		t.Errorf("reconnects = %d, want 0 after an ack was delivered", reconnects)
	}
}

func TestHeartbeatStartsExactlyOnce(t *testing.T) {
	h := NewHeartbeat(nil)
	sender := &fakeSender{}
	fn := h.Listener()

	fn(sender, helloPayload(t, 20))
	fn(sender, helloPayload(t, 20))
	fn(sender, helloPayload(t, 20))

	waitFor(t, 2*time.Second, func() bool {
		sent, _ := sender.snapshot()
		return len(sent) >= 1
	})

	// If start.Do had fired more than once there would be multiple
	// heartbeat goroutines racing the same interval; a short extra wait
	// and a sent-count sanity check is the practical way to observe
	// that without instrumenting the goroutine count directly.
	time.Sleep(25 * time.Millisecond)
	sent, _ := sender.snapshot()
	if len(sent) > 2 {
		t.Errorf("sent = %d heartbeats in ~45ms at a 20ms interval, suspiciously many for a single goroutine", len(sent))
	}
}
