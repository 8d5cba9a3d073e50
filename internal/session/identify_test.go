package session

import (
	"testing"
	"time"

	"github.com/smalld-go/smalld/internal/intent"
	"github.com/smalld-go/smalld/internal/payload"
)

func TestIdentifySendsIdentifyWithNoStoredSession(t *testing.T) {
	id := NewIdentify("tok", intent.Unprivileged, nil)
	sender := &fakeSender{}
	fn := id.Listener()

	fn(sender, payload.New(payload.OpHello))

	sent, _ := sender.snapshot()
	if len(sent) != 1 || sent[0].Op != payload.OpIdentify {
		t.Fatalf("sent = %v, want exactly one Identify", sent)
	}

	var got identifyData
	if err := sent[0].DataInto(&got); err != nil {
		t.Fatalf("decode identify payload: %v", err)
	}
	if got.Token != "tok" {
		t.Errorf("token = %q, want tok", got.Token)
	}
	if got.Intents != intent.Unprivileged {
		t.Errorf("intents = %v, want %v", got.Intents, intent.Unprivileged)
	}
}

func TestIdentifyResumesWhenSessionAndSequenceAreKnown(t *testing.T) {
	id := NewIdentify("tok", intent.Unprivileged, nil)
	sender := &fakeSender{}
	fn := id.Listener()

	ready, err := payload.New(payload.OpDispatch).
		WithType("READY").
		WithSequence(99).
		WithData(map[string]string{"session_id": "abc", "resume_gateway_url": "wss://resume.example"})
	if err != nil {
		t.Fatalf("build ready payload: %v", err)
	}
	fn(sender, ready)

	if got := id.ResumeURL(); got != "wss://resume.example" {
		t.Errorf("ResumeURL() = %q, want wss://resume.example", got)
	}

	fn(sender, payload.New(payload.OpHello))

	sent, _ := sender.snapshot()
	if len(sent) != 1 || sent[0].Op != payload.OpResume {
		t.Fatalf("sent = %v, want exactly one Resume", sent)
	}

	var got resumeData
	if err := sent[0].DataInto(&got); err != nil {
		t.Fatalf("decode resume payload: %v", err)
	}
	if got.SessionID != "abc" || got.Seq != 99 {
		t.Errorf("resume = %+v, want session_id=abc seq=99", got)
	}
}

func TestIdentifyReconnectOpcodeTriggersReconnect(t *testing.T) {
	id := NewIdentify("tok", intent.Unprivileged, nil)
	sender := &fakeSender{}
	fn := id.Listener()

	fn(sender, payload.New(payload.OpReconnect))

	_, reconnects := sender.snapshot()
	if reconnects != 1 {
		t.Errorf("reconnects = %d, want 1", reconnects)
	}
}

func TestIdentifyInvalidSessionClearsAndReidentifies(t *testing.T) {
	id := NewIdentify("tok", intent.Unprivileged, nil)
	sender := &fakeSender{}
	fn := id.Listener()

	ready, err := payload.New(payload.OpDispatch).
		WithType("READY").
		WithSequence(1).
		WithData(map[string]string{"session_id": "abc"})
	if err != nil {
		t.Fatalf("build ready payload: %v", err)
	}
	fn(sender, ready)

	start := time.Now()
	fn(sender, payload.New(payload.OpInvalidSession))
	elapsed := time.Since(start)

	if elapsed < 2*time.Second {
		t.Errorf("InvalidSession handling returned after %v, want >= 2s pause", elapsed)
	}
	if id.sessionID != "" {
		t.Errorf("sessionID = %q, want cleared", id.sessionID)
	}
	if id.resumeURL != "" {
		t.Errorf("resumeURL = %q, want cleared", id.resumeURL)
	}

	sent, _ := sender.snapshot()
	if len(sent) != 1 || sent[0].Op != payload.OpIdentify {
		t.Fatalf("sent = %v, want exactly one fresh Identify", sent)
	}

	// A subsequent Hello should Identify again, not Resume, since the
	// session was cleared.
	fn(sender, payload.New(payload.OpHello))
	sent, _ = sender.snapshot()
	if sent[len(sent)-1].Op != payload.OpIdentify {
		t.Errorf("op after cleared session = %v, want Identify", sent[len(sent)-1].Op)
	}
}
