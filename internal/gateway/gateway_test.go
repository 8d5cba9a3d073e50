package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/smalld-go/smalld/internal/payload"
)

// newMockServer starts an httptest server that accepts a single
// WebSocket connection and hands the raw *websocket.Conn to onConn so
// the test can drive the handshake.
func newMockServer(t *testing.T, onConn func(ctx context.Context, conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		onConn(r.Context(), conn)
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestReadReturnsPayload(t *testing.T) {
	server := newMockServer(t, func(ctx context.Context, conn *websocket.Conn) {
		hello, _ := payload.New(payload.OpHello).WithData(map[string]int{"heartbeat_interval": 100})
		data, _ := hello.MarshalJSON()
		_ = conn.Write(ctx, websocket.MessageText, data)
		<-ctx.Done()
	})
	defer server.Close()

	g := New()
	if err := g.Connect(context.Background(), wsURL(server)); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer g.Close(CloseGraceful, "test done")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		msg := g.Read()
		if msg.Kind == MessagePayload {
			if msg.Payload.Op != payload.OpHello {
				t.Errorf("op = %v, want Hello", msg.Payload.Op)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for hello payload")
}

func TestReadIsNonBlockingWhenEmpty(t *testing.T) {
	server := newMockServer(t, func(ctx context.Context, conn *websocket.Conn) {
		<-ctx.Done()
	})
	defer server.Close()

	g := New()
	if err := g.Connect(context.Background(), wsURL(server)); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer g.Close(CloseGraceful, "test done")

	start := time.Now()
	msg := g.Read()
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("Read blocked for %v, want near-instant", time.Since(start))
	}
	if msg.Kind != MessageNone {
		t.Errorf("Kind = %v, want MessageNone", msg.Kind)
	}
}

func TestCloseFrameProducesMessageClose(t *testing.T) {
	server := newMockServer(t, func(ctx context.Context, conn *websocket.Conn) {
		time.Sleep(20 * time.Millisecond)
		_ = conn.Close(websocket.StatusCode(4004), "authentication failed")
	})
	defer server.Close()

	g := New()
	if err := g.Connect(context.Background(), wsURL(server)); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		msg := g.Read()
		if msg.Kind == MessageClose {
			if msg.Code != CloseAuthenticationFailed {
				t.Errorf("code = %d, want %d", msg.Code, CloseAuthenticationFailed)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for close message")
}

func TestAbruptDisconnectProducesNonFatalMessageClose(t *testing.T) {
	server := newMockServer(t, func(ctx context.Context, conn *websocket.Conn) {
		time.Sleep(20 * time.Millisecond)
		_ = conn.CloseNow()
	})
	defer server.Close()

	g := New()
	if err := g.Connect(context.Background(), wsURL(server)); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		msg := g.Read()
		if msg.Kind == MessageClose {
			if IsFatalCloseCode(msg.Code) {
				t.Errorf("code = %d, want a non-fatal synthetic close", msg.Code)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for a close message after an abrupt disconnect")
}

func TestSendRequiresConnection(t *testing.T) {
	g := New()
	err := g.Send(context.Background(), payload.New(payload.OpHeartbeat))
	if err == nil {
		t.Fatal("expected an error sending before connecting")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	g := New()
	g.Close(CloseGraceful, "first")
	g.Close(CloseGraceful, "second")
}

func TestIsFatalCloseCode(t *testing.T) {
	fatal := []int{CloseAuthenticationFailed, CloseInvalidShard, CloseShardingRequired,
		CloseInvalidAPIVersion, CloseInvalidIntents, CloseDisallowedIntents}
	for _, code := range fatal {
		if !IsFatalCloseCode(code) {
			t.Errorf("IsFatalCloseCode(%d) = false, want true", code)
		}
	}

	retryable := []int{1001, CloseUnknownError, CloseSessionTimedOut, CloseReconnect}
	for _, code := range retryable {
		if IsFatalCloseCode(code) {
			t.Errorf("IsFatalCloseCode(%d) = true, want false", code)
		}
	}
}
