// Package gateway owns the single live WebSocket connection to Discord's
// Gateway. It knows nothing about Identify, Resume, or heartbeats — it
// only connects, serializes payloads onto the wire, and turns incoming
// frames into Message values without ever blocking the caller.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/coder/websocket"

	"github.com/smalld-go/smalld/internal/payload"
	"github.com/smalld-go/smalld/internal/xerror"
)

// Gateway close codes.
// See: https://discord.com/developers/docs/topics/opcodes-and-status-codes#gateway-close-event-codes
const (
	CloseUnknownError         = 4000
	CloseUnknownOpcode        = 4001
	CloseDecodeError          = 4002
	CloseNotAuthenticated     = 4003
	CloseAuthenticationFailed = 4004 // fatal
	CloseAlreadyAuthenticated = 4005
	CloseInvalidSeq           = 4007
	CloseRateLimited          = 4008
	CloseSessionTimedOut      = 4009
	CloseInvalidShard         = 4010 // fatal
	CloseShardingRequired     = 4011 // fatal
	CloseInvalidAPIVersion    = 4012 // fatal
	CloseInvalidIntents       = 4013 // fatal
	CloseDisallowedIntents    = 4014 // fatal

	// CloseGraceful is the local close code used for an intentional
	// shutdown (Client.Close).
	CloseGraceful = 1000
	// CloseReconnect is the local close code used to unwind the current
	// attempt and let the outer retry loop reconnect.
	CloseReconnect = 4900

	// closeTransportLost is a synthetic, non-protocol close code used
	// when the connection fails without a peer close frame (TCP reset,
	// read timeout, EOF), so the pump still emits a MessageClose instead
	// of going silent and readLoop still unwinds and retries.
	closeTransportLost = 0
)

// IsFatalCloseCode reports whether code signals a permanent
// misconfiguration (bad auth, invalid shard/intents) that the session
// engine should not retry past.
func IsFatalCloseCode(code int) bool {
	switch code {
	case CloseAuthenticationFailed, CloseInvalidShard, CloseShardingRequired,
		CloseInvalidAPIVersion, CloseInvalidIntents, CloseDisallowedIntents:
		return true
	default:
		return false
	}
}

// MessageKind discriminates the variants Read can return.
type MessageKind int

const (
	// MessageNone: no frame is queued yet (the non-blocking "would
	// block" sentinel), or the queued frame was a binary/ping/pong
	// frame (ignored — ping/pong are handled transparently by the
	// transport).
	MessageNone MessageKind = iota
	// MessagePayload: a text frame that decoded to a valid payload.
	MessagePayload
	// MessageClose: the connection ended — a close frame observed from
	// the peer, a read failure with no close frame (closeTransportLost),
	// or a text frame that did not decode (CloseDecodeError). The socket
	// is already closed locally (code 1000) by the time this is returned.
	MessageClose
)

// Message is the result of one Read call.
type Message struct {
	Kind    MessageKind
	Payload payload.Payload
	Code    int
	Reason  string
}

// Gateway owns at most one live WebSocket connection.
type Gateway struct {
	mu   sync.Mutex
	conn *websocket.Conn

	messages chan Message
	cancel   context.CancelFunc
}

// New creates a Gateway with no connection yet.
func New() *Gateway {
	return &Gateway{}
}

// Connect dials url and starts the background reader. The underlying
// socket is effectively switched to non-blocking mode from the caller's
// perspective: a goroutine pumps frames into a channel, and Read drains
// that channel without blocking.
func (g *Gateway) Connect(ctx context.Context, url string) error {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return xerror.Wrap(xerror.KindWebSocket, err, "dial gateway")
	}
	conn.SetReadLimit(1 << 20)

	readCtx, cancel := context.WithCancel(context.Background())

	g.mu.Lock()
	g.conn = conn
	g.messages = make(chan Message, 32)
	g.cancel = cancel
	g.mu.Unlock()

	go g.pump(readCtx, conn, g.messages)

	return nil
}

// pump runs in its own goroutine for the lifetime of one connection,
// continuously reading frames and decoding them onto messages. It exits
// when the connection closes or ctx is canceled.
func (g *Gateway) pump(ctx context.Context, conn *websocket.Conn, messages chan<- Message) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			code := websocket.CloseStatus(err)
			if code == -1 {
				messages <- Message{Kind: MessageClose, Code: closeTransportLost, Reason: err.Error()}
				return
			}
			messages <- Message{Kind: MessageClose, Code: int(code), Reason: err.Error()}
			return
		}

		if typ != websocket.MessageText {
			continue
		}

		var p payload.Payload
		if err := json.Unmarshal(data, &p); err != nil {
			messages <- Message{Kind: MessageClose, Code: CloseDecodeError, Reason: fmt.Sprintf("bad payload: %v", err)}
			return
		}

		select {
		case messages <- Message{Kind: MessagePayload, Payload: p}:
		case <-ctx.Done():
			return
		}
	}
}

// Read returns the next queued message without blocking. It returns
// MessageNone immediately if nothing has arrived yet.
func (g *Gateway) Read() Message {
	g.mu.Lock()
	messages := g.messages
	g.mu.Unlock()

	if messages == nil {
		return Message{Kind: MessageNone}
	}

	select {
	case msg, ok := <-messages:
		if !ok {
			return Message{Kind: MessageNone}
		}
		if msg.Kind == MessageClose {
			g.Close(CloseGraceful, "Closed by Discord")
		}
		return msg
	default:
		return Message{Kind: MessageNone}
	}
}

// Send serializes p and writes it as a text frame.
func (g *Gateway) Send(ctx context.Context, p payload.Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return xerror.Wrap(xerror.KindIllegalArgument, err, "marshal outbound payload")
	}

	g.mu.Lock()
	conn := g.conn
	g.mu.Unlock()

	if conn == nil {
		return xerror.New(xerror.KindIllegalState, "no gateway connected")
	}

	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return xerror.Wrap(xerror.KindWebSocket, err, "write to gateway")
	}
	return nil
}

// Close writes a close frame (if the socket is writable) and drops the
// connection. It is idempotent and safe to call on an already-closed or
// never-connected Gateway.
func (g *Gateway) Close(code int, reason string) {
	g.mu.Lock()
	conn := g.conn
	cancel := g.cancel
	g.conn = nil
	g.cancel = nil
	g.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusCode(code), reason)
	}
	if cancel != nil {
		cancel()
	}
}
