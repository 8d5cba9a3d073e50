// Package payload implements the Discord Gateway wire format: opcodes and
// the envelope (op/d/t/s) every frame is carried in.
// See: https://discord.com/developers/docs/topics/opcodes-and-status-codes#gateway-opcodes
package payload

import (
	"encoding/json"
	"fmt"
)

// Op is a Gateway opcode. Unrecognized values are preserved rather than
// rejected; use Known to test whether an Op is one of the named ones.
type Op uint8

const (
	OpDispatch            Op = 0  // An event was dispatched (S->C)
	OpHeartbeat           Op = 1  // Fired periodically to keep the connection alive (C<->S)
	OpIdentify            Op = 2  // Starts a new session (C->S)
	OpPresenceUpdate      Op = 3  // Update client's presence (C->S)
	OpVoiceStateUpdate    Op = 4  // Join/leave a voice channel (C->S)
	OpResume              Op = 6  // Resume a previous session (C->S)
	OpReconnect           Op = 7  // Server requests the client reconnect (S->C)
	OpRequestGuildMembers Op = 8  // Request guild members (C->S)
	OpInvalidSession      Op = 9  // Session has been invalidated (S->C)
	OpHello               Op = 10 // Sent immediately after connecting (S->C)
	OpHeartbeatAck        Op = 11 // Acknowledges a received heartbeat (S->C)
)

// Known reports whether op is one of the named opcodes above.
func (op Op) Known() bool {
	switch op {
	case OpDispatch, OpHeartbeat, OpIdentify, OpPresenceUpdate, OpVoiceStateUpdate,
		OpResume, OpReconnect, OpRequestGuildMembers, OpInvalidSession, OpHello, OpHeartbeatAck:
		return true
	default:
		return false
	}
}

// String renders named opcodes by name and anything else as Unknown(n),
// matching the spec's closed-set-plus-catch-all decoding rule.
func (op Op) String() string {
	switch op {
	case OpDispatch:
		return "Dispatch"
	case OpHeartbeat:
		return "Heartbeat"
	case OpIdentify:
		return "Identify"
	case OpPresenceUpdate:
		return "PresenceUpdate"
	case OpVoiceStateUpdate:
		return "VoiceStateUpdate"
	case OpResume:
		return "Resume"
	case OpReconnect:
		return "Reconnect"
	case OpRequestGuildMembers:
		return "RequestGuildMembers"
	case OpInvalidSession:
		return "InvalidSession"
	case OpHello:
		return "Hello"
	case OpHeartbeatAck:
		return "HeartbeatAck"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(op))
	}
}

// Payload is the unit of Gateway traffic. It is immutable once constructed;
// the With* helpers return a modified copy.
type Payload struct {
	Op Op
	D  json.RawMessage
	T  *string
	S  *int64
}

// New constructs a bare payload carrying only an opcode.
func New(op Op) Payload {
	return Payload{Op: op}
}

// WithData attaches v (marshaled to JSON) as the payload's d field.
func (p Payload) WithData(v any) (Payload, error) {
	if v == nil {
		p.D = nil
		return p, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Payload{}, fmt.Errorf("marshal payload data: %w", err)
	}
	p.D = data
	return p, nil
}

// WithType sets the event name (t), used for Dispatch payloads.
func (p Payload) WithType(t string) Payload {
	p.T = &t
	return p
}

// WithSequence sets the sequence number (s).
func (p Payload) WithSequence(s int64) Payload {
	p.S = &s
	return p
}

// wireForm mirrors Payload for JSON, omitting absent optional fields.
type wireForm struct {
	Op Op              `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
	T  *string         `json:"t,omitempty"`
	S  *int64          `json:"s,omitempty"`
}

// MarshalJSON encodes the payload, omitting d/t/s when unset.
func (p Payload) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireForm{Op: p.Op, D: p.D, T: p.T, S: p.S})
}

// UnmarshalJSON decodes any JSON object with an integer op; an unknown op
// value decodes into Op without error, per the catch-all rule.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var w wireForm
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode gateway payload: %w", err)
	}
	p.Op = w.Op
	p.D = w.D
	p.T = w.T
	p.S = w.S
	return nil
}

// DataInto unmarshals the payload's d field into v. It is a no-op (v is
// left unset) when d is absent.
func (p Payload) DataInto(v any) error {
	if len(p.D) == 0 {
		return nil
	}
	return json.Unmarshal(p.D, v)
}
