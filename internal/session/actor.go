// Package session implements the two protocol actors that drive the
// Discord handshake and liveness on top of a bare Gateway connection:
// Heartbeat and Identify. Both are ordinary listener.Func values — they
// observe every inbound payload and call back into the client handle to
// send frames or trigger a reconnect, exactly like a user-registered
// listener would.
package session

import (
	"github.com/smalld-go/smalld/internal/payload"
)

// GatewaySender is the narrow seam Heartbeat and Identify call back
// through. The root Client implements it; keeping the interface here
// (rather than importing the root package) avoids an import cycle while
// preserving the "actors are listeners" design.
type GatewaySender interface {
	SendGatewayPayload(p payload.Payload) error
	Reconnect()
}
