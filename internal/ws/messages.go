package ws

import (
	"encoding/json"

	"presencehub/internal/presence"
)

// Envelope wraps every inbound WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "joinGroup"
	Data  json.RawMessage `json:"data,omitempty"` // event specific JSON
}

// outFrame is the outbound counterpart of Envelope.
type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// EventConnected is the first frame every client receives.
const EventConnected = "connected"

type ConnectedBody struct {
	ID presence.ConnID `json:"id"`
}
