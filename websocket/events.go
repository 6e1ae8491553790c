package websocket

import (
	"encoding/json"
	"time"
)

// Event types on the wire. Every frame is {"type": ..., "payload": ...}.
const (
	EventConnected = "connected"
	EventJoined    = "joined"
	EventReceive   = "receive"
	EventError     = "error"
	EventPong      = "pong"

	eventJoin = "join"
	eventSend = "send"
	eventPing = "ping"
)

type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type inboundEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	UserID string `json:"userId"`
}

func errorEvent(message string) Event {
	return Event{Type: EventError, Payload: map[string]interface{}{
		"message": message,
	}}
}

func pongEvent() Event {
	return Event{Type: EventPong, Payload: map[string]interface{}{
		"time": time.Now().Unix(),
	}}
}
