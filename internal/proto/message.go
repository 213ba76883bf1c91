package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoin       = "joinRoom"
	InboundTypeMsg        = "message"
	InboundTypeOpenDirect = "openDirect"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventNameJoined  = "joined"
	EventNameHistory = "history"
	EventNameMessage = "message"
)

// JoinData requests to join a specific room.
type JoinData struct {
	RoomID string `json:"roomId" validate:"required,max=128"`
}

// MsgData is a chat message from the client. Text or ImageURL must be set;
// that rule is enforced by the core so it can answer with empty_message.
type MsgData struct {
	RoomID   string `json:"roomId" validate:"required,max=128"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"imageUrl,omitempty" validate:"omitempty,url,max=2048"`
}

// OpenDirectData asks for the direct room shared with another subject.
type OpenDirectData struct {
	Peer string `json:"peer" validate:"required,max=128"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventMessage is the wire shape of a stored message, used both for live
// broadcasts and for history.
type EventMessage struct {
	ID        string `json:"id"`
	RoomID    string `json:"roomId"`
	User      string `json:"user"`
	UserID    string `json:"userId"`
	Text      string `json:"text,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// EventJoinedData acknowledges a room subscription.
type EventJoinedData struct {
	RoomID string `json:"roomId"`
}

// EventHistoryData carries recent messages of a room, oldest first.
type EventHistoryData struct {
	RoomID   string         `json:"roomId"`
	Messages []EventMessage `json:"messages"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code   string `json:"code"`
	Msg    string `json:"msg"`
	RoomID string `json:"roomId,omitempty"`
}
