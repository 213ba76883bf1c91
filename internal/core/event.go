package core

import "github.com/alexismendozaa/chat/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventJoined acknowledges a room subscription.
	EventJoined EventKind = iota
	// EventHistory delivers recent messages of a room to the joining client.
	EventHistory
	// EventMessage notifies subscribers about a new message in a room.
	EventMessage
	// EventError notifies a client about a domain error.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventJoined:
		return "joined"
	case EventHistory:
		return "history"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
// Message events are shared between subscribers and must not be modified.
type Event struct {
	Kind     EventKind
	Room     string
	Message  store.Message
	Messages []store.Message // For EventHistory
	Error    *CoreError
}

func errorEvent(room string, err error) *Event {
	return &Event{Kind: EventError, Room: room, Error: toCoreError(err)}
}
