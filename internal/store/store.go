package store

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultRecentLimit is how many messages a history replay returns.
	DefaultRecentLimit = 100
	// MaxRecentLimit caps any caller-provided limit.
	MaxRecentLimit = 1000
)

// ErrDuplicateMessage is returned when a message id has already been appended.
var ErrDuplicateMessage = errors.New("duplicate message id")

// Message represents a persisted chat message.
// At least one of Text or ImageURL is non-empty; messages are never mutated.
type Message struct {
	ID         string    `json:"id"`
	Seq        int64     `json:"seq"`
	RoomID     string    `json:"room_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"text,omitempty"`
	ImageURL   string    `json:"image_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// MessageStore is the append-only message log, indexed by room and time.
type MessageStore interface {
	// Append persists a message and assigns its Seq.
	Append(ctx context.Context, msg *Message) error

	// Recent returns up to limit of the newest messages of a room,
	// oldest first, ordered by CreatedAt then Seq.
	Recent(ctx context.Context, roomID string, limit int) ([]Message, error)

	// Close closes the underlying database.
	Close() error
}

// NormalizeLimit applies the default and the upper bound to a requested limit.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRecentLimit
	case limit > MaxRecentLimit:
		return MaxRecentLimit
	default:
		return limit
	}
}

// Reverse flips messages read newest-first into chronological order.
func Reverse(messages []Message) {
	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}
}
