package utils

import "github.com/google/uuid"

// NewID returns a random identifier for connections.
func NewID() string {
	return uuid.NewString()
}

// NewMessageID returns a time-ordered UUIDv7 so ids sort roughly by creation.
func NewMessageID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
