package core

import "strings"

// MaxRoomIDBytes bounds room ids accepted from clients.
const MaxRoomIDBytes = 128

// Payload is the client-supplied content of a message.
type Payload struct {
	Text     string
	ImageURL string
}

// Normalize trims surrounding whitespace from both fields.
func (p Payload) Normalize() Payload {
	return Payload{
		Text:     strings.TrimSpace(p.Text),
		ImageURL: strings.TrimSpace(p.ImageURL),
	}
}

// Validate requires text or an image after trimming.
func (p Payload) Validate() error {
	n := p.Normalize()
	if n.Text == "" && n.ImageURL == "" {
		return ErrEmptyMessage
	}
	return nil
}

// ValidateRoomID checks a room id a client asked to join or send to.
// Direct room ids must be in the canonical form produced by DirectRoomID.
func ValidateRoomID(room string) error {
	if room == "" || len(room) > MaxRoomIDBytes {
		return ErrInvalidRoom
	}
	if IsDirectRoom(room) {
		if _, _, ok := parseDirectRoomID(room); !ok {
			return ErrReservedRoomName
		}
		return nil
	}
	return ValidateChannelName(room)
}
