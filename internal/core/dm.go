package core

import (
	"strings"

	"github.com/alexismendozaa/chat/internal/auth"
)

// DirectRoomPrefix marks rooms derived for two participants.
const DirectRoomPrefix = "dm-"

var (
	subjectEscaper   = strings.NewReplacer("%", "%25", "-", "%2D")
	subjectUnescaper = strings.NewReplacer("%2D", "-", "%25", "%")
)

// DirectRoomID derives the room shared by two identities, keyed on subject ids.
// The result is the same for (a, b) and (b, a).
func DirectRoomID(a, b auth.Identity) string {
	return directRoomID(a.SubjectID, b.SubjectID)
}

func directRoomID(a, b string) string {
	low, high := subjectEscaper.Replace(a), subjectEscaper.Replace(b)
	if high < low {
		low, high = high, low
	}
	return DirectRoomPrefix + low + "-" + high
}

// IsDirectRoom reports whether room carries the direct room prefix.
func IsDirectRoom(room string) bool {
	return strings.HasPrefix(room, DirectRoomPrefix)
}

// Escaped subjects never contain '-', so the remainder splits exactly once.
func parseDirectRoomID(room string) (string, string, bool) {
	rest, ok := strings.CutPrefix(room, DirectRoomPrefix)
	if !ok {
		return "", "", false
	}
	low, high, ok := strings.Cut(rest, "-")
	if !ok || low == "" || high == "" || strings.Contains(high, "-") || high < low {
		return "", "", false
	}
	a, b := subjectUnescaper.Replace(low), subjectUnescaper.Replace(high)
	if directRoomID(a, b) != room {
		return "", "", false
	}
	return a, b, true
}

// ValidateChannelName rejects names that would collide with direct rooms.
func ValidateChannelName(name string) error {
	if IsDirectRoom(name) {
		return ErrReservedRoomName
	}
	return nil
}
