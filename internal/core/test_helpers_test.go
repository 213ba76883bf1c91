package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alexismendozaa/chat/internal/auth"
	"github.com/alexismendozaa/chat/internal/store"
)

var (
	alice = auth.Identity{SubjectID: "Alice", DisplayName: "Alice"}
	bob   = auth.Identity{SubjectID: "Bob", DisplayName: "Bob"}
	carol = auth.Identity{SubjectID: "Carol", DisplayName: "Carol"}
)

var errBoom = errors.New("boom")

// memStore is an in-memory MessageStore with switchable failures.
type memStore struct {
	mu         sync.Mutex
	messages   []store.Message
	appendErr  error
	recentErr  error
	recentHook func() // runs before Recent reads, outside the lock
}

func (s *memStore) Append(_ context.Context, msg *store.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	msg.Seq = int64(len(s.messages) + 1)
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *memStore) Recent(_ context.Context, roomID string, limit int) ([]store.Message, error) {
	s.mu.Lock()
	hook := s.recentHook
	s.mu.Unlock()
	if hook != nil {
		hook()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recentErr != nil {
		return nil, s.recentErr
	}
	limit = store.NormalizeLimit(limit)
	out := make([]store.Message, 0)
	for _, m := range s.messages {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) all() []store.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.Message(nil), s.messages...)
}

func (s *memStore) setAppendErr(err error) {
	s.mu.Lock()
	s.appendErr = err
	s.mu.Unlock()
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// nextEvent returns the next event without skipping any.
func nextEvent(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatalf("event channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("no event received")
		return nil
	}
}

func expectNoEvent(t *testing.T, ch <-chan *Event) {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if ok {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// joinAndSettle joins room and consumes the joined and history events.
func joinAndSettle(t *testing.T, c *Client, room string) *Event {
	t.Helper()
	if !c.Submit(&Command{Kind: CommandJoin, Room: room}) {
		t.Fatalf("join rejected for %s", c.Identity.SubjectID)
	}
	joined := nextEvent(t, c.Events())
	if joined.Kind != EventJoined || joined.Room != room {
		t.Fatalf("expected joined %s, got %+v", room, joined)
	}
	history := nextEvent(t, c.Events())
	if history.Kind != EventHistory || history.Room != room {
		t.Fatalf("expected history %s, got %+v", room, history)
	}
	return history
}
