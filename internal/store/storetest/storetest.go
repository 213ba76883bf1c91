// Package storetest holds the behaviour every store.MessageStore backend must share.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/alexismendozaa/chat/internal/store"
)

// Factory opens a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.MessageStore

var base = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func newMessage(room, sender, text string, at time.Time) *store.Message {
	return &store.Message{
		ID:         uuid.Must(uuid.NewV7()).String(),
		RoomID:     room,
		SenderID:   "sub-" + sender,
		SenderName: sender,
		Text:       text,
		CreatedAt:  at,
	}
}

// Run executes the shared message store suite against a backend.
func Run(t *testing.T, open Factory) {
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, open(t)) })
	t.Run("RecentOrderAndLimit", func(t *testing.T) { testRecentOrderAndLimit(t, open(t)) })
	t.Run("TiesBrokenByInsertion", func(t *testing.T) { testTies(t, open(t)) })
	t.Run("RoomIsolation", func(t *testing.T) { testRoomIsolation(t, open(t)) })
	t.Run("EmptyRoom", func(t *testing.T) { testEmptyRoom(t, open(t)) })
	t.Run("DefaultLimit", func(t *testing.T) { testDefaultLimit(t, open(t)) })
	t.Run("DuplicateID", func(t *testing.T) { testDuplicateID(t, open(t)) })
	t.Run("ConcurrentAppends", func(t *testing.T) { testConcurrentAppends(t, open(t)) })
}

func testRoundTrip(t *testing.T, st store.MessageStore) {
	req := require.New(t)
	ctx := context.Background()

	msg := newMessage("general", "Alice", "hi", base)
	msg.ImageURL = "https://cdn.example.com/uploads/cat.png"
	req.NoError(st.Append(ctx, msg))
	req.Positive(msg.Seq)

	imageOnly := newMessage("general", "Bob", "", base.Add(time.Second))
	imageOnly.ImageURL = "https://cdn.example.com/uploads/dog.png"
	req.NoError(st.Append(ctx, imageOnly))
	req.Greater(imageOnly.Seq, msg.Seq)

	got, err := st.Recent(ctx, "general", 10)
	req.NoError(err)
	req.Len(got, 2)

	for i, want := range []*store.Message{msg, imageOnly} {
		req.Equal(want.ID, got[i].ID)
		req.Equal(want.Seq, got[i].Seq)
		req.Equal(want.RoomID, got[i].RoomID)
		req.Equal(want.SenderID, got[i].SenderID)
		req.Equal(want.SenderName, got[i].SenderName)
		req.Equal(want.Text, got[i].Text)
		req.Equal(want.ImageURL, got[i].ImageURL)
		req.True(want.CreatedAt.Equal(got[i].CreatedAt), "created_at %v != %v", want.CreatedAt, got[i].CreatedAt)
	}
}

func testRecentOrderAndLimit(t *testing.T, st store.MessageStore) {
	req := require.New(t)
	ctx := context.Background()

	// Inserted out of time order on purpose: ordering is by CreatedAt, not arrival.
	for _, i := range []int{3, 1, 5, 2, 4} {
		req.NoError(st.Append(ctx, newMessage("general", "Alice", fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Millisecond))))
	}

	got, err := st.Recent(ctx, "general", 3)
	req.NoError(err)
	req.Len(got, 3)
	req.Equal("m3", got[0].Text)
	req.Equal("m4", got[1].Text)
	req.Equal("m5", got[2].Text)
}

func testTies(t *testing.T, st store.MessageStore) {
	req := require.New(t)
	ctx := context.Background()

	for i := range 4 {
		req.NoError(st.Append(ctx, newMessage("general", "Alice", fmt.Sprintf("tie%d", i), base)))
	}

	got, err := st.Recent(ctx, "general", 10)
	req.NoError(err)
	req.Len(got, 4)
	for i := range got {
		req.Equal(fmt.Sprintf("tie%d", i), got[i].Text)
	}
}

func testRoomIsolation(t *testing.T, st store.MessageStore) {
	req := require.New(t)
	ctx := context.Background()

	rooms := []string{"gen", "general", "general/sub", "dm-Alice-Bob"}
	for i, room := range rooms {
		req.NoError(st.Append(ctx, newMessage(room, "Alice", room, base.Add(time.Duration(i)*time.Second))))
	}

	for _, room := range rooms {
		got, err := st.Recent(ctx, room, 10)
		req.NoError(err)
		req.Len(got, 1, "room %s", room)
		req.Equal(room, got[0].Text)
		req.Equal(room, got[0].RoomID)
	}
}

func testEmptyRoom(t *testing.T, st store.MessageStore) {
	got, err := st.Recent(context.Background(), "nobody-here", 10)
	require.NoError(t, err)
	require.Empty(t, got)
}

func testDefaultLimit(t *testing.T, st store.MessageStore) {
	req := require.New(t)
	ctx := context.Background()

	total := store.DefaultRecentLimit + 5
	for i := range total {
		req.NoError(st.Append(ctx, newMessage("busy", "Alice", fmt.Sprintf("n%03d", i), base.Add(time.Duration(i)*time.Microsecond))))
	}

	got, err := st.Recent(ctx, "busy", 0)
	req.NoError(err)
	req.Len(got, store.DefaultRecentLimit)
	req.Equal("n005", got[0].Text)
	req.Equal(fmt.Sprintf("n%03d", total-1), got[len(got)-1].Text)
}

func testDuplicateID(t *testing.T, st store.MessageStore) {
	req := require.New(t)
	ctx := context.Background()

	msg := newMessage("general", "Alice", "once", base)
	req.NoError(st.Append(ctx, msg))

	dup := *msg
	dup.Text = "twice"
	req.ErrorIs(st.Append(ctx, &dup), store.ErrDuplicateMessage)

	got, err := st.Recent(ctx, "general", 10)
	req.NoError(err)
	req.Len(got, 1)
	req.Equal("once", got[0].Text)
}

func testConcurrentAppends(t *testing.T, st store.MessageStore) {
	req := require.New(t)
	ctx := context.Background()

	const writers = 32
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- st.Append(ctx, newMessage("race", "Alice", fmt.Sprintf("c%d", i), base.Add(time.Duration(i%4)*time.Millisecond)))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	got, err := st.Recent(ctx, "race", writers)
	req.NoError(err)
	req.Len(got, writers)

	seen := make(map[string]struct{}, writers)
	for i, m := range got {
		seen[m.ID] = struct{}{}
		if i == 0 {
			continue
		}
		prev := got[i-1]
		ordered := prev.CreatedAt.Before(m.CreatedAt) || (prev.CreatedAt.Equal(m.CreatedAt) && prev.Seq < m.Seq)
		req.True(ordered, "messages out of order at %d", i)
	}
	req.Len(seen, writers)
}
