package badger

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/alexismendozaa/chat/internal/store"
	"github.com/alexismendozaa/chat/internal/store/storetest"
)

func TestBadgerStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.MessageStore {
		st, err := NewInMemory()
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })
		return st
	})
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()
	logger := zerolog.Nop()

	st, err := New(dir, &logger)
	req.NoError(err)

	first := &store.Message{
		ID:         "0190a0e0-0000-7000-8000-0000000000a1",
		RoomID:     "general",
		SenderID:   "sub-alice",
		SenderName: "Alice",
		Text:       "before restart",
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	req.NoError(st.Append(ctx, first))
	req.NoError(st.Close())

	reopened, err := New(dir, &logger)
	req.NoError(err)
	defer reopened.Close()

	second := &store.Message{
		ID:         "0190a0e0-0000-7000-8000-0000000000a2",
		RoomID:     "general",
		SenderID:   "sub-bob",
		SenderName: "Bob",
		Text:       "after restart",
		CreatedAt:  first.CreatedAt,
	}
	req.NoError(reopened.Append(ctx, second))
	req.Greater(second.Seq, first.Seq)

	got, err := reopened.Recent(ctx, "general", 10)
	req.NoError(err)
	req.Len(got, 2)
	req.Equal("before restart", got[0].Text)
	req.Equal("after restart", got[1].Text)

	dup := *first
	req.ErrorIs(reopened.Append(ctx, &dup), store.ErrDuplicateMessage)
}

func TestRoomPrefixDoesNotOverlap(t *testing.T) {
	a := string(roomPrefix("gen"))
	b := string(roomPrefix("general"))
	require.NotEqual(t, a, b)
	require.NotContains(t, b, a)
}
