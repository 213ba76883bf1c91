package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexismendozaa/chat/internal/store"
	"github.com/alexismendozaa/chat/internal/store/storetest"
)

// Runs only against a disposable database: every subtest truncates the table.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("CHAT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CHAT_TEST_POSTGRES_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) store.MessageStore {
		ctx := context.Background()
		st, err := New(ctx, dsn)
		require.NoError(t, err)
		_, err = st.db.ExecContext(ctx, "TRUNCATE messages RESTART IDENTITY")
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })
		return st
	})
}
