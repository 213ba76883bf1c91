package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/alexismendozaa/chat/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	seq         BIGSERIAL PRIMARY KEY,
	id          TEXT        NOT NULL UNIQUE,
	room_id     TEXT        NOT NULL,
	sender_id   TEXT        NOT NULL,
	sender_name TEXT        NOT NULL,
	text        TEXT        NOT NULL DEFAULT '',
	image_url   TEXT        NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_room_created ON messages (room_id, created_at DESC, seq DESC);
`

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Store implements store.MessageStore on PostgreSQL.
type Store struct {
	db *sql.DB
}

// New connects to PostgreSQL, verifies the connection and applies the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append persists a message; seq comes from the BIGSERIAL column.
func (s *Store) Append(ctx context.Context, msg *store.Message) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, room_id, sender_id, sender_name, text, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq
	`,
		msg.ID,
		msg.RoomID,
		msg.SenderID,
		msg.SenderName,
		msg.Text,
		msg.ImageURL,
		msg.CreatedAt,
	).Scan(&msg.Seq)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("insert message %s: %w", msg.ID, store.ErrDuplicateMessage)
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// Recent returns the newest messages of a room in chronological order.
func (s *Store) Recent(ctx context.Context, roomID string, limit int) ([]store.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, room_id, sender_id, sender_name, text, image_url, created_at
		FROM messages
		WHERE room_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2
	`, roomID, store.NormalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]store.Message, 0)
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(
			&msg.Seq,
			&msg.ID,
			&msg.RoomID,
			&msg.SenderID,
			&msg.SenderName,
			&msg.Text,
			&msg.ImageURL,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.CreatedAt = msg.CreatedAt.UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	store.Reverse(messages)
	return messages, nil
}
