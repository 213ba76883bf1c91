package badger

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/alexismendozaa/chat/internal/store"
)

// Key layout:
//
//	m/<hex(room)>/<created_at ns, 8 bytes BE><seq, 8 bytes BE>  -> JSON message
//	i/<message id>                                              -> message key
//
// Hex-encoding the room keeps one room's prefix from matching another room
// whose id merely starts with the same characters.
const (
	messagePrefix = "m/"
	idPrefix      = "i/"
	seqKey        = "seq/messages"
	seqBandwidth  = 128
)

// Store implements store.MessageStore on an embedded Badger database.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
}

// New opens (or creates) a Badger database in dir.
func New(dir string, logger *zerolog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(newLogger(logger))
	return open(opts)
}

// NewInMemory opens a Badger database that lives only in memory.
func NewInMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	seq, err := db.GetSequence([]byte(seqKey), seqBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("get sequence: %w", err)
	}
	return &Store{db: db, seq: seq}, nil
}

// Close releases the sequence lease and closes the database.
func (s *Store) Close() error {
	seqErr := s.seq.Release()
	if err := s.db.Close(); err != nil {
		return err
	}
	return seqErr
}

func roomPrefix(roomID string) []byte {
	return []byte(messagePrefix + hex.EncodeToString([]byte(roomID)) + "/")
}

func messageKey(msg *store.Message) []byte {
	key := roomPrefix(msg.RoomID)
	key = binary.BigEndian.AppendUint64(key, uint64(msg.CreatedAt.UnixNano()))
	return binary.BigEndian.AppendUint64(key, uint64(msg.Seq))
}

// Append persists a message. Seq values come from a leased Badger sequence,
// so they are unique and increasing but may have gaps after restarts.
func (s *Store) Append(ctx context.Context, msg *store.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	next, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	record := *msg
	record.Seq = int64(next) + 1
	record.CreatedAt = record.CreatedAt.UTC()
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	key := messageKey(&record)

	err = s.db.Update(func(txn *badger.Txn) error {
		idKey := []byte(idPrefix + record.ID)
		if _, getErr := txn.Get(idKey); getErr == nil {
			return store.ErrDuplicateMessage
		} else if !errors.Is(getErr, badger.ErrKeyNotFound) {
			return getErr
		}
		if setErr := txn.Set(idKey, key); setErr != nil {
			return setErr
		}
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("insert message %s: %w", record.ID, err)
	}

	msg.Seq = record.Seq
	return nil
}

// Recent scans the room prefix backwards and returns the newest messages oldest first.
func (s *Store) Recent(ctx context.Context, roomID string, limit int) ([]store.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = store.NormalizeLimit(limit)
	prefix := roomPrefix(roomID)

	messages := make([]store.Message, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// 0xFF sorts after every created_at/seq suffix, so the first hit is the newest key.
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(messages) < limit; it.Next() {
			var msg store.Message
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			})
			if err != nil {
				return fmt.Errorf("decode message: %w", err)
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan messages: %w", err)
	}

	store.Reverse(messages)
	return messages, nil
}

// logger adapts zerolog to badger.Logger.
type logger struct {
	log *zerolog.Logger
}

func newLogger(l *zerolog.Logger) badger.Logger {
	if l == nil {
		return nil
	}
	sub := l.With().Str("component", "badger").Logger()
	return &logger{log: &sub}
}

func (l *logger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msgf(format, args...)
}

func (l *logger) Warningf(format string, args ...interface{}) {
	l.log.Warn().Msgf(format, args...)
}

func (l *logger) Infof(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}

func (l *logger) Debugf(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}
