package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/alexismendozaa/chat/internal/metrics"
	"github.com/alexismendozaa/chat/internal/store"
	"github.com/alexismendozaa/chat/internal/utils"
)

// clock hands out strictly increasing UTC timestamps with microsecond
// precision, which every store backend can represent exactly.
type clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func (c *clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

// Broadcaster persists messages and fans them out to room subscribers.
type Broadcaster struct {
	store    store.MessageStore
	registry *Registry
	clock    *clock
	logger   *zerolog.Logger
	evict    func(*Client)
}

// NewBroadcaster constructs a broadcaster. Subscribers whose queue
// overflows are removed from the registry and closed.
func NewBroadcaster(st store.MessageStore, registry *Registry, logger *zerolog.Logger) *Broadcaster {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Broadcaster{
		store:    st,
		registry: registry,
		clock:    &clock{now: time.Now},
		logger:   logger,
		evict: func(c *Client) {
			if c.close() {
				registry.LeaveAll(c)
			}
		},
	}
}

// Send validates the payload, appends the message and only then delivers it
// to the subscribers the room has after the append.
func (b *Broadcaster) Send(ctx context.Context, sender *Client, room string, payload Payload) (store.Message, error) {
	payload = payload.Normalize()
	if err := payload.Validate(); err != nil {
		metrics.SendErrorsTotal.WithLabelValues(ErrCodeEmptyMessage).Inc()
		return store.Message{}, err
	}

	id, err := utils.NewMessageID()
	if err != nil {
		return store.Message{}, fmt.Errorf("%w: generate id: %w", ErrStoreFailure, err)
	}

	msg := store.Message{
		ID:         id,
		RoomID:     room,
		SenderID:   sender.Identity.SubjectID,
		SenderName: sender.Identity.DisplayName,
		Text:       payload.Text,
		ImageURL:   payload.ImageURL,
		CreatedAt:  b.clock.Next(),
	}
	if err := b.store.Append(ctx, &msg); err != nil {
		metrics.SendErrorsTotal.WithLabelValues(ErrCodeStoreFailure).Inc()
		return store.Message{}, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}

	ev := &Event{Kind: EventMessage, Room: room, Message: msg}
	subscribers := b.registry.Subscribers(room)
	for _, sub := range subscribers {
		if sub.deliver(ev) {
			b.logger.Warn().
				Str("client_id", sub.ID).
				Str("room", room).
				Msg("event queue full, disconnecting slow client")
			metrics.SlowConsumerEvictionsTotal.Inc()
			b.evict(sub)
		}
	}
	metrics.MessagesTotal.Inc()

	b.logger.Debug().
		Str("room", room).
		Str("message_id", msg.ID).
		Int("recipients", len(subscribers)).
		Msg("message broadcast")
	return msg, nil
}
