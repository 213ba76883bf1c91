package core

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/alexismendozaa/chat/internal/auth"
	"github.com/alexismendozaa/chat/internal/metrics"
	"github.com/alexismendozaa/chat/internal/store"
)

// Options tune a Gateway. Zero values fall back to defaults.
type Options struct {
	HistoryLimit int
	QueueSize    int
}

// Gateway owns the registry and drives one run loop per connected client.
type Gateway struct {
	registry     *Registry
	broadcaster  *Broadcaster
	store        store.MessageStore
	logger       *zerolog.Logger
	historyLimit int
	queueSize    int

	wg sync.WaitGroup
}

// NewGateway wires a gateway around a message store.
func NewGateway(st store.MessageStore, logger *zerolog.Logger, opts Options) *Gateway {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = store.DefaultRecentLimit
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}

	registry := NewRegistry()
	g := &Gateway{
		registry:     registry,
		broadcaster:  NewBroadcaster(st, registry, logger),
		store:        st,
		logger:       logger,
		historyLimit: opts.HistoryLimit,
		queueSize:    opts.QueueSize,
	}
	g.broadcaster.evict = g.Disconnect
	return g
}

// Registry exposes room membership, mostly for inspection.
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// Connect registers an already authenticated identity and starts its run
// loop. Cancelling ctx disconnects the client.
func (g *Gateway) Connect(ctx context.Context, identity auth.Identity) *Client {
	c := NewClient(identity, g.queueSize)
	metrics.ConnectionsActive.Inc()
	g.logger.Info().
		Str("client_id", c.ID).
		Str("subject", identity.SubjectID).
		Msg("client connected")

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.run(ctx, c)
	}()
	return c
}

// Disconnect removes c from every room. Only the first call has an effect.
func (g *Gateway) Disconnect(c *Client) {
	if !c.close() {
		return
	}
	rooms := g.registry.LeaveAll(c)
	metrics.ConnectionsActive.Dec()
	g.logger.Info().
		Str("client_id", c.ID).
		Str("subject", c.Identity.SubjectID).
		Strs("rooms", rooms).
		Msg("client disconnected")
}

// Wait blocks until every run loop has returned.
func (g *Gateway) Wait() {
	g.wg.Wait()
}

func (g *Gateway) run(ctx context.Context, c *Client) {
	for {
		select {
		case <-ctx.Done():
			g.Disconnect(c)
			g.drain(ctx, c)
			return
		case <-c.done:
			g.drain(ctx, c)
			return
		case cmd := <-c.commands:
			g.handle(ctx, c, cmd)
		}
	}
}

// drain finishes the sends a disconnected client had already queued.
// Joins are dropped since the client can no longer receive anything.
func (g *Gateway) drain(ctx context.Context, c *Client) {
	// Waits out in-flight Submits; done is closed, so later ones return false.
	c.submitting.Lock()
	defer c.submitting.Unlock()
	for {
		select {
		case cmd := <-c.commands:
			if cmd.Kind == CommandSend {
				g.send(ctx, c, cmd)
			}
		default:
			return
		}
	}
}

func (g *Gateway) handle(ctx context.Context, c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandJoin:
		g.join(ctx, c, cmd.Room)
	case CommandSend:
		g.send(ctx, c, cmd)
	case CommandOpenDirect:
		if cmd.Peer == "" {
			g.emit(c, errorEvent("", coreError(ErrCodeBadRequest, "peer is required")))
			return
		}
		g.join(ctx, c, DirectRoomID(c.Identity, auth.Identity{SubjectID: cmd.Peer}))
	default:
		g.emit(c, errorEvent(cmd.Room, coreError(ErrCodeUnknownType, "unknown command")))
	}
}

func (g *Gateway) join(ctx context.Context, c *Client, room string) {
	if c.Disconnected() {
		return
	}
	if err := ValidateRoomID(room); err != nil {
		g.emit(c, errorEvent(room, err))
		return
	}

	c.beginReplay(room)
	g.registry.Join(room, c)
	// Disconnect may have run LeaveAll between the check above and Join.
	if c.Disconnected() {
		g.registry.Leave(room, c)
		return
	}
	g.emit(c, &Event{Kind: EventJoined, Room: room})

	logger := g.logger.With().Str("client_id", c.ID).Str("room", room).Logger()
	logger.Debug().Msg("joined room")

	messages, err := g.store.Recent(ctx, room, g.historyLimit)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load history")
		metrics.HistoryFailuresTotal.Inc()
		g.emit(c, errorEvent(room, ErrHistoryUnavailable))
		g.finishReplay(c, room, nil)
		return
	}
	g.finishReplay(c, room, &Event{Kind: EventHistory, Room: room, Messages: messages})
}

func (g *Gateway) finishReplay(c *Client, room string, history *Event) {
	if c.finishReplay(room, history) {
		g.evictSlow(c)
	}
}

func (g *Gateway) send(ctx context.Context, c *Client, cmd *Command) {
	if err := ValidateRoomID(cmd.Room); err != nil {
		g.emit(c, errorEvent(cmd.Room, err))
		return
	}
	// Accepted sends complete even when the connection goes away mid-write.
	_, err := g.broadcaster.Send(context.WithoutCancel(ctx), c, cmd.Room, cmd.Payload)
	if err == nil {
		return
	}
	logEvent := g.logger.Warn()
	if errors.Is(err, ErrStoreFailure) {
		logEvent = g.logger.Error()
	}
	logEvent.Err(err).
		Str("client_id", c.ID).
		Str("room", cmd.Room).
		Msg("send failed")
	g.emit(c, errorEvent(cmd.Room, err))
}

// emit delivers an event to a single client.
func (g *Gateway) emit(c *Client, ev *Event) {
	if c.deliver(ev) {
		g.evictSlow(c)
	}
}

func (g *Gateway) evictSlow(c *Client) {
	g.logger.Warn().Str("client_id", c.ID).Msg("event queue full, disconnecting slow client")
	metrics.SlowConsumerEvictionsTotal.Inc()
	g.Disconnect(c)
}
