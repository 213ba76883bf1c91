package core

import (
	"sync"

	"github.com/alexismendozaa/chat/internal/auth"
	"github.com/alexismendozaa/chat/internal/utils"
)

// DefaultQueueSize is the per-client event queue capacity.
const DefaultQueueSize = 64

// ClientState is the lifecycle state of a connection.
type ClientState int

const (
	// StateAuthenticated is the state of every client handed out by the gateway.
	StateAuthenticated ClientState = iota
	// StateDisconnected is terminal.
	StateDisconnected
)

// Client is a chat participant as seen by the core layer.
type Client struct {
	ID       string
	Identity auth.Identity

	commands chan *Command
	events   chan *Event
	done     chan struct{}

	// submitting is held shared by Submit; drain takes it exclusively so no
	// accepted command can land after the queue was emptied.
	submitting sync.RWMutex

	mu    sync.Mutex
	state ClientState
	// Rooms present here are replaying history; live messages wait in the slice.
	replaying map[string][]*Event
	// Ids of the last history replayed per room. A send that committed before
	// the history read may still be fanned out afterwards; it is dropped here.
	replayed map[string]map[string]struct{}
}

// NewClient constructs a client with initialized channels.
func NewClient(identity auth.Identity, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Client{
		ID:        utils.NewID(),
		Identity:  identity,
		commands:  make(chan *Command, queueSize),
		events:    make(chan *Event, queueSize),
		done:      make(chan struct{}),
		replaying: make(map[string][]*Event),
		replayed:  make(map[string]map[string]struct{}),
	}
}

// Events is closed once the client is disconnected.
func (c *Client) Events() <-chan *Event {
	return c.events
}

// Done is closed once the client is disconnected.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// State returns the current lifecycle state.
func (c *Client) State() ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Disconnected reports whether the client reached its terminal state.
func (c *Client) Disconnected() bool {
	return c.State() == StateDisconnected
}

// Submit queues a command for the client's run loop.
// It returns false once the client is disconnected.
func (c *Client) Submit(cmd *Command) bool {
	c.submitting.RLock()
	defer c.submitting.RUnlock()

	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case <-c.done:
		return false
	case c.commands <- cmd:
		return true
	}
}

// deliver pushes ev without blocking. It reports true when the queue is full
// and the caller must evict the client.
func (c *Client) deliver(ev *Event) (overflow bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDisconnected {
		return false
	}
	if ev.Kind == EventMessage {
		if buf, ok := c.replaying[ev.Room]; ok {
			c.replaying[ev.Room] = append(buf, ev)
			return false
		}
		if seen := c.replayed[ev.Room]; seen != nil {
			if _, dup := seen[ev.Message.ID]; dup {
				// Each message is fanned out once, so the id can go.
				delete(seen, ev.Message.ID)
				return false
			}
		}
	}
	return !c.push(ev)
}


// push must be called with mu held.
func (c *Client) push(ev *Event) bool {
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

// beginReplay holds back live messages for room until finishReplay.
func (c *Client) beginReplay(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDisconnected {
		return
	}
	if _, ok := c.replaying[room]; !ok {
		c.replaying[room] = nil
	}
	delete(c.replayed, room)
}

// finishReplay emits the history event, then the messages held back during
// replay that the history did not already contain, and switches room to live.
// Both happen under one lock so no concurrent delivery can slip in between.
func (c *Client) finishReplay(room string, history *Event) (overflow bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	buffered := c.replaying[room]
	delete(c.replaying, room)
	if c.state == StateDisconnected {
		return false
	}

	seen := make(map[string]struct{})
	if history != nil {
		if !c.push(history) {
			return true
		}
		replayed := make(map[string]struct{}, len(history.Messages))
		for _, m := range history.Messages {
			seen[m.ID] = struct{}{}
			replayed[m.ID] = struct{}{}
		}
		c.replayed[room] = replayed
	}
	for _, ev := range buffered {
		if _, dup := seen[ev.Message.ID]; dup {
			continue
		}
		seen[ev.Message.ID] = struct{}{}
		if !c.push(ev) {
			return true
		}
	}
	return false
}

// close moves the client to its terminal state. Only the first call returns true.
func (c *Client) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDisconnected {
		return false
	}
	c.state = StateDisconnected
	c.replaying = nil
	c.replayed = nil
	close(c.done)
	close(c.events)
	return true
}
