package core

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Registry tracks which clients are subscribed to which rooms.
// A room exists only while it has at least one subscriber.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]map[string]*Client
	clients map[string]map[string]struct{}
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:   make(map[string]map[string]*Client),
		clients: make(map[string]map[string]struct{}),
	}
}

// Join subscribes c to room. Returns true if newly added.
func (r *Registry) Join(room string, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		r.rooms[room] = members
	}
	if _, exists := members[c.ID]; exists {
		return false
	}
	members[c.ID] = c

	joined, ok := r.clients[c.ID]
	if !ok {
		joined = make(map[string]struct{})
		r.clients[c.ID] = joined
	}
	joined[room] = struct{}{}
	return true
}

// Leave unsubscribes c from room. Returns true if removed.
func (r *Registry) Leave(room string, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(room, c.ID)
}

// LeaveAll removes c from every room and returns the rooms it had joined.
func (r *Registry) LeaveAll(c *Client) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := lo.Keys(r.clients[c.ID])
	for _, room := range rooms {
		r.leaveLocked(room, c.ID)
	}
	sort.Strings(rooms)
	return rooms
}

func (r *Registry) leaveLocked(room, clientID string) bool {
	members, ok := r.rooms[room]
	if !ok {
		return false
	}
	if _, exists := members[clientID]; !exists {
		return false
	}
	delete(members, clientID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}

	if joined, ok := r.clients[clientID]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(r.clients, clientID)
		}
	}
	return true
}

// Subscribers returns a snapshot of the clients subscribed to room.
func (r *Registry) Subscribers(room string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.rooms[room])
}

// Count returns the number of subscribers of room.
func (r *Registry) Count(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// Rooms returns the rooms c is subscribed to, sorted.
func (r *Registry) Rooms(c *Client) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rooms := lo.Keys(r.clients[c.ID])
	sort.Strings(rooms)
	return rooms
}

// RoomCount returns the number of rooms with at least one subscriber.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
