// Package relay holds the in-memory room registry behind the sync endpoint.
// Rooms exist only while they have subscribers and nothing survives a
// process restart.
package relay

import (
	"log"
	"sort"
	"sync"
)

// DefaultRoom is used when a request names no room.
const DefaultRoom = "default"

// Registry maps room keys to their live subscribers. All mutations and
// broadcasts are serialised by one mutex.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]map[*Subscriber]struct{}
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[*Subscriber]struct{})}
}

// Register adds sub to the set for room, creating the room if needed.
func (r *Registry) Register(room string, sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, ok := r.rooms[room]
	if !ok {
		subs = make(map[*Subscriber]struct{})
		r.rooms[room] = subs
	}
	subs[sub] = struct{}{}
}

// Unregister removes sub from room and deletes the room once it is empty.
// Unknown rooms or subscribers are ignored.
func (r *Registry) Unregister(room string, sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregisterLocked(room, sub)
}

func (r *Registry) unregisterLocked(room string, sub *Subscriber) {
	subs, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(r.rooms, room)
	}
}

// Broadcast queues frame on every subscriber of room and returns how many
// accepted it. A subscriber whose send fails is closed and unregistered;
// the failure is logged and does not affect the others.
func (r *Registry) Broadcast(room string, frame []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	delivered := 0
	for sub := range r.rooms[room] {
		if err := sub.Send(frame); err != nil {
			log.Printf("[sync] dropping subscriber uid=%s room=%s: %v", sub.ID, room, err)
			sub.Close()
			r.unregisterLocked(room, sub)
			continue
		}
		delivered++
	}
	return delivered
}

// Size returns the number of subscribers in room.
func (r *Registry) Size(room string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[room])
}

// Has reports whether room currently has an entry.
func (r *Registry) Has(room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[room]
	return ok
}

// Rooms returns the sorted keys of all live rooms.
func (r *Registry) Rooms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.rooms))
	for room := range r.rooms {
		keys = append(keys, room)
	}
	sort.Strings(keys)
	return keys
}

type Stats struct {
	Rooms       int `json:"rooms"`
	Subscribers int `json:"subscribers"`
}

func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := Stats{Rooms: len(r.rooms)}
	for _, subs := range r.rooms {
		stats.Subscribers += len(subs)
	}
	return stats
}

// CloseAll closes and removes every subscriber. Used on shutdown so that
// open streams return promptly.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for room, subs := range r.rooms {
		for sub := range subs {
			sub.Close()
		}
		delete(r.rooms, room)
	}
}
