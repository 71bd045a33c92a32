// Package room holds the matchmaking unit: a room caps two connections
// that play against each other.
package room

import "sync"

// Capacity is the hard member limit per room.
const Capacity = 2

// Member is one live connection as seen by the matchmaking layer. Rooms
// only reference members; the connection handler owns them.
type Member interface {
	PlayerID() string

	// Send queues one encoded line. A non-nil error means the
	// connection is dead.
	Send(line string) error
}

// Room is an ordered set of at most Capacity members guarded by its own
// lock, so unrelated rooms never serialize on each other.
type Room struct {
	id string

	mu      sync.Mutex
	members []Member
}

func New(id string) *Room {
	return &Room{id: id, members: make([]Member, 0, Capacity)}
}

func (r *Room) ID() string {
	return r.id
}

// Add admits m unless the room is full. The started result is true on any
// admission that fills the room, including a refill of the open seat after
// a member left mid-match.
func (r *Room) Add(m Member) (ok, started bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.members) >= Capacity {
		return false, false
	}
	r.members = append(r.members, m)
	return true, len(r.members) == Capacity
}

// Remove drops m and reports the remaining member count. Removing a
// non-member is a no-op.
func (r *Room) Remove(m Member) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.members {
		if existing == m {
			r.members = append(r.members[:i], r.members[i+1:]...)
			break
		}
	}
	return len(r.members)
}

func (r *Room) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Members returns the current membership in join order.
func (r *Room) Members() []Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Member, len(r.members))
	copy(out, r.members)
	return out
}
