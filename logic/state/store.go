// Package state keeps the last-known state of every connected player.
package state

import (
	"sync"

	"github.com/z3firox-ux/flappy-bird-online/pkg/packet/wire"
)

// Store is the single source of truth for "where is player P right now".
// Safe for concurrent use by any number of connection handlers and the
// snapshot broadcaster; callers need no external locking.
type Store struct {
	rw      sync.RWMutex
	players map[string]wire.PlayerState
}

func NewStore() *Store {
	return &Store{players: make(map[string]wire.PlayerState)}
}

// Put replaces any prior entry for the player.
func (s *Store) Put(st wire.PlayerState) {
	s.rw.Lock()
	s.players[st.PlayerID] = st
	s.rw.Unlock()
}

func (s *Store) Get(playerID string) (wire.PlayerState, bool) {
	s.rw.RLock()
	st, ok := s.players[playerID]
	s.rw.RUnlock()
	return st, ok
}

func (s *Store) Remove(playerID string) {
	s.rw.Lock()
	delete(s.players, playerID)
	s.rw.Unlock()
}

// Snapshot projects ids through the store, preserving the given order and
// skipping ids with no known state. The store itself is room-agnostic; the
// room registry decides which ids to project.
func (s *Store) Snapshot(ids []string) []wire.PlayerState {
	s.rw.RLock()
	defer s.rw.RUnlock()

	out := make([]wire.PlayerState, 0, len(ids))
	for _, id := range ids {
		if st, ok := s.players[id]; ok {
			out = append(out, st)
		}
	}
	return out
}

func (s *Store) Len() int {
	s.rw.RLock()
	defer s.rw.RUnlock()
	return len(s.players)
}
