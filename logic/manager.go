// Package logic implements the matchmaking registry shared by every
// connection handler and the snapshot broadcaster.
package logic

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/z3firox-ux/flappy-bird-online/logic/room"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
)

// RoomManager is used to manage game rooms. Room ids come from a monotonic
// counter, so collisions are structurally impossible.
type RoomManager struct {
	rw       sync.RWMutex
	rooms    map[string]*room.Room
	byMember map[room.Member]string
	seq      uint64
}

// NewRoomManager creates a new room manager
func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms:    make(map[string]*room.Room),
		byMember: make(map[room.Member]string),
	}
}

// CreateRoom opens a fresh room with m as its sole member and returns the
// room id. A member already in a room leaves it first.
func (rm *RoomManager) CreateRoom(m room.Member) string {
	rm.Leave(m)

	id := fmt.Sprintf("R%04d", atomic.AddUint64(&rm.seq, 1))
	r := room.New(id)
	r.Add(m)

	rm.rw.Lock()
	rm.rooms[id] = r
	rm.byMember[m] = id
	rm.rw.Unlock()
	return id
}

// JoinRoom moves m into the room named by roomID. Ids are matched after
// trimming and uppercasing, the way clients type them. Joining the room m
// is already in is a no-op success. The started result is true when this
// join filled the room, which is the sole trigger for starting a match.
func (rm *RoomManager) JoinRoom(m room.Member, roomID string) (started bool, err error) {
	roomID = strings.ToUpper(strings.TrimSpace(roomID))

	rm.rw.RLock()
	r, ok := rm.rooms[roomID]
	current := rm.byMember[m]
	rm.rw.RUnlock()

	if !ok {
		return false, ErrRoomNotFound
	}
	if current == roomID {
		return false, nil
	}
	if r.Size() >= room.Capacity {
		return false, ErrRoomFull
	}

	rm.Leave(m)
	ok, started = r.Add(m)
	if !ok {
		return false, ErrRoomFull
	}

	rm.rw.Lock()
	// reinsert in case the room emptied out and was deleted between the
	// lookup and the add
	rm.rooms[roomID] = r
	rm.byMember[m] = roomID
	rm.rw.Unlock()
	return started, nil
}

// Leave removes m from its current room, if any, and deletes the room the
// moment it empties. Idempotent. It returns the room id m left and the
// members still in it, so the caller can notify them.
func (rm *RoomManager) Leave(m room.Member) (roomID string, remaining []room.Member) {
	rm.rw.Lock()
	roomID, ok := rm.byMember[m]
	if !ok {
		rm.rw.Unlock()
		return "", nil
	}
	delete(rm.byMember, m)
	r := rm.rooms[roomID]
	rm.rw.Unlock()

	if r == nil {
		return roomID, nil
	}
	if r.Remove(m) == 0 {
		rm.rw.Lock()
		if r.Size() == 0 {
			delete(rm.rooms, roomID)
		}
		rm.rw.Unlock()
	}
	return roomID, r.Members()
}

// MembersOf returns the membership of roomID in join order, empty for
// unknown or closed rooms.
func (rm *RoomManager) MembersOf(roomID string) []room.Member {
	rm.rw.RLock()
	r := rm.rooms[roomID]
	rm.rw.RUnlock()

	if r == nil {
		return nil
	}
	return r.Members()
}

// RoomOf reports which room m currently occupies.
func (rm *RoomManager) RoomOf(m room.Member) (string, bool) {
	rm.rw.RLock()
	defer rm.rw.RUnlock()

	roomID, ok := rm.byMember[m]
	return roomID, ok
}

// RoomIDs lists every registered room.
func (rm *RoomManager) RoomIDs() []string {
	rm.rw.RLock()
	defer rm.rw.RUnlock()

	ids := make([]string, 0, len(rm.rooms))
	for id := range rm.rooms {
		ids = append(ids, id)
	}
	return ids
}

// RoomCount gets the count of the room
func (rm *RoomManager) RoomCount() int {
	rm.rw.RLock()
	defer rm.rw.RUnlock()
	return len(rm.rooms)
}
