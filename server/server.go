// Package server wires the connection layer, the room registry and the
// player state store into the multiplayer sync service.
package server

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alecthomas/log4go"
	"github.com/z3firox-ux/flappy-bird-online/logic"
	"github.com/z3firox-ux/flappy-bird-online/logic/state"
	"github.com/z3firox-ux/flappy-bird-online/pkg/kcp_server"
	"github.com/z3firox-ux/flappy-bird-online/pkg/network"
	"github.com/z3firox-ux/flappy-bird-online/pkg/packet/wire"
	"github.com/z3firox-ux/flappy-bird-online/pkg/tcp_server"
)

// DefaultSnapshotTick is how often every room gets a BULK_STATE push.
const DefaultSnapshotTick = 100 * time.Millisecond

// MaxLineLength bounds one protocol line; anything longer kills the
// offending connection.
const MaxLineLength = 64 * 1024

// GameServer pairs connected players into two-player rooms and keeps both
// sides of every room in sync: a low-latency relay per STATE/JUMP update
// plus a periodic full-room snapshot.
type GameServer struct {
	roomMgr *logic.RoomManager
	states  *state.Store

	netServers []*network.Server
	addr       net.Addr
	tick       time.Duration

	playerSeq uint64
	totalConn int64

	exitChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New starts a game server on a TCP listener and its snapshot loop. A tick
// of zero means DefaultSnapshotTick.
func New(address string, tick time.Duration) (*GameServer, error) {
	if tick <= 0 {
		tick = DefaultSnapshotTick
	}
	gs := &GameServer{
		roomMgr:  logic.NewRoomManager(),
		states:   state.NewStore(),
		tick:     tick,
		exitChan: make(chan struct{}),
	}

	srv, addr, err := tcp_server.ListenAndServe(address, gs, &network.LineProtocol{MaxLineLength: MaxLineLength})
	if err != nil {
		return nil, err
	}
	gs.netServers = append(gs.netServers, srv)
	gs.addr = addr

	gs.wg.Add(1)
	go gs.snapshotLoop()
	return gs, nil
}

// ListenKCP attaches an additional KCP listener feeding the same rooms and
// player states as the TCP one.
func (gs *GameServer) ListenKCP(address string) error {
	srv, addr, err := kcp_server.ListenAndServe(address, gs, &network.LineProtocol{MaxLineLength: MaxLineLength})
	if err != nil {
		return err
	}
	gs.netServers = append(gs.netServers, srv)
	log4go.Info("[server] kcp listener on %s", addr)
	return nil
}

// Addr is the bound address of the TCP listener.
func (gs *GameServer) Addr() net.Addr {
	return gs.addr
}

// RoomManager gets room manager
func (gs *GameServer) RoomManager() *logic.RoomManager {
	return gs.roomMgr
}

// States gets the player state store
func (gs *GameServer) States() *state.Store {
	return gs.states
}

// ConnCount reports the number of live connections.
func (gs *GameServer) ConnCount() int64 {
	return atomic.LoadInt64(&gs.totalConn)
}

// Stop shuts down the listeners, every open connection and the snapshot
// loop, and waits for all of them.
func (gs *GameServer) Stop() {
	gs.stopOnce.Do(func() {
		close(gs.exitChan)
		for _, srv := range gs.netServers {
			srv.Stop()
		}
		gs.wg.Wait()
	})
}

func (gs *GameServer) snapshotLoop() {
	defer gs.wg.Done()

	ticker := time.NewTicker(gs.tick)
	defer ticker.Stop()

	for {
		select {
		case <-gs.exitChan:
			return
		case <-ticker.C:
			gs.broadcastSnapshots()
		}
	}
}

// broadcastSnapshots pushes one BULK_STATE to every member of every
// non-empty room. A dead member must not block its peer, nor abort the
// next tick.
func (gs *GameServer) broadcastSnapshots() {
	for _, roomID := range gs.roomMgr.RoomIDs() {
		members := gs.roomMgr.MembersOf(roomID)
		if len(members) == 0 {
			continue
		}

		ids := make([]string, 0, len(members))
		for _, m := range members {
			ids = append(ids, m.PlayerID())
		}
		snapshot := gs.states.Snapshot(ids)
		if len(snapshot) == 0 {
			continue
		}

		line := wire.BulkState(snapshot)
		for _, m := range members {
			if err := m.Send(line); err != nil {
				log4go.Error("[snapshot] send failed room=[%s] player=[%s]: %v", roomID, m.PlayerID(), err)
			}
		}
	}
}
