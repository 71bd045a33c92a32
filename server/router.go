package server

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/alecthomas/log4go"
	"github.com/z3firox-ux/flappy-bird-online/logic"
	"github.com/z3firox-ux/flappy-bird-online/pkg/network"
	"github.com/z3firox-ux/flappy-bird-online/pkg/packet/wire"
)

// session binds an accepted connection to its assigned player id. It lives
// in the Conn's extra data slot; the room registry and the snapshot loop
// reference it only through the room.Member interface.
type session struct {
	conn     *network.Conn
	playerID string
}

func (s *session) PlayerID() string {
	return s.playerID
}

// Send queues one line. A failed send is proof the connection is dead, so
// the connection is torn down rather than retried.
func (s *session) Send(line string) error {
	err := s.conn.AsyncWritePacket(network.NewLinePacket(line), 0)
	if err != nil {
		s.conn.Close()
	}
	return err
}

func (gs *GameServer) OnConnect(conn *network.Conn) bool {
	playerID := fmt.Sprintf("P%d", atomic.AddUint64(&gs.playerSeq, 1))
	sess := &session{conn: conn, playerID: playerID}
	conn.PutExtraData(sess)

	// default zero state, so snapshots can include the player immediately
	gs.states.Put(wire.PlayerState{PlayerID: playerID})

	count := atomic.AddInt64(&gs.totalConn, 1)
	log4go.Debug("[router] OnConnect player=[%s] addr=[%s] totalConn=%d",
		playerID, conn.GetRawConn().RemoteAddr(), count)

	_ = sess.Send(wire.Welcome(playerID))
	return true
}

func (gs *GameServer) OnMessage(conn *network.Conn, p network.Packet) bool {
	sess, ok := conn.GetExtraData().(*session)
	if !ok {
		return false
	}
	line := p.(*network.LinePacket).Line()

	msg, err := wire.Decode(line)
	if err != nil {
		// garbage tolerance: drop the line, keep the connection
		log4go.Error("[router] drop undecodable line player=[%s]: %v", sess.playerID, err)
		return true
	}

	switch msg.Command {
	case wire.CmdJoin:
		// presence was already acknowledged by WELCOME on accept
	case wire.CmdCreateRoom:
		gs.handleCreateRoom(sess)
	case wire.CmdJoinRoom:
		gs.handleJoinRoom(sess, msg)
	case wire.CmdJump:
		gs.handleJump(sess)
	case wire.CmdState:
		gs.handleState(sess, msg)
	default:
		// unknown commands are ignored for forward compatibility
	}
	return true
}

func (gs *GameServer) OnClose(conn *network.Conn) {
	count := atomic.AddInt64(&gs.totalConn, -1)
	sess, ok := conn.GetExtraData().(*session)
	if !ok {
		return
	}

	roomID, remaining := gs.roomMgr.Leave(sess)
	gs.states.Remove(sess.playerID)
	if roomID != "" {
		for _, m := range remaining {
			_ = m.Send(wire.Left(sess.playerID))
		}
	}
	log4go.Info("[router] OnClose player=[%s] totalConn=%d", sess.playerID, count)
}

func (gs *GameServer) handleCreateRoom(sess *session) {
	roomID := gs.roomMgr.CreateRoom(sess)
	log4go.Info("[router] room created room=[%s] player=[%s]", roomID, sess.playerID)
	_ = sess.Send(wire.RoomCreated(roomID))
}

func (gs *GameServer) handleJoinRoom(sess *session, msg wire.Message) {
	requested := strings.TrimSpace(msg.Arg(0))
	if requested == "" {
		_ = sess.Send(wire.ServerError("Room ID is required"))
		return
	}
	roomID := strings.ToUpper(requested)

	started, err := gs.roomMgr.JoinRoom(sess, roomID)
	switch {
	case errors.Is(err, logic.ErrRoomNotFound):
		_ = sess.Send(wire.ServerError("Room not found"))
		return
	case errors.Is(err, logic.ErrRoomFull):
		_ = sess.Send(wire.ServerError("Room is full"))
		return
	}

	_ = sess.Send(wire.RoomJoined(roomID))
	if started {
		for _, m := range gs.roomMgr.MembersOf(roomID) {
			_ = m.Send(wire.Start())
		}
		log4go.Info("[router] match started room=[%s]", roomID)
	}
}

func (gs *GameServer) handleJump(sess *session) {
	roomID, ok := gs.roomMgr.RoomOf(sess)
	if !ok {
		return
	}
	gs.broadcastRoom(roomID, wire.Jump(sess.playerID))
}

func (gs *GameServer) handleState(sess *session, msg wire.Message) {
	roomID, ok := gs.roomMgr.RoomOf(sess)
	if !ok {
		return
	}

	st, err := wire.ParseState(msg)
	if err != nil {
		log4go.Error("[router] drop malformed STATE player=[%s]: %v", sess.playerID, err)
		return
	}
	// never trust the claimed id
	st.PlayerID = sess.playerID
	gs.states.Put(st)

	// relay the original numeric text so peers see the update byte for byte
	gs.broadcastRoom(roomID, wire.Encode(wire.CmdState, sess.playerID, msg.Arg(1), msg.Arg(2), msg.Arg(3)))
}

func (gs *GameServer) broadcastRoom(roomID, line string) {
	for _, m := range gs.roomMgr.MembersOf(roomID) {
		_ = m.Send(line)
	}
}
