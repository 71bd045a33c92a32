package server_test

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/z3firox-ux/flappy-bird-online/pkg/packet/wire"
	"github.com/z3firox-ux/flappy-bird-online/server"
)

const testTick = 20 * time.Millisecond

func startServer(t *testing.T) *server.GameServer {
	t.Helper()
	gs, err := server.New("127.0.0.1:0", testTick)
	require.NoError(t, err)
	t.Cleanup(gs.Stop)
	return gs
}

type testClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func dial(t *testing.T, gs *server.GameServer) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", gs.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

func (c *testClient) send(line string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(c.t, err)
}

func (c *testClient) readLine() string {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.reader.ReadString('\n')
	require.NoError(c.t, err)
	return strings.TrimRight(line, "\r\n")
}

// readUntil skips interleaved messages (periodic BULK_STATE mostly) until a
// line with the wanted command arrives.
func (c *testClient) readUntil(command string) wire.Message {
	c.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		msg, err := wire.Decode(c.readLine())
		require.NoError(c.t, err)
		if msg.Command == command {
			return msg
		}
	}
	c.t.Fatalf("no %s message before deadline", command)
	return wire.Message{}
}

func TestRoomLifecycleScenario(t *testing.T) {
	gs := startServer(t)

	a := dial(t, gs)
	welcome := a.readUntil(wire.CmdWelcome)
	assert.Equal(t, "P1", welcome.Arg(0))

	a.send("CREATE_ROOM")
	created := a.readUntil(wire.CmdRoomCreated)
	assert.Equal(t, "R0001", created.Arg(0))

	b := dial(t, gs)
	welcome = b.readUntil(wire.CmdWelcome)
	assert.Equal(t, "P2", welcome.Arg(0))

	// lowercase id must be accepted
	b.send("JOIN_ROOM|r0001")
	joined := b.readUntil(wire.CmdRoomJoined)
	assert.Equal(t, "R0001", joined.Arg(0))

	a.readUntil(wire.CmdStart)
	b.readUntil(wire.CmdStart)
}

func TestMatchRestartsWhenRoomRefills(t *testing.T) {
	gs := startServer(t)

	a := dial(t, gs)
	a.readUntil(wire.CmdWelcome)
	a.send("CREATE_ROOM")
	a.readUntil(wire.CmdRoomCreated)

	b := dial(t, gs)
	b.readUntil(wire.CmdWelcome)
	b.send("JOIN_ROOM|R0001")
	a.readUntil(wire.CmdStart)
	b.readUntil(wire.CmdStart)

	// B drops mid-match; C takes the open seat and a new match begins
	require.NoError(t, b.conn.Close())
	a.readUntil(wire.CmdLeft)

	c := dial(t, gs)
	welcome := c.readUntil(wire.CmdWelcome)
	assert.Equal(t, "P3", welcome.Arg(0))

	c.send("JOIN_ROOM|R0001")
	c.readUntil(wire.CmdRoomJoined)
	c.readUntil(wire.CmdStart)
	a.readUntil(wire.CmdStart)
}

func TestJoinRoomErrors(t *testing.T) {
	gs := startServer(t)

	a := dial(t, gs)
	a.readUntil(wire.CmdWelcome)

	a.send("JOIN_ROOM|R9999")
	msg := a.readUntil(wire.CmdError)
	assert.Equal(t, "Room not found", msg.Arg(0))

	a.send("JOIN_ROOM|")
	msg = a.readUntil(wire.CmdError)
	assert.Equal(t, "Room ID is required", msg.Arg(0))

	a.send("JOIN_ROOM")
	msg = a.readUntil(wire.CmdError)
	assert.Equal(t, "Room ID is required", msg.Arg(0))
}

func TestJoinFullRoom(t *testing.T) {
	gs := startServer(t)

	a := dial(t, gs)
	a.readUntil(wire.CmdWelcome)
	a.send("CREATE_ROOM")
	created := a.readUntil(wire.CmdRoomCreated)

	b := dial(t, gs)
	b.readUntil(wire.CmdWelcome)
	b.send("JOIN_ROOM|" + created.Arg(0))
	b.readUntil(wire.CmdRoomJoined)

	c := dial(t, gs)
	c.readUntil(wire.CmdWelcome)
	c.send("JOIN_ROOM|" + created.Arg(0))
	msg := c.readUntil(wire.CmdError)
	assert.Equal(t, "Room is full", msg.Arg(0))
}

func TestStateRelayAndSnapshot(t *testing.T) {
	gs := startServer(t)

	a := dial(t, gs)
	a.readUntil(wire.CmdWelcome)
	a.send("CREATE_ROOM")
	a.readUntil(wire.CmdRoomCreated)

	b := dial(t, gs)
	b.readUntil(wire.CmdWelcome)
	b.send("JOIN_ROOM|R0001")
	b.readUntil(wire.CmdStart)

	a.send("STATE|P1|3.5|10.0|2")

	// low-latency relay preserves the original numeric text
	relayed := b.readUntil(wire.CmdState)
	assert.Equal(t, []string{"P1", "3.5", "10.0", "2"}, relayed.Args)

	// the periodic snapshot carries the same update
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "no snapshot with P1's update")
		snapshot, err := wire.ParseBulkState(b.readUntil(wire.CmdBulkState))
		require.NoError(t, err)

		found := false
		for _, st := range snapshot {
			if st.PlayerID == "P1" && st.X == 3.5 && st.Y == 10.0 && st.Score == 2 {
				found = true
			}
			// no cross-room leakage: only room members appear
			assert.Contains(t, []string{"P1", "P2"}, st.PlayerID)
		}
		if found {
			return
		}
	}
}

func TestJumpRelay(t *testing.T) {
	gs := startServer(t)

	a := dial(t, gs)
	a.readUntil(wire.CmdWelcome)
	a.send("CREATE_ROOM")
	a.readUntil(wire.CmdRoomCreated)

	b := dial(t, gs)
	b.readUntil(wire.CmdWelcome)
	b.send("JOIN_ROOM|R0001")
	b.readUntil(wire.CmdStart)

	a.send("JUMP|P1")
	msg := b.readUntil(wire.CmdJump)
	assert.Equal(t, "P1", msg.Arg(0))
}

func TestLeftOnDisconnect(t *testing.T) {
	gs := startServer(t)

	a := dial(t, gs)
	a.readUntil(wire.CmdWelcome)
	a.send("CREATE_ROOM")
	a.readUntil(wire.CmdRoomCreated)

	b := dial(t, gs)
	b.readUntil(wire.CmdWelcome)
	b.send("JOIN_ROOM|R0001")
	b.readUntil(wire.CmdStart)

	require.NoError(t, a.conn.Close())

	msg := b.readUntil(wire.CmdLeft)
	assert.Equal(t, "P1", msg.Arg(0))

	// snapshots after the departure omit P1; skip one snapshot in case a
	// tick was already in flight when A left
	b.readUntil(wire.CmdBulkState)
	snapshot, err := wire.ParseBulkState(b.readUntil(wire.CmdBulkState))
	require.NoError(t, err)
	for _, st := range snapshot {
		assert.NotEqual(t, "P1", st.PlayerID)
	}
}

func TestMalformedMessagesKeepConnectionOpen(t *testing.T) {
	gs := startServer(t)

	a := dial(t, gs)
	a.readUntil(wire.CmdWelcome)

	a.send("|||")
	a.send("")
	a.send("STATE|P1|not|numbers|here")
	a.send("NO_SUCH_COMMAND|x")

	// the connection survived all of it
	a.send("CREATE_ROOM")
	created := a.readUntil(wire.CmdRoomCreated)
	assert.Equal(t, "R0001", created.Arg(0))
}

func TestStateFromLobbyIsIgnored(t *testing.T) {
	gs := startServer(t)

	a := dial(t, gs)
	a.readUntil(wire.CmdWelcome)

	// not in a room: stored state must stay at its default
	a.send("STATE|P1|9|9|9")
	a.send("CREATE_ROOM")
	a.readUntil(wire.CmdRoomCreated)

	st, ok := gs.States().Get("P1")
	require.True(t, ok)
	assert.Equal(t, wire.PlayerState{PlayerID: "P1"}, st)
}
