// Package client is the game-side session for talking to the multiplayer
// server. Game code drives it with the send methods and consumes server
// events through a Listener.
package client

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/alecthomas/log4go"
	"github.com/xtaci/kcp-go"
	"github.com/z3firox-ux/flappy-bird-online/pkg/network"
	"github.com/z3firox-ux/flappy-bird-online/pkg/packet/wire"
)

var ErrNotConnected = errors.New("client is not connected")

// Listener receives every event the server pushes. Callbacks run on the
// session's receive goroutine, never on the goroutine calling the send
// methods; do not assume the game's main thread.
type Listener interface {
	OnConnected(playerID string)
	OnRoomCreated(roomID string)
	OnRoomJoined(roomID string)
	OnMatchStarted()
	OnPlayerState(st wire.PlayerState)
	OnSnapshot(states []wire.PlayerState)
	OnPlayerJump(playerID string)
	OnPlayerLeft(playerID string)
	OnServerError(reason string)
	OnDisconnected()
	OnTransportError(err error)
}

// NopListener is a Listener with every callback a no-op. Embed it to
// implement only the callbacks you care about.
type NopListener struct{}

func (NopListener) OnConnected(string)             {}
func (NopListener) OnRoomCreated(string)           {}
func (NopListener) OnRoomJoined(string)            {}
func (NopListener) OnMatchStarted()                {}
func (NopListener) OnPlayerState(wire.PlayerState) {}
func (NopListener) OnSnapshot([]wire.PlayerState)  {}
func (NopListener) OnPlayerJump(string)            {}
func (NopListener) OnPlayerLeft(string)            {}
func (NopListener) OnServerError(string)           {}
func (NopListener) OnDisconnected()                {}
func (NopListener) OnTransportError(error)         {}

// Client is one session against the game server.
type Client struct {
	addr string
	dial func(addr string) (net.Conn, error)

	mu        sync.Mutex
	conn      net.Conn
	connected bool
	playerID  string

	sendMu sync.Mutex

	lmu      sync.RWMutex
	listener Listener
}

// New creates a TCP client session for addr. Nothing is dialed until
// Connect.
func New(addr string) *Client {
	return &Client{addr: addr, dial: dialTCP}
}

// NewKCP creates a session that reaches the server's KCP listener instead.
func NewKCP(addr string) *Client {
	return &Client{addr: addr, dial: kcp.Dial}
}

func dialTCP(addr string) (net.Conn, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
	return conn, nil
}

// SetListener installs the callback set. Safe to call at any time.
func (c *Client) SetListener(l Listener) {
	c.lmu.Lock()
	c.listener = l
	c.lmu.Unlock()
}

func (c *Client) getListener() Listener {
	c.lmu.RLock()
	defer c.lmu.RUnlock()
	return c.listener
}

// Connect dials the server, starts the receive loop and announces
// presence with JOIN. Idempotent while connected.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	conn, err := c.dial(c.addr)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.conn = conn
	c.connected = true
	// the previous session's id must not leak into this one: sends stay
	// no-ops until the new WELCOME arrives
	c.playerID = ""
	c.mu.Unlock()

	go c.readLoop(conn)
	return c.send(wire.Join())
}

// Disconnect closes the transport. Idempotent; OnDisconnected fires
// exactly once per successful preceding Connect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = false
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if l := c.getListener(); l != nil {
		l.OnDisconnected()
	}
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// PlayerID is the id assigned by WELCOME, empty until it arrives.
func (c *Client) PlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

// CreateRoom asks for a new room. The ROOM_CREATED reply arrives through
// the listener.
func (c *Client) CreateRoom() error {
	return c.send(wire.CreateRoom())
}

// JoinRoom asks to join an existing room. ROOM_JOINED, START or ERROR
// arrive through the listener.
func (c *Client) JoinRoom(roomID string) error {
	return c.send(wire.JoinRoom(roomID))
}

// SendState publishes the local player's position and score. A no-op until
// WELCOME has assigned a player id.
func (c *Client) SendState(x, y float64, score int) {
	id := c.PlayerID()
	if id == "" {
		return
	}
	_ = c.send(wire.State(id, x, y, score))
}

// SendJump publishes a jump input event. A no-op until WELCOME has
// assigned a player id.
func (c *Client) SendJump() {
	id := c.PlayerID()
	if id == "" {
		return
	}
	_ = c.send(wire.Jump(id))
}

func (c *Client) send(line string) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}

	c.sendMu.Lock()
	_, err := conn.Write(network.NewLinePacket(line).Serialize())
	c.sendMu.Unlock()
	if err != nil {
		// a failed write is proof the connection is dead
		c.Disconnect()
	}
	return err
}

func (c *Client) readLoop(conn net.Conn) {
	reader := bufio.NewReader(conn)
	protocol := &network.LineProtocol{}

	for {
		p, err := protocol.ReadPacket(reader)
		if err != nil {
			if c.IsConnected() {
				// a clean EOF is an ordinary goodbye, not a fault
				if !errors.Is(err, io.EOF) {
					if l := c.getListener(); l != nil {
						l.OnTransportError(err)
					}
				}
				c.Disconnect()
			}
			return
		}
		c.handle(p.(*network.LinePacket).Line())
	}
}

func (c *Client) handle(line string) {
	msg, err := wire.Decode(line)
	if err != nil {
		log4go.Error("[client] drop undecodable line: %v", err)
		return
	}

	l := c.getListener()
	switch msg.Command {
	case wire.CmdWelcome:
		id := msg.Arg(0)
		if id == "" {
			return
		}
		c.mu.Lock()
		c.playerID = id
		c.mu.Unlock()
		if l != nil {
			l.OnConnected(id)
		}
	case wire.CmdRoomCreated:
		if l != nil && msg.Arg(0) != "" {
			l.OnRoomCreated(msg.Arg(0))
		}
	case wire.CmdRoomJoined:
		if l != nil && msg.Arg(0) != "" {
			l.OnRoomJoined(msg.Arg(0))
		}
	case wire.CmdStart:
		if l != nil {
			l.OnMatchStarted()
		}
	case wire.CmdState:
		st, err := wire.ParseState(msg)
		if err != nil {
			log4go.Error("[client] drop malformed STATE: %v", err)
			return
		}
		if l != nil {
			l.OnPlayerState(st)
		}
	case wire.CmdBulkState:
		states, err := wire.ParseBulkState(msg)
		if err != nil {
			log4go.Error("[client] drop malformed BULK_STATE: %v", err)
			return
		}
		if l != nil {
			l.OnSnapshot(states)
		}
	case wire.CmdJump:
		if l != nil && msg.Arg(0) != "" {
			l.OnPlayerJump(msg.Arg(0))
		}
	case wire.CmdLeft:
		if l != nil && msg.Arg(0) != "" {
			l.OnPlayerLeft(msg.Arg(0))
		}
	case wire.CmdError:
		if l != nil {
			l.OnServerError(msg.Arg(0))
		}
	default:
		// ignore unknown commands
	}
}
