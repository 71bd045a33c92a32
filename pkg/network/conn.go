package network

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alecthomas/log4go"
)

var (
	ErrConnClosing   = errors.New("use of closed network connection")
	ErrWriteBlocking = errors.New("write packet was blocking")
)

// Conn is one live client connection. Incoming packets are handed to the
// server's ConnCallback in arrival order; outgoing packets are queued and
// written by a dedicated goroutine, so any goroutine may send.
type Conn struct {
	srv               *Server
	conn              net.Conn
	reader            *bufio.Reader
	extraData         interface{}
	closeOnce         sync.Once
	closeFlag         int32
	closeChan         chan struct{}
	packetSendChan    chan Packet
	packetReceiveChan chan Packet
	callback          ConnCallback
}

// ConnCallback is an interface of methods that are used as callbacks on a connection
type ConnCallback interface {
	// OnConnect is called when the connection was accepted,
	// If the return value of false is closed
	OnConnect(*Conn) bool

	// OnMessage is called when the connection receives a packet,
	// If the return value of false is closed
	OnMessage(*Conn, Packet) bool

	// OnClose is called when the connection closed
	OnClose(*Conn)
}

// NewConn creates a new connection
func NewConn(conn net.Conn, srv *Server) *Conn {
	return &Conn{
		srv:               srv,
		callback:          srv.callback,
		conn:              conn,
		reader:            bufio.NewReader(conn),
		closeChan:         make(chan struct{}),
		packetSendChan:    make(chan Packet, srv.config.PacketSendChanLimit),
		packetReceiveChan: make(chan Packet, srv.config.PacketReceiveChanLimit),
	}
}

// GetExtraData returns the extra data from the Conn
func (c *Conn) GetExtraData() interface{} {
	return c.extraData
}

// PutExtraData puts the extra data with the Conn
func (c *Conn) PutExtraData(data interface{}) {
	c.extraData = data
}

// GetRawConn returns the raw net.Conn from the Conn
func (c *Conn) GetRawConn() net.Conn {
	return c.conn
}

// Close closes the connection
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		atomic.StoreInt32(&c.closeFlag, 1)
		close(c.closeChan)
		close(c.packetSendChan)
		close(c.packetReceiveChan)
		c.conn.Close()
		c.srv.untrackConn(c)
		c.callback.OnClose(c)
	})
}

// IsClosed indicates whether the connection is closed or not
func (c *Conn) IsClosed() bool {
	return atomic.LoadInt32(&c.closeFlag) == 1
}

// AsyncWritePacket queues a packet without blocking. With a zero timeout
// the send fails immediately when the queue is full; otherwise it waits up
// to timeout for room.
func (c *Conn) AsyncWritePacket(p Packet, timeout time.Duration) (err error) {
	if c.IsClosed() {
		return ErrConnClosing
	}

	defer func() {
		if e := recover(); e != nil {
			err = ErrConnClosing
		}
	}()

	if timeout == 0 {
		select {
		case c.packetSendChan <- p:
			return nil
		default:
			return ErrWriteBlocking
		}
	}

	select {
	case c.packetSendChan <- p:
		return nil
	case <-c.closeChan:
		return ErrConnClosing
	case <-time.After(timeout):
		return ErrWriteBlocking
	}
}

// Do runs the connection's loops
func (c *Conn) Do() {
	if !c.callback.OnConnect(c) {
		c.Close()
		return
	}

	asyncDo(c.handleLoop, c.srv.waitGroup)
	asyncDo(c.readLoop, c.srv.waitGroup)
	asyncDo(c.writeLoop, c.srv.waitGroup)
}

func asyncDo(fn func(), wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		fn()
		wg.Done()
	}()
}

// readLoop reads packets until the transport fails or the connection is
// closed. There is no idle deadline unless the config asks for one: a
// connection lives until it errors, is closed, or the server shuts down.
func (c *Conn) readLoop() {
	defer func() {
		recover()
		c.Close()
	}()

	for {
		select {
		case <-c.srv.exitChan:
			return
		case <-c.closeChan:
			return
		default:
		}

		if c.srv.config.ConnReadTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.srv.config.ConnReadTimeout))
		}
		p, err := c.srv.protocol.ReadPacket(c.reader)
		if err != nil {
			return
		}
		c.packetReceiveChan <- p
	}
}

// writeLoop is a loop to write
func (c *Conn) writeLoop() {
	defer func() {
		recover()
		c.Close()
	}()

	for {
		select {
		case <-c.srv.exitChan:
			return
		case <-c.closeChan:
			return
		case p := <-c.packetSendChan:
			if c.IsClosed() {
				return
			}
			if c.srv.config.ConnWriteTimeout > 0 {
				_ = c.conn.SetWriteDeadline(time.Now().Add(c.srv.config.ConnWriteTimeout))
			}
			if _, err := c.conn.Write(p.Serialize()); err != nil {
				log4go.Error("write packet error: %v", err)
				return
			}
		}
	}
}

// handleLoop dispatches received packets to the OnMessage callback, one at
// a time and in arrival order.
func (c *Conn) handleLoop() {
	defer func() {
		recover()
		c.Close()
	}()
	for {
		select {
		case <-c.srv.exitChan:
			return

		case <-c.closeChan:
			return

		case p := <-c.packetReceiveChan:
			if c.IsClosed() {
				return
			}
			if !c.callback.OnMessage(c, p) {
				return
			}
		}
	}
}
