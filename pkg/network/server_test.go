package network

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const latency = time.Millisecond * 1000

// Test_LineServer floods the server with short-lived clients and checks
// every connect, message and disconnect is observed.
func Test_LineServer(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	config := &Config{
		PacketReceiveChanLimit: 1024,
		PacketSendChanLimit:    1024,
		ConnWriteTimeout:       latency,
	}

	callback := &testCallback{}
	server := NewServer(config, callback, &LineProtocol{MaxLineLength: 1024})

	go server.Start(l, func(conn net.Conn, s *Server) *Conn {
		return NewConn(conn, s)
	})
	defer server.Stop()

	addr := l.Addr().String()

	wg := sync.WaitGroup{}
	const maxConn = 100
	for i := 0; i < maxConn; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			c, err := net.Dial("tcp", addr)
			if err != nil {
				t.Errorf("connect server failed: %v", err)
				return
			}
			defer c.Close()

			if _, err = c.Write(NewLinePacket("PING").Serialize()); err != nil {
				t.Errorf("ping server failed: %v", err)
				return
			}

			_ = c.SetReadDeadline(time.Now().Add(latency))
			line, err := bufio.NewReader(c).ReadString('\n')
			if err != nil {
				t.Errorf("read from server failed: %v", err)
				return
			}
			if line != "PONG\n" {
				t.Errorf("unexpected reply %q", line)
			}
		}()
	}

	wg.Wait()
	time.Sleep(time.Second)

	if n := atomic.LoadUint32(&callback.numConn); n != maxConn {
		t.Errorf("numConn[%d] should be [%d]", n, maxConn)
	}
	if n := atomic.LoadUint32(&callback.numMsg); n != maxConn {
		t.Errorf("numMsg[%d] should be [%d]", n, maxConn)
	}
	if n := atomic.LoadUint32(&callback.numDiscon); n != maxConn {
		t.Errorf("numDiscon[%d] should be [%d]", n, maxConn)
	}
}

// Test_StopClosesOpenConnections verifies a shutdown tears down idle
// connections even though they never hit a read deadline.
func Test_StopClosesOpenConnections(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	config := &Config{
		PacketReceiveChanLimit: 16,
		PacketSendChanLimit:    16,
	}
	callback := &testCallback{}
	server := NewServer(config, callback, &LineProtocol{})

	go server.Start(l, func(conn net.Conn, s *Server) *Conn {
		return NewConn(conn, s)
	})

	c, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	// wait until the server saw the connection
	deadline := time.Now().Add(latency)
	for atomic.LoadUint32(&callback.numConn) == 0 {
		require.True(t, time.Now().Before(deadline), "server never accepted")
		time.Sleep(time.Millisecond)
	}

	done := make(chan struct{})
	go func() {
		server.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not finish with an idle connection open")
	}
	require.Equal(t, uint32(1), atomic.LoadUint32(&callback.numDiscon))
}

// Test_LineProtocolCapsLineLength checks the length limit trips while the
// line is still streaming in, before it is buffered whole.
func Test_LineProtocolCapsLineLength(t *testing.T) {
	protocol := &LineProtocol{MaxLineLength: 16}

	long := strings.Repeat("a", 1<<20) + "\n"
	_, err := protocol.ReadPacket(bufio.NewReaderSize(strings.NewReader(long), 64))
	require.ErrorIs(t, err, ErrLineTooLong)

	p, err := protocol.ReadPacket(bufio.NewReader(strings.NewReader("PING\n")))
	require.NoError(t, err)
	require.Equal(t, "PING", p.(*LinePacket).Line())
}

type testCallback struct {
	numConn   uint32
	numMsg    uint32
	numDiscon uint32
}

func (t *testCallback) OnConnect(conn *Conn) bool {
	id := atomic.AddUint32(&t.numConn, 1)
	conn.PutExtraData(id)
	return true
}

func (t *testCallback) OnMessage(conn *Conn, packet Packet) bool {
	atomic.AddUint32(&t.numMsg, 1)
	return conn.AsyncWritePacket(NewLinePacket("PONG"), time.Second) == nil
}

func (t *testCallback) OnClose(conn *Conn) {
	atomic.AddUint32(&t.numDiscon, 1)
}
