package tcp_server

import (
	"net"
	"time"

	"github.com/z3firox-ux/flappy-bird-online/pkg/network"
)

// ListenAndServe binds a TCP listener and starts the accept loop in the
// background. The returned address carries the actual port when addr asked
// for an ephemeral one.
func ListenAndServe(addr string, callback network.ConnCallback, protocol network.Protocol) (*network.Server, net.Addr, error) {
	config := &network.Config{
		PacketReceiveChanLimit: 1024,
		PacketSendChanLimit:    1024,
		ConnWriteTimeout:       time.Second * 5,
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	server := network.NewServer(config, callback, protocol)
	go server.Start(l, func(conn net.Conn, s *network.Server) *network.Conn {
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
		}
		return network.NewConn(conn, s)
	})

	return server, l.Addr(), nil
}
