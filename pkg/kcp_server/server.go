package kcp_server

import (
	"net"
	"time"

	"github.com/xtaci/kcp-go"
	"github.com/z3firox-ux/flappy-bird-online/pkg/network"
)

// ListenAndServe serves the same line protocol over KCP for clients on
// lossy links. The callback and protocol are shared with the TCP listener,
// so both transports feed one game world.
func ListenAndServe(addr string, callback network.ConnCallback, protocol network.Protocol) (*network.Server, net.Addr, error) {
	config := &network.Config{
		PacketReceiveChanLimit: 1024,
		PacketSendChanLimit:    1024,
		ConnWriteTimeout:       time.Second * 5,
	}

	l, err := kcp.Listen(addr)
	if err != nil {
		return nil, nil, err
	}

	server := network.NewServer(config, callback, protocol)
	go server.Start(l, func(conn net.Conn, s *network.Server) *network.Conn {
		kcpConn := conn.(*kcp.UDPSession)
		kcpConn.SetNoDelay(1, 10, 2, 1)
		kcpConn.SetStreamMode(true)
		kcpConn.SetWindowSize(4096, 4096)
		kcpConn.SetACKNoDelay(true)

		return network.NewConn(conn, s)
	})

	return server, l.Addr(), nil
}
