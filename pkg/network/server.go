package network

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/alecthomas/log4go"
)

type Config struct {
	PacketSendChanLimit    uint32        // the limit of packet send channel
	PacketReceiveChanLimit uint32        // the limit of packet receive channel
	ConnReadTimeout        time.Duration // zero means no idle deadline
	ConnWriteTimeout       time.Duration
}

type Server struct {
	config    *Config         // server configuration
	callback  ConnCallback    // message callbacks in connection
	protocol  Protocol        // customize packet protocol
	exitChan  chan struct{}   // notify all goroutines to shut down
	waitGroup *sync.WaitGroup // wait for all goroutines
	closeOnce sync.Once
	listener  net.Listener
	connsMu   sync.Mutex
	conns     map[*Conn]struct{}
}

// NewServer creates a new server
func NewServer(config *Config, callback ConnCallback, protocol Protocol) *Server {
	return &Server{
		config:    config,
		callback:  callback,
		protocol:  protocol,
		exitChan:  make(chan struct{}),
		waitGroup: &sync.WaitGroup{},
		conns:     make(map[*Conn]struct{}),
	}
}

func (s *Server) trackConn(c *Conn) {
	s.connsMu.Lock()
	s.conns[c] = struct{}{}
	s.connsMu.Unlock()
}

func (s *Server) untrackConn(c *Conn) {
	s.connsMu.Lock()
	delete(s.conns, c)
	s.connsMu.Unlock()
}

// ConnectionCreator is a creator to create connection
type ConnectionCreator func(net.Conn, *Server) *Conn

// Start runs the accept loop until Stop is called. Accept errors during
// shutdown are expected and suppressed; any other accept error is logged
// and the loop keeps accepting.
func (s *Server) Start(listener net.Listener, creator ConnectionCreator) {
	s.listener = listener
	s.waitGroup.Add(1)
	defer s.waitGroup.Done()

	for {
		select {
		case <-s.exitChan:
			return
		default:
		}

		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.exitChan:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log4go.Error("[network] accept error: %v", err)
			continue
		}

		s.waitGroup.Add(1)
		go func() {
			c := creator(conn, s)
			s.trackConn(c)
			c.Do()
			s.waitGroup.Done()
		}()
	}
}

// Stop closes the listener and every open connection, then waits for all
// connection goroutines to observe the shutdown.
func (s *Server) Stop() {
	s.closeOnce.Do(func() {
		close(s.exitChan)
		_ = s.listener.Close()

		s.connsMu.Lock()
		open := make([]*Conn, 0, len(s.conns))
		for c := range s.conns {
			open = append(open, c)
		}
		s.connsMu.Unlock()
		for _, c := range open {
			c.Close()
		}
	})
	s.waitGroup.Wait()
}
