// Package server implements the netcat-friendly line protocol on top
// of a store.IStore. One line in, one response out:
//
//	SET <key> <value>   -> OK
//	GET <key>           -> <value> | (nil)
//	DEL <key>           -> 1 | 0
//	SCAN [<prefix>]     -> one key per line, then OK
//	SNAPSHOT            -> OK snapshot-NNNN
//
// Keys and values are whitespace-delimited tokens: the protocol is
// text-oriented and cannot transport bytes containing whitespace or
// newlines. This is a limitation of the network front-end, not of the
// store underneath.
//
// Concurrency: each connection runs in its own goroutine. The handlers
// never touch storage directly, they only call the store handle; with
// an astore.Store behind it, every operation is serialized through the
// actor mailbox. A client that disconnects before reading its reply
// loses only the reply, the operation has already committed.
package server

import (
	"bufio"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/ValentinKolb/kvs/lib/logger"
	"github.com/ValentinKolb/kvs/lib/store"
)

var Logger = logger.GetLogger("server")

var connectionsTotal = metrics.NewCounter("kvs_connections_total")

// Server accepts TCP connections and speaks the line protocol against
// the given store
type Server struct {
	config   Config
	store    store.IStore
	listener net.Listener

	// connection registry for shutdown
	conns   *xsync.MapOf[uint64, net.Conn]
	connSeq atomic.Uint64
	active  *xsync.Counter
	closed  atomic.Bool
}

// New creates a new line-protocol server for the given store
func New(config Config, st store.IStore) *Server {
	s := &Server{
		config: config,
		store:  st,
		conns:  xsync.NewMapOf[uint64, net.Conn](),
		active: xsync.NewCounter(),
	}

	// the gauge reads the counter lazily at scrape time
	metrics.GetOrCreateGauge("kvs_connections_active", func() float64 {
		return float64(s.active.Value())
	})

	return s
}

// Listen binds the configured endpoint. It is split from Serve so
// callers (and tests) can learn the bound address before serving.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.config.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to create TCP socket: %v", err)
	}
	s.listener = listener
	return nil
}

// Addr returns the bound address. Only valid after Listen.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until the listener is closed. Each
// connection is handled in its own goroutine.
func (s *Server) Serve() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	Logger.Infof("Listening on %s (%s)", s.listener.Addr(), s.config)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			continue
		}

		if err := s.upgradeConnection(conn); err != nil {
			Logger.Warningf("Failed to tune connection: %v", err)
		}

		go s.handleConnection(conn)
	}
}

// Close stops accepting connections and closes all active ones. The
// store is not closed; it belongs to the caller.
func (s *Server) Close() error {
	s.closed.Store(true)

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}

	s.conns.Range(func(id uint64, conn net.Conn) bool {
		conn.Close()
		return true
	})
	return err
}

// ActiveConnections returns the number of currently connected clients
func (s *Server) ActiveConnections() int64 {
	return s.active.Value()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// upgradeConnection applies the configured socket options to a TCP
// connection
func (s *Server) upgradeConnection(conn net.Conn) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil // not a TCP connection, nothing to tune
	}

	if err := tcpConn.SetNoDelay(s.config.TCPNoDelay); err != nil {
		return err
	}

	if s.config.WriteBufferSize > 0 {
		if err := tcpConn.SetWriteBuffer(s.config.WriteBufferSize); err != nil {
			return err
		}
	}

	if s.config.ReadBufferSize > 0 {
		if err := tcpConn.SetReadBuffer(s.config.ReadBufferSize); err != nil {
			return err
		}
	}

	if s.config.TCPKeepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}
		if err := tcpConn.SetKeepAlivePeriod(time.Duration(s.config.TCPKeepAliveSec) * time.Second); err != nil {
			return err
		}
	}

	if s.config.TCPLingerSec >= 0 {
		if err := tcpConn.SetLinger(s.config.TCPLingerSec); err != nil {
			return err
		}
	}

	return nil
}

// handleConnection serves one client: read a line, execute it, write
// the response, repeat until the client hangs up
func (s *Server) handleConnection(conn net.Conn) {
	id := s.connSeq.Add(1)
	s.conns.Store(id, conn)
	s.active.Inc()
	connectionsTotal.Inc()

	defer func() {
		conn.Close()
		s.conns.Delete(id)
		s.active.Dec()
		Logger.Debugf("Connection %d from %s closed", id, conn.RemoteAddr())
	}()

	Logger.Debugf("Connection %d from %s", id, conn.RemoteAddr())

	timeout := time.Duration(s.config.TimeoutSecond) * time.Second
	reader := bufio.NewReader(conn)

	for {
		if timeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
				Logger.Errorf("Failed to set read deadline: %v", err)
				return
			}
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			// EOF and timeouts both end the session; the store state
			// is unaffected either way
			return
		}

		resp := s.execute(line)

		if timeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				Logger.Errorf("Failed to set write deadline: %v", err)
				return
			}
		}

		if _, err := conn.Write(resp); err != nil {
			Logger.Warningf("Failed to write response on connection %d: %v", id, err)
			return
		}
	}
}
