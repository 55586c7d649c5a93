// Package broadcast pushes live messages to websocket clients as JSON.
//
// The server is fire-and-forget: a slow client misses messages rather than
// holding up the comment listener, and a server that fails to start only
// disables broadcasting.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/entrhq/livecontrol/pkg/logging"
	"golang.org/x/net/websocket"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

// ErrServerClosed is returned by Start after Stop.
var ErrServerClosed = errors.New("broadcast server closed")

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server fans out messages to every connected websocket client.
type Server struct {
	log *logging.Logger

	mu      sync.RWMutex
	clients map[uint64]*client
	nextID  uint64
	closed  bool
	httpSrv *http.Server
	addr    string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// NewServer creates a server that is not yet listening.
func NewServer(opts ...Option) *Server {
	s := &Server{clients: make(map[uint64]*client)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the websocket endpoint, for mounting on an existing mux.
func (s *Server) Handler() http.Handler {
	return websocket.Handler(s.serve)
}

// Start listens on addr and serves the websocket endpoint at "/".
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrServerClosed
	}
	if s.httpSrv != nil {
		return fmt.Errorf("broadcast server already listening on %s", s.addr)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())
	s.httpSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	s.addr = ln.Addr().String()

	srv := s.httpSrv
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("broadcast server stopped: %v", err)
		}
	}()
	s.log.Infof("broadcasting comments on ws://%s/", s.addr)
	return nil
}

// Addr returns the listening address, empty before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast sends v as JSON to every client. Clients whose queue is full skip it.
func (s *Server) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Warnf("broadcast: marshal message: %v", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, c := range s.clients {
		select {
		case c.send <- data:
		default:
			s.log.Debugf("broadcast: client %d is slow, dropping message", id)
		}
	}
}

// Stop closes the listener and every client connection. It is idempotent.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	srv := s.httpSrv
	for _, c := range s.clients {
		_ = c.conn.Close()
	}
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

func (s *Server) serve(ws *websocket.Conn) {
	c := &client{conn: ws, send: make(chan []byte, sendBuffer)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	id := s.nextID
	s.nextID++
	s.clients[id] = c
	s.mu.Unlock()

	s.log.Debugf("broadcast: client %d connected from %s", id, ws.Request().RemoteAddr)

	go c.writeLoop()

	// Clients only listen; reading detects the close.
	var discard []byte
	for websocket.Message.Receive(ws, &discard) == nil {
	}

	s.mu.Lock()
	if _, ok := s.clients[id]; ok {
		delete(s.clients, id)
		close(c.send)
	}
	s.mu.Unlock()
	s.log.Debugf("broadcast: client %d disconnected", id)
}

func (c *client) writeLoop() {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := websocket.Message.Send(c.conn, string(data)); err != nil {
			_ = c.conn.Close()
			// drain until serve notices the close
			for range c.send {
			}
			return
		}
	}
}
