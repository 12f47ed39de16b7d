package connection

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ServerStats describes the bridge.
type ServerStats struct {
	Connected   bool   `json:"connected"`
	ConnID      string `json:"conn_id,omitempty"`
	Accepted    int64  `json:"accepted"`
	Rejected    int64  `json:"rejected"`
	Dropped     int64  `json:"dropped"`
	InboundUsed int    `json:"inbound_used"`
}

// Server accepts the webview's WebSocket and bridges it to the router. One
// webview is active at a time; a new connection replaces the previous one.
// Server implements router.Transport.
type Server struct {
	cfg      ServerConfig
	logger   *slog.Logger
	upgrader websocket.Upgrader

	inbound chan RawMessage

	mu       sync.RWMutex
	active   *Conn
	onOpen   func(connID string, at time.Time)
	closed   bool
	accepted int64
	rejected int64
	dropped  int64 // from connections that have gone away
}

// NewServer creates a webview bridge.
func NewServer(cfg ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultServerConfig()
	if cfg.InboundBufferSize < 1 {
		cfg.InboundBufferSize = defaults.InboundBufferSize
	}
	if cfg.Conn.PingInterval <= 0 {
		cfg.Conn.PingInterval = defaults.Conn.PingInterval
	}
	if cfg.Conn.PingTimeout <= 0 {
		cfg.Conn.PingTimeout = defaults.Conn.PingTimeout
	}
	if cfg.Conn.WriteTimeout <= 0 {
		cfg.Conn.WriteTimeout = defaults.Conn.WriteTimeout
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		inbound: make(chan RawMessage, cfg.InboundBufferSize),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// OnOpen registers fn to run each time a webview connects.
func (s *Server) OnOpen(fn func(connID string, at time.Time)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onOpen = fn
}

// Messages returns the channel of frames for the router.
func (s *Server) Messages() <-chan RawMessage {
	return s.inbound
}

// ServeHTTP upgrades the request and makes it the active webview.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		http.Error(w, "bridge closed", http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.mu.Lock()
		s.rejected++
		s.mu.Unlock()
		s.logger.Warn("webview upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	openedAt := time.Now()
	conn := newConn(uuid.NewString(), ws, s.cfg.Conn, s.inbound, s.connClosed, s.logger)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	prev := s.active
	s.active = conn
	s.accepted++
	onOpen := s.onOpen
	s.mu.Unlock()

	if prev != nil {
		s.logger.Info("replacing webview connection", "old_conn_id", prev.ID(), "new_conn_id", conn.ID())
		prev.closeWith(ErrSuperseded)
	}

	conn.start()
	s.logger.Info("webview connected", "conn_id", conn.ID(), "remote", r.RemoteAddr)

	if onOpen != nil {
		onOpen(conn.ID(), openedAt)
	}
}

// Send delivers data to the active webview.
func (s *Server) Send(ctx context.Context, data []byte) error {
	s.mu.RLock()
	conn := s.active
	s.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}
	return conn.Send(ctx, data)
}

// Connected reports whether a webview is attached.
func (s *Server) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active != nil
}

// Close disconnects the webview and refuses new connections. The inbound
// channel is left open; the router stops on its own context.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.active
	s.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Stats returns bridge statistics.
func (s *Server) Stats() ServerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := ServerStats{
		Accepted:    s.accepted,
		Rejected:    s.rejected,
		Dropped:     s.dropped,
		InboundUsed: len(s.inbound),
	}
	if s.active != nil {
		st.Connected = true
		st.ConnID = s.active.ID()
		st.Dropped += s.active.Dropped()
	}
	return st
}

// connClosed clears the active slot if conn still holds it.
func (s *Server) connClosed(conn *Conn, reason error) {
	s.mu.Lock()
	s.dropped += conn.Dropped()
	if s.active == conn {
		s.active = nil
	}
	s.mu.Unlock()

	if reason != nil {
		s.logger.Warn("webview disconnected", "conn_id", conn.ID(), "reason", reason)
		return
	}
	s.logger.Info("webview disconnected", "conn_id", conn.ID())
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" {
			return true
		}
		if strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, u.Host) {
			return true
		}
	}
	s.logger.Warn("rejected webview origin", "origin", origin)
	return false
}
