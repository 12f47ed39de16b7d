package connection

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ProbeConfig configures a Probe.
type ProbeConfig struct {
	URL          string
	Origin       string
	WriteTimeout time.Duration
	BufferSize   int
}

// Probe plays the webview side of the bridge. It is used by the wsprobe tool
// and by tests.
type Probe struct {
	cfg    ProbeConfig
	logger *slog.Logger

	conn *websocket.Conn

	// Output channels
	messages chan RawMessage
	errors   chan error
	done     chan struct{}

	// Write serialization
	writeMu sync.Mutex

	mu        sync.RWMutex
	connected bool
	closed    bool
}

// NewProbe creates an unconnected probe.
func NewProbe(cfg ProbeConfig, logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 100
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	return &Probe{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan RawMessage, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// Connect dials the bridge.
func (p *Probe) Connect(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrAlreadyClosed
	}
	p.mu.Unlock()

	header := http.Header{}
	if p.cfg.Origin != "" {
		header.Set("Origin", p.cfg.Origin)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, p.cfg.URL, header)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.conn = conn
	p.connected = true
	p.mu.Unlock()

	go p.readLoop()

	p.logger.Debug("probe connected", "url", p.cfg.URL)
	return nil
}

// Send writes one text frame.
func (p *Probe) Send(data []byte) error {
	p.mu.RLock()
	if !p.connected {
		p.mu.RUnlock()
		return ErrNotConnected
	}
	p.mu.RUnlock()

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteTimeout))
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

// Messages returns frames sent by the bridge.
func (p *Probe) Messages() <-chan RawMessage {
	return p.messages
}

// Errors returns read errors.
func (p *Probe) Errors() <-chan error {
	return p.errors
}

// IsConnected reports whether the probe is attached.
func (p *Probe) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

// Close disconnects the probe.
func (p *Probe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.connected = false
	conn := p.conn
	p.mu.Unlock()

	close(p.done)

	if conn == nil {
		return nil
	}
	p.writeMu.Lock()
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	p.writeMu.Unlock()
	return conn.Close()
}

func (p *Probe) readLoop() {
	defer func() {
		p.mu.Lock()
		p.connected = false
		p.mu.Unlock()
	}()

	for {
		_, data, err := p.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			select {
			case <-p.done:
			default:
				select {
				case p.errors <- err:
				default:
				}
			}
			return
		}

		select {
		case p.messages <- RawMessage{Data: data, ReceivedAt: receivedAt}:
		case <-p.done:
			return
		default:
			p.logger.Warn("probe buffer full, dropping message")
		}
	}
}
