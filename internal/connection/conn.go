package connection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Conn is one accepted webview WebSocket connection.
type Conn struct {
	id     string
	cfg    ConnConfig
	logger *slog.Logger

	ws      *websocket.Conn
	limiter *rate.Limiter

	// Frames are pushed here; shared with the server.
	inbound chan<- RawMessage
	onClose func(*Conn, error)

	done      chan struct{}
	closeOnce sync.Once

	// Write serialization
	writeMu sync.Mutex

	mu         sync.RWMutex
	lastPongAt time.Time
	closed     bool
	dropped    int64
}

func newConn(id string, ws *websocket.Conn, cfg ConnConfig, inbound chan<- RawMessage, onClose func(*Conn, error), logger *slog.Logger) *Conn {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}

	return &Conn{
		id:         id,
		cfg:        cfg,
		logger:     logger.With("conn_id", id),
		ws:         ws,
		limiter:    rate.NewLimiter(limit, burst),
		inbound:    inbound,
		onClose:    onClose,
		done:       make(chan struct{}),
		lastPongAt: time.Now(),
	}
}

// ID returns the connection ID.
func (c *Conn) ID() string {
	return c.id
}

// start installs handlers and launches the read and heartbeat loops.
func (c *Conn) start() {
	if c.cfg.MaxMessageSize > 0 {
		c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	}

	c.ws.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.lastPongAt = time.Now()
		c.mu.Unlock()
		return nil
	})

	go c.readLoop()
	go c.heartbeatLoop()
}

// Send writes one text frame. The write deadline is the earlier of ctx's
// deadline and the configured write timeout.
func (c *Conn) Send(ctx context.Context, data []byte) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrAlreadyClosed
	}
	c.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(deadline)
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close sends a normal close frame and tears the connection down.
func (c *Conn) Close() error {
	return c.closeWith(nil)
}

// Dropped returns how many inbound frames were discarded (rate limit or a
// full router buffer).
func (c *Conn) Dropped() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dropped
}

func (c *Conn) closeWith(reason error) error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		close(c.done)

		code, text := websocket.CloseNormalClosure, ""
		if reason != nil {
			code, text = websocket.CloseGoingAway, reason.Error()
		}
		c.writeMu.Lock()
		c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, text),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()

		err = c.ws.Close()

		if c.onClose != nil {
			c.onClose(c, reason)
		}
	})
	return err
}

// readLoop forwards frames to the inbound channel until the socket fails or
// the connection is closed.
func (c *Conn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			select {
			case <-c.done:
				// Closed locally.
			default:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.closeWith(nil)
				} else {
					c.closeWith(err)
				}
			}
			return
		}

		if !c.limiter.Allow() {
			c.drop("inbound rate limit exceeded, dropping frame")
			continue
		}

		msg := RawMessage{
			Data:       data,
			ConnID:     c.id,
			ReceivedAt: receivedAt,
		}

		select {
		case c.inbound <- msg:
		case <-c.done:
			return
		default:
			c.drop("router buffer full, dropping frame")
		}
	}
}

func (c *Conn) drop(reason string) {
	c.mu.Lock()
	c.dropped++
	n := c.dropped
	c.mu.Unlock()
	c.logger.Warn(reason, "dropped_total", n)
}

// heartbeatLoop pings the webview and closes the connection when pongs stop.
func (c *Conn) heartbeatLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, []byte("keepalive"), time.Now().Add(c.cfg.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}

			c.mu.RLock()
			lastPong := c.lastPongAt
			c.mu.RUnlock()

			if time.Since(lastPong) > c.cfg.PingTimeout {
				c.logger.Warn("no pong received, connection stale",
					"last_pong", lastPong,
					"timeout", c.cfg.PingTimeout,
				)
				c.closeWith(ErrStaleConnection)
				return
			}
		}
	}
}
