package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("webview not connected")
	ErrStaleConnection = errors.New("connection stale (no pong)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrSuperseded      = errors.New("superseded by a newer webview connection")
)

// RawMessage is a frame from the webview on its way to the Event Router.
type RawMessage struct {
	Data       []byte    // Raw message bytes from the WebSocket
	ConnID     string    // Which webview connection this came from
	ReceivedAt time.Time // Local timestamp when the frame was read
}

// ConnConfig configures a single webview connection.
type ConnConfig struct {
	PingInterval   time.Duration // How often we ping the webview
	PingTimeout    time.Duration // Max time without a pong before the connection is stale
	WriteTimeout   time.Duration // Write deadline for sends
	MaxMessageSize int64         // Largest frame accepted from the webview
	RateLimit      float64       // Inbound frames per second (0 = unlimited)
	RateBurst      int           // Inbound burst allowance
}

// DefaultConnConfig returns sensible defaults.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		PingInterval:   15 * time.Second,
		PingTimeout:    60 * time.Second,
		WriteTimeout:   5 * time.Second,
		MaxMessageSize: 1 << 20,
		RateLimit:      200,
		RateBurst:      400,
	}
}

// ServerConfig configures the webview bridge.
type ServerConfig struct {
	Conn              ConnConfig
	AllowedOrigins    []string // Empty or ["*"] allows any origin
	InboundBufferSize int      // Buffer between read loops and the router
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Conn:              DefaultConnConfig(),
		InboundBufferSize: 1024,
	}
}
