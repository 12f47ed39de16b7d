package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultListenAddr        = "127.0.0.1:7420"
	DefaultWSPath            = "/ws"
	DefaultShutdownGrace     = 10 * time.Second
	DefaultPingInterval      = 15 * time.Second
	DefaultPingTimeout       = 60 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultMaxMessageSize    = 1 << 20
	DefaultInboundBufferSize = 1024
	DefaultRateLimit         = 200
	DefaultRateBurst         = 400
	DefaultChatModuleName    = "amazonqChat"
	DefaultChatTabType       = "cwc"
	DefaultQueueSize         = 256
	DefaultDeliveryTimeout   = 5 * time.Second
	DefaultAuthTimeout       = 10 * time.Second
	DefaultMaxRetries        = 3
	DefaultAuthDebounce      = 500 * time.Millisecond
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 4
	DefaultMinConns          = 1
	DefaultSettingsPath      = "qchat-settings.yaml"
	DefaultTelemetrySink     = "log"
	DefaultBatchSize         = 100
	DefaultFlushInterval     = 5 * time.Second
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

func (c *DispatcherConfig) applyDefaults() {
	// Server defaults
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.WSPath == "" {
		c.Server.WSPath = DefaultWSPath
	}
	if c.Server.ShutdownGrace == 0 {
		c.Server.ShutdownGrace = DefaultShutdownGrace
	}

	// Bridge defaults
	if c.Bridge.PingInterval == 0 {
		c.Bridge.PingInterval = DefaultPingInterval
	}
	if c.Bridge.PingTimeout == 0 {
		c.Bridge.PingTimeout = DefaultPingTimeout
	}
	if c.Bridge.WriteTimeout == 0 {
		c.Bridge.WriteTimeout = DefaultWriteTimeout
	}
	if c.Bridge.MaxMessageSize == 0 {
		c.Bridge.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Bridge.InboundBufferSize == 0 {
		c.Bridge.InboundBufferSize = DefaultInboundBufferSize
	}
	if c.Bridge.RateLimit == nil {
		limit := float64(DefaultRateLimit)
		c.Bridge.RateLimit = &limit
	}
	if c.Bridge.RateBurst == 0 {
		c.Bridge.RateBurst = DefaultRateBurst
	}

	// Router defaults
	if c.Router.ChatModuleName == "" {
		c.Router.ChatModuleName = DefaultChatModuleName
	}
	if c.Router.ChatTabType == "" {
		c.Router.ChatTabType = DefaultChatTabType
	}

	// Forwarder defaults
	if c.Forwarder.QueueSize == 0 {
		c.Forwarder.QueueSize = DefaultQueueSize
	}
	if c.Forwarder.DeliveryTimeout == 0 {
		c.Forwarder.DeliveryTimeout = DefaultDeliveryTimeout
	}

	// Auth defaults
	if c.Auth.Timeout == 0 {
		c.Auth.Timeout = DefaultAuthTimeout
	}
	if c.Auth.MaxRetries == 0 {
		c.Auth.MaxRetries = DefaultMaxRetries
	}
	if c.Auth.Debounce == 0 {
		c.Auth.Debounce = DefaultAuthDebounce
	}

	// Database defaults
	applyDBDefaults(&c.Database.Postgres)

	if c.Settings.Path == "" {
		c.Settings.Path = DefaultSettingsPath
	}

	// Telemetry defaults
	if c.Telemetry.Sink == "" {
		c.Telemetry.Sink = DefaultTelemetrySink
	}
	if c.Telemetry.BatchSize == 0 {
		c.Telemetry.BatchSize = DefaultBatchSize
	}
	if c.Telemetry.FlushInterval == 0 {
		c.Telemetry.FlushInterval = DefaultFlushInterval
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
