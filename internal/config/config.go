package config

import "time"

// DispatcherConfig is the root configuration for the dispatcher host.
type DispatcherConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Router    RouterConfig    `yaml:"router"`
	Forwarder ForwarderConfig `yaml:"forwarder"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Settings  SettingsConfig  `yaml:"settings"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Links     LinksConfig     `yaml:"links"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	ListenAddr     string        `yaml:"listen_addr"`
	WSPath         string        `yaml:"ws_path"`
	AllowedOrigins []string      `yaml:"allowed_origins"` // Empty allows any origin
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`

	// PEM public key the host signs /auth/* hook calls with. Empty leaves the
	// hooks unauthenticated.
	HookPublicKeyPath string `yaml:"hook_public_key_path"`
}

// BridgeConfig holds webview WebSocket settings.
type BridgeConfig struct {
	PingInterval      time.Duration `yaml:"ping_interval"`
	PingTimeout       time.Duration `yaml:"ping_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	MaxMessageSize    int64         `yaml:"max_message_size"`
	InboundBufferSize int           `yaml:"inbound_buffer_size"`
	RateLimit         *float64      `yaml:"rate_limit"` // Frames per second, 0 = unlimited, unset = default
	RateBurst         int           `yaml:"rate_burst"`
}

// RouterConfig holds Event Router settings.
type RouterConfig struct {
	ChatModuleName string `yaml:"chat_module_name"`
	ChatTabType    string `yaml:"chat_tab_type"`
}

// ForwarderConfig holds app→webview delivery settings.
type ForwarderConfig struct {
	QueueSize       int           `yaml:"queue_size"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
}

// AuthConfig holds auth-state source settings.
type AuthConfig struct {
	StateURL       string        `yaml:"state_url"` // Empty = always connected
	APIKey         string        `yaml:"api_key"`
	PrivateKeyPath string        `yaml:"private_key_path"` // Path to RSA private key PEM file
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	Debounce       time.Duration `yaml:"debounce"`
	PollInterval   time.Duration `yaml:"poll_interval"` // 0 disables polling for auth changes
}

// DatabaseConfig holds the Postgres connection for global state and telemetry.
type DatabaseConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// SettingsConfig locates the prompt settings file.
type SettingsConfig struct {
	Path string `yaml:"path"`
}

// TelemetryConfig selects where telemetry events go.
type TelemetryConfig struct {
	Sink          string        `yaml:"sink"` // "log" or "postgres"
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// LinksConfig holds the external link opener settings.
type LinksConfig struct {
	OpenCommand string `yaml:"open_command"` // Empty = platform default
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
