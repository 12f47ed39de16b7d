package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *DispatcherConfig) Validate() error {
	if c.Server.ListenAddr == "" {
		return errors.New("server.listen_addr is required")
	}
	if !strings.HasPrefix(c.Server.WSPath, "/") {
		return fmt.Errorf("server.ws_path must start with /, got %q", c.Server.WSPath)
	}

	if c.Bridge.PingInterval <= 0 {
		return errors.New("bridge.ping_interval must be > 0")
	}
	if c.Bridge.PingTimeout < c.Bridge.PingInterval {
		return fmt.Errorf("bridge.ping_timeout (%s) must be >= ping_interval (%s)", c.Bridge.PingTimeout, c.Bridge.PingInterval)
	}
	if c.Bridge.InboundBufferSize < 1 {
		return errors.New("bridge.inbound_buffer_size must be >= 1")
	}
	if c.Bridge.RateLimit != nil && *c.Bridge.RateLimit < 0 {
		return errors.New("bridge.rate_limit must be >= 0")
	}

	if c.Router.ChatTabType == "" {
		return errors.New("router.chat_tab_type is required")
	}

	if c.Forwarder.QueueSize < 1 {
		return errors.New("forwarder.queue_size must be >= 1")
	}
	if c.Forwarder.DeliveryTimeout <= 0 {
		return errors.New("forwarder.delivery_timeout must be > 0")
	}

	if c.Auth.Debounce <= 0 {
		return errors.New("auth.debounce must be > 0")
	}
	if c.Auth.PrivateKeyPath != "" && c.Auth.APIKey == "" {
		return errors.New("auth.api_key is required when auth.private_key_path is set")
	}

	if c.Database.Enabled {
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	}

	switch c.Telemetry.Sink {
	case "log":
	case "postgres":
		if !c.Database.Enabled {
			return errors.New("telemetry.sink postgres requires database.enabled")
		}
	default:
		return fmt.Errorf("telemetry.sink must be log or postgres, got %q", c.Telemetry.Sink)
	}
	if c.Telemetry.BatchSize < 1 {
		return errors.New("telemetry.batch_size must be >= 1")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
