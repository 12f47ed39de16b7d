package api

import (
	"log/slog"
	"net/http"
	"time"
)

// Signer produces authentication headers for a request. *auth.Credentials
// satisfies it.
type Signer interface {
	SignRequest(method, path string) (map[string]string, error)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL      string
	Timeout      time.Duration // Per-attempt HTTP timeout. Default: 10s
	MaxRetries   int           // Retries after the first attempt; 0 disables
	RetryBackoff time.Duration // First retry delay, doubled each time. Default: 250ms
}

// DefaultClientConfig returns the settings used by the dispatcher when the
// config file leaves them out.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:      baseURL,
		Timeout:      10 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 250 * time.Millisecond,
	}
}

// Client fetches chat auth state from the auth-state service. Requests are
// signed when a Signer is set.
type Client struct {
	cfg        ClientConfig
	signer     Signer
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client. signer may be nil for services that accept
// unsigned requests.
func NewClient(cfg ClientConfig, signer Signer, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultClientConfig(cfg.BaseURL)
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaults.RetryBackoff
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &Client{
		cfg:        cfg,
		signer:     signer,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With("component", "auth-state-client"),
	}
}
