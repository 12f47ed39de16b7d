package featuredev

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/qchat-dispatch/internal/api"
	"github.com/rickgao/qchat-dispatch/internal/debounce"
)

// AuthStateSource reports the current chat auth state. *api.Client
// satisfies it.
type AuthStateSource interface {
	GetChatAuthState(ctx context.Context) (api.AuthState, error)
}

// AuthWatcherConfig configures an AuthWatcher.
type AuthWatcherConfig struct {
	Debounce     time.Duration // Quiet window before refreshing. Default: 500ms
	FetchTimeout time.Duration // Deadline for one auth-state fetch. Default: 10s
}

// AuthWatcher turns bursts of auth change signals into one authentication
// update for the webview.
type AuthWatcher struct {
	cfg       AuthWatcherConfig
	source    AuthStateSource
	sessions  *SessionStorage
	messenger *Messenger
	logger    *slog.Logger
	debouncer *debounce.Debouncer

	mu   sync.Mutex
	last api.AuthState
	seen bool
}

// NewAuthWatcher creates an AuthWatcher.
func NewAuthWatcher(cfg AuthWatcherConfig, source AuthStateSource, sessions *SessionStorage, messenger *Messenger, logger *slog.Logger) *AuthWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = debounce.DefaultWindow
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}

	w := &AuthWatcher{
		cfg:       cfg,
		source:    source,
		sessions:  sessions,
		messenger: messenger,
		logger:    logger,
	}
	w.debouncer = debounce.New(cfg.Debounce, w.refresh)
	return w
}

// OnConnectionChanged signals that the active auth connection changed.
func (w *AuthWatcher) OnConnectionChanged() {
	w.debouncer.Trigger()
}

// OnRegionProfileChanged signals that the region profile changed.
func (w *AuthWatcher) OnRegionProfileChanged() {
	w.debouncer.Trigger()
}

// Refreshes returns how many debounced refreshes have run.
func (w *AuthWatcher) Refreshes() int64 {
	return w.debouncer.Fired()
}

// Stop cancels any pending refresh.
func (w *AuthWatcher) Stop() {
	w.debouncer.Stop()
}

// Watch polls the auth-state source and signals a connection change
// whenever the state differs from the last one seen. It returns when ctx is
// done.
func (w *AuthWatcher) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state, err := w.fetch(ctx)
			if err != nil {
				w.logger.Debug("auth state poll failed", "error", err)
				continue
			}
			if w.observe(state) {
				w.OnConnectionChanged()
			}
		}
	}
}

// refresh runs after the debounce window: fetch auth state, release tabs
// that were waiting on sign-in, and tell the webview.
func (w *AuthWatcher) refresh() {
	state, err := w.fetch(context.Background())
	if err != nil {
		w.logger.Warn("failed to fetch chat auth state", "error", err)
		return
	}
	w.observe(state)

	authenticated := state.ChatConnected()
	ids := []string{}
	if authenticated {
		ids = w.sessions.CompleteAuthentication()
	}

	w.logger.Info("sending feature-dev authentication update",
		"enabled", authenticated,
		"authenticated_tabs", len(ids),
	)
	w.messenger.SendAuthenticationUpdate(authenticated, ids)
}

func (w *AuthWatcher) fetch(ctx context.Context) (api.AuthState, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
	defer cancel()
	return w.source.GetChatAuthState(ctx)
}

// observe records state and reports whether it changed. The first
// observation is not a change.
func (w *AuthWatcher) observe(state api.AuthState) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	changed := w.seen && state != w.last
	w.last = state
	w.seen = true
	return changed
}

// StaticAuthState is an AuthStateSource that always reports the same state.
type StaticAuthState api.AuthState

// GetChatAuthState returns s.
func (s StaticAuthState) GetChatAuthState(ctx context.Context) (api.AuthState, error) {
	return api.AuthState(s), nil
}
