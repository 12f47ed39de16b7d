package featuredev

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickgao/qchat-dispatch/internal/router"
)

// App is the wired feature-dev chat app.
type App struct {
	Sessions  *SessionStorage
	Messenger *Messenger
	Listener  *UIListener
	Watcher   *AuthWatcher

	inbound *router.AppPublisher
	logger  *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Register creates the feature-dev app and registers its inbound channel
// under TabType. ctrl may be nil, in which case a SessionController is used.
func Register(builder *router.TableBuilder, out Outbound, source AuthStateSource, ctrl Controller, cfg AuthWatcherConfig, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("app", TabType)

	pub, sub := router.NewAppChannel()
	if err := builder.Register(TabType, pub); err != nil {
		return nil, fmt.Errorf("register feature-dev app: %w", err)
	}

	messenger := NewMessenger(out, SenderName)
	sessions := NewSessionStorage()
	if ctrl == nil {
		ctrl = NewSessionController(sessions, messenger, logger)
	}

	return &App{
		Sessions:  sessions,
		Messenger: messenger,
		Listener:  NewUIListener(sub, ctrl, logger),
		Watcher:   NewAuthWatcher(cfg, source, sessions, messenger, logger),
		inbound:   pub,
		logger:    logger,
	}, nil
}

// Start runs the UI listener.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.Listener.Run(ctx)
	}()

	a.logger.Info("feature-dev app started")
	return nil
}

// Stop closes the inbound channel, lets the listener drain it, and cancels
// any pending auth refresh.
func (a *App) Stop(ctx context.Context) error {
	a.Watcher.Stop()
	a.inbound.Close()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("feature-dev app stop timed out")
	}
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}
