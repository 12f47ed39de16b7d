package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/qchat-dispatch/internal/connection"
	"github.com/rickgao/qchat-dispatch/internal/settings"
	"github.com/rickgao/qchat-dispatch/internal/state"
	"github.com/rickgao/qchat-dispatch/internal/telemetry"
)

// Router classifies webview messages and either handles them directly or
// forwards them to the app registered for their tab type.
type Router interface {
	// Start begins routing messages from the input channel.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the router.
	Stop(ctx context.Context) error

	// Route classifies and handles a single message. It never panics and
	// never returns an error; failures are logged and counted.
	Route(raw connection.RawMessage)

	// MarkOpen records when the webview was opened, for ui-is-ready timing.
	MarkOpen(at time.Time)

	// Stats returns current router statistics.
	Stats() RouterStats
}

// SettingsStore persists boolean prompt settings.
type SettingsStore interface {
	Update(key string, value bool) error
}

// LinkOpener opens a URL on the host.
type LinkOpener interface {
	Open(ctx context.Context, link string) error
}

// ChatTimer tracks chat message timing traces.
type ChatTimer interface {
	Start(traceID, tabID, trigger string, start time.Time)
	Update(traceID, metric string, at time.Time) error
	Stop(ctx context.Context, traceID string, at time.Time) error
}

// UIReadiness is told when the webview reports it is ready.
type UIReadiness interface {
	SetUIReady()
}

// Handlers are the host services the built-in commands act on.
type Handlers struct {
	Telemetry telemetry.Emitter
	Settings  SettingsStore
	State     state.Store
	Links     LinkOpener
	ChatTimer ChatTimer
	UI        UIReadiness
}

// errNoHandler is reported when a built-in command arrives but the host
// service it needs was not configured.
var errNoHandler = errors.New("no handler configured")

// router is the internal implementation.
type router struct {
	cfg      RouterConfig
	handlers Handlers
	table    *Table
	logger   *slog.Logger
	now      func() time.Time

	// Input from the webview bridge
	input <-chan connection.RawMessage

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Performance mark set when the webview opens, cleared on ui-is-ready
	markMu sync.Mutex
	openAt time.Time

	received      atomic.Int64
	dispatched    atomic.Int64
	forwarded     atomic.Int64
	dropped       atomic.Int64
	parseErrors   atomic.Int64
	handlerErrors atomic.Int64
}

// NewRouter creates a new Event Router. table must already be built; the
// router never modifies it.
func NewRouter(cfg RouterConfig, input <-chan connection.RawMessage, table *Table, handlers Handlers, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultRouterConfig()
	if cfg.ChatModuleName == "" {
		cfg.ChatModuleName = defaults.ChatModuleName
	}
	if cfg.ChatTabType == "" {
		cfg.ChatTabType = defaults.ChatTabType
	}

	return &router{
		cfg:      cfg,
		handlers: handlers,
		table:    table,
		logger:   logger,
		now:      time.Now,
		input:    input,
		ctx:      context.Background(),
	}
}

// Start begins routing messages.
func (r *router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("event router started",
		"routes", r.table.Keys(),
		"chat_tab_type", r.cfg.ChatTabType,
	)

	return nil
}

// Stop gracefully shuts down the router.
func (r *router) Stop(ctx context.Context) error {
	r.logger.Info("stopping event router")

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("event router stopped")
	case <-ctx.Done():
		r.logger.Warn("event router stop timed out")
	}

	return nil
}

// MarkOpen records the webview open time.
func (r *router) MarkOpen(at time.Time) {
	r.markMu.Lock()
	defer r.markMu.Unlock()
	r.openAt = at
}

// Stats returns current statistics.
func (r *router) Stats() RouterStats {
	return RouterStats{
		MessagesReceived: r.received.Load(),
		Dispatched:       r.dispatched.Load(),
		Forwarded:        r.forwarded.Load(),
		Dropped:          r.dropped.Load(),
		ParseErrors:      r.parseErrors.Load(),
		HandlerErrors:    r.handlerErrors.Load(),
	}
}

// routeLoop is the single routing goroutine, so messages are handled one at
// a time in arrival order.
func (r *router) routeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case raw, ok := <-r.input:
			if !ok {
				r.logger.Info("input channel closed")
				return
			}
			r.Route(raw)
		}
	}
}

// Route parses and routes a single message.
func (r *router) Route(raw connection.RawMessage) {
	r.received.Add(1)

	defer func() {
		if p := recover(); p != nil {
			r.reportFailure("panic", fmt.Errorf("recovered: %v", p), "conn_id", raw.ConnID)
		}
	}()

	msg, err := Parse(raw.Data, raw.ReceivedAt)
	if err != nil {
		r.logger.Warn("failed to parse webview message", "conn_id", raw.ConnID, "error", err)
		r.parseErrors.Add(1)
		return
	}

	if app, ok := msg.(ForAppMessage); ok {
		r.forward(app.AppMessage)
		return
	}

	r.dispatched.Add(1)
	if err := r.dispatch(msg, raw); err != nil {
		r.reportFailure(fmt.Sprintf("%T", msg), err, "conn_id", raw.ConnID)
	}
}

// dispatch runs the one built-in handler for msg.
func (r *router) dispatch(msg Message, raw connection.RawMessage) error {
	ctx := r.ctx

	switch m := msg.(type) {
	case UIReady:
		return r.handleUIReady(ctx, m, raw.ReceivedAt)

	case ChatTiming:
		return r.handleChatTiming(ctx, m)

	case OpenLink:
		if r.handlers.Links == nil {
			return errNoHandler
		}
		return r.handlers.Links.Open(ctx, m.Link)

	case OpenAgentTelemetry:
		return r.emit(ctx, telemetry.EventDidLoadModule, telemetry.ResultSucceeded, map[string]any{
			"module": m.Module,
			"source": m.Trigger,
		})

	case ClickTelemetry:
		return r.emit(ctx, telemetry.EventUIClick, telemetry.ResultSucceeded, map[string]any{
			"elementId": m.Source,
		})

	case OtherTelemetry:
		r.logger.Debug("ignoring telemetry of unknown shape", "name", m.Name)
		return nil

	case DisclaimerAcknowledged:
		if r.handlers.Settings == nil {
			return errNoHandler
		}
		return r.handlers.Settings.Update(settings.KeyChatDisclaimer, true)

	case WelcomeCountIncrement:
		if r.handlers.State == nil {
			return errNoHandler
		}
		_, err := state.Increment(ctx, r.handlers.State, state.KeyWelcomeChatShowCount)
		return err

	case WebviewError:
		if m.ModuleLoadFailed() {
			return r.emit(ctx, telemetry.EventDidLoadModule, telemetry.ResultFailed, map[string]any{
				"module":     r.cfg.ChatModuleName,
				"reasonDesc": m.ErrorMessage,
			})
		}
		return r.emit(ctx, telemetry.EventWebviewError, telemetry.ResultFailed, map[string]any{
			"webviewName": r.cfg.ChatModuleName,
			"reasonDesc":  m.ErrorMessage,
		})
	}

	return fmt.Errorf("unhandled message type %T", msg)
}

// handleUIReady marks the outbound path ready, records how long the webview
// took to load and lets the chat app know.
func (r *router) handleUIReady(ctx context.Context, m UIReady, receivedAt time.Time) error {
	if r.handlers.UI != nil {
		r.handlers.UI.SetUIReady()
	}

	r.markMu.Lock()
	openAt := r.openAt
	r.openAt = time.Time{}
	r.markMu.Unlock()

	attrs := map[string]any{"module": r.cfg.ChatModuleName}
	if !openAt.IsZero() {
		attrs["duration"] = r.now().Sub(openAt).Milliseconds()
	}
	err := r.emit(ctx, telemetry.EventDidLoadModule, telemetry.ResultSucceeded, attrs)

	// ui-is-ready carries no tab, so the chat app is addressed by its key.
	if pub, ok := r.table.Lookup(r.cfg.ChatTabType); ok {
		pub.Publish(AppMessage{
			Command:    CommandUIReady,
			TabType:    r.cfg.ChatTabType,
			Raw:        m.Raw,
			ReceivedAt: receivedAt,
		})
	}

	return err
}

func (r *router) handleChatTiming(ctx context.Context, m ChatTiming) error {
	if r.handlers.ChatTimer == nil {
		return errNoHandler
	}

	switch m.Phase {
	case TimingStart:
		r.handlers.ChatTimer.Start(m.TraceID, m.TabID, m.Trigger, m.At)
		return nil
	case TimingUpdate:
		return r.handlers.ChatTimer.Update(m.TraceID, m.Metric, m.At)
	case TimingStop:
		return r.handlers.ChatTimer.Stop(ctx, m.TraceID, m.At)
	}
	return fmt.Errorf("unknown timing phase %d", m.Phase)
}

// forward delivers msg unchanged to the app registered for its tab type.
// Unregistered tab types are dropped without error.
func (r *router) forward(msg AppMessage) {
	pub, ok := r.table.Lookup(msg.TabType)
	if !ok {
		r.logger.Debug("no app registered for tab type, dropping",
			"tab_type", msg.TabType,
			"command", msg.Command,
		)
		r.dropped.Add(1)
		return
	}

	if !pub.Publish(msg) {
		r.logger.Warn("app channel closed, dropping",
			"tab_type", msg.TabType,
			"command", msg.Command,
		)
		r.dropped.Add(1)
		return
	}
	r.forwarded.Add(1)
}

func (r *router) emit(ctx context.Context, name string, result telemetry.Result, attrs map[string]any) error {
	if r.handlers.Telemetry == nil {
		return errNoHandler
	}
	return r.handlers.Telemetry.Emit(ctx, telemetry.NewEvent(name, result, attrs))
}

// reportFailure is the single failure path for handler errors: the router
// runs inside the webview callback and must not propagate them.
func (r *router) reportFailure(handler string, err error, args ...any) {
	r.handlerErrors.Add(1)
	r.logger.Warn("webview message handler failed",
		append([]any{"handler", handler, "error", err}, args...)...,
	)
}
