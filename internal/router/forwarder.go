package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/qchat-dispatch/internal/channel"
)

// Transport delivers serialized messages to the webview.
type Transport interface {
	Send(ctx context.Context, data []byte) error
}

// Forwarder carries app messages to the webview. Apps publish without
// waiting; a delivery goroutine sends each message in order and reports the
// outcome to a supervisor goroutine that logs failures. Nothing is retried.
//
// Messages published before SetUIReady are held and flushed once the
// webview reports it is ready.
type Forwarder struct {
	cfg       ForwarderConfig
	transport Transport
	logger    *slog.Logger

	queue *channel.Queue[any]

	readyOnce sync.Once
	ready     chan struct{}
	uiReady   atomic.Bool

	stopping chan struct{}
	stopOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	delivered atomic.Int64
	failed    atomic.Int64
}

// deliveryResult is what the delivery goroutine hands the supervisor.
type deliveryResult struct {
	command string
	size    int
	elapsed time.Duration
	err     error
}

// NewForwarder creates a Forwarder.
func NewForwarder(cfg ForwarderConfig, transport Transport, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultForwarderConfig()
	if cfg.QueueSize < 1 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = defaults.DeliveryTimeout
	}

	return &Forwarder{
		cfg:       cfg,
		transport: transport,
		logger:    logger,
		queue:     channel.NewQueue[any](cfg.QueueSize),
		ready:     make(chan struct{}),
		stopping:  make(chan struct{}),
	}
}

// Publish queues msg for the webview and returns immediately. It returns
// false once the forwarder is stopping.
func (f *Forwarder) Publish(msg any) bool {
	return f.queue.Push(msg)
}

// SetUIReady releases held messages. Safe to call more than once.
func (f *Forwarder) SetUIReady() {
	f.readyOnce.Do(func() {
		f.uiReady.Store(true)
		close(f.ready)
		f.logger.Info("webview ready, releasing outbound messages", "pending", f.queue.Len())
	})
}

// Start launches the delivery and supervisor goroutines. Delivery runs until
// Stop; cancelling ctx does not discard queued messages.
func (f *Forwarder) Start(ctx context.Context) error {
	f.ctx, f.cancel = context.WithCancel(context.WithoutCancel(ctx))

	results := make(chan deliveryResult, f.cfg.QueueSize)
	g, gctx := errgroup.WithContext(f.ctx)
	g.Go(func() error {
		defer close(results)
		return f.deliverLoop(gctx, results)
	})
	g.Go(func() error {
		f.supervise(results)
		return nil
	})
	f.group = g

	f.logger.Info("outbound forwarder started",
		"delivery_timeout", f.cfg.DeliveryTimeout,
	)
	return nil
}

// Stop stops accepting messages, delivers what is already queued if the
// webview is ready, and waits for the goroutines until ctx expires.
func (f *Forwarder) Stop(ctx context.Context) error {
	f.logger.Info("stopping outbound forwarder")

	f.queue.Close()
	f.stopOnce.Do(func() { close(f.stopping) })

	if f.group == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- f.group.Wait()
	}()

	select {
	case err := <-done:
		f.cancel()
		f.logger.Info("outbound forwarder stopped",
			"delivered", f.delivered.Load(),
			"failed", f.failed.Load(),
		)
		return err
	case <-ctx.Done():
		f.cancel()
		f.logger.Warn("outbound forwarder stop timed out", "pending", f.queue.Len())
		return ctx.Err()
	}
}

// Stats returns delivery statistics.
func (f *Forwarder) Stats() ForwarderStats {
	q := f.queue.Stats()
	return ForwarderStats{
		Published: q.TotalPushed,
		Delivered: f.delivered.Load(),
		Failed:    f.failed.Load(),
		UIReady:   f.uiReady.Load(),
		Queue:     q,
	}
}

// deliverLoop waits for the webview, then sends queued messages in order.
func (f *Forwarder) deliverLoop(ctx context.Context, results chan<- deliveryResult) error {
	select {
	case <-f.ready:
	case <-f.stopping:
		if !f.uiReady.Load() {
			f.logger.Debug("forwarder stopping before webview was ready", "held", f.queue.Len())
			return nil
		}
	case <-ctx.Done():
		return nil
	}

	for {
		msg, ok := f.queue.Pop(ctx)
		if !ok {
			return nil
		}
		results <- f.deliver(ctx, msg)
	}
}

// deliver serializes and sends one message.
func (f *Forwarder) deliver(ctx context.Context, msg any) deliveryResult {
	start := time.Now()
	res := deliveryResult{command: commandOf(msg)}

	data, err := json.Marshal(msg)
	if err != nil {
		res.err = fmt.Errorf("marshal outbound message: %w", err)
		return res
	}
	res.size = len(data)

	sendCtx, cancel := context.WithTimeout(ctx, f.cfg.DeliveryTimeout)
	defer cancel()

	if f.transport == nil {
		res.err = fmt.Errorf("no webview transport")
	} else if err := f.transport.Send(sendCtx, data); err != nil {
		res.err = fmt.Errorf("webview send: %w", err)
	}
	res.elapsed = time.Since(start)
	return res
}

// supervise observes every delivery outcome.
func (f *Forwarder) supervise(results <-chan deliveryResult) {
	for res := range results {
		if res.err != nil {
			f.failed.Add(1)
			f.logger.Error("webview postMessage failed",
				"command", res.command,
				"error", res.err,
			)
			continue
		}
		f.delivered.Add(1)
		f.logger.Debug("delivered to webview",
			"command", res.command,
			"bytes", res.size,
			"duration", res.elapsed,
		)
	}
}

// commandOf extracts a command/type tag for logging when msg exposes one.
func commandOf(msg any) string {
	type commander interface{ OutboundCommand() string }
	if c, ok := msg.(commander); ok {
		return c.OutboundCommand()
	}
	if m, ok := msg.(map[string]any); ok {
		if s, ok := m["type"].(string); ok {
			return s
		}
		if s, ok := m["command"].(string); ok {
			return s
		}
	}
	return fmt.Sprintf("%T", msg)
}
