package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrUnknownTrace is returned when a timing update references a trace that
// was never started (or was already stopped).
var ErrUnknownTrace = errors.New("unknown chat trace")

// ChatDurations tracks the lifecycle of chat messages and emits one
// round-trip event when a trace stops.
type ChatDurations struct {
	emitter Emitter

	mu     sync.Mutex
	traces map[string]*chatTrace
}

type chatTrace struct {
	tabID   string
	trigger string
	start   time.Time
	metrics []chatMetric
}

type chatMetric struct {
	name string
	at   time.Time
}

// NewChatDurations creates a tracker that emits through emitter.
func NewChatDurations(emitter Emitter) *ChatDurations {
	return &ChatDurations{
		emitter: emitter,
		traces:  make(map[string]*chatTrace),
	}
}

// Start opens a trace. Restarting an open trace discards its metrics.
func (c *ChatDurations) Start(traceID, tabID, trigger string, start time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.traces[traceID] = &chatTrace{
		tabID:   tabID,
		trigger: trigger,
		start:   start,
	}
}

// Update records that metric was reached at the given time.
func (c *ChatDurations) Update(traceID, metric string, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tr, ok := c.traces[traceID]
	if !ok {
		return ErrUnknownTrace
	}
	tr.metrics = append(tr.metrics, chatMetric{name: metric, at: at})
	return nil
}

// Stop closes the trace and emits the round-trip event. Durations are in
// milliseconds relative to the trace start.
func (c *ChatDurations) Stop(ctx context.Context, traceID string, at time.Time) error {
	c.mu.Lock()
	tr, ok := c.traces[traceID]
	if ok {
		delete(c.traces, traceID)
	}
	c.mu.Unlock()

	if !ok {
		return ErrUnknownTrace
	}

	durations := make(map[string]int64, len(tr.metrics))
	for _, m := range tr.metrics {
		durations[m.name] = m.at.Sub(tr.start).Milliseconds()
	}

	ev := NewEvent(EventChatRoundTrip, ResultSucceeded, map[string]any{
		"traceId":       traceID,
		"tabId":         tr.tabID,
		"trigger":       tr.trigger,
		"totalDuration": at.Sub(tr.start).Milliseconds(),
		"durations":     durations,
	})
	return c.emitter.Emit(ctx, ev)
}

// Open returns the number of traces in flight.
func (c *ChatDurations) Open() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.traces)
}
