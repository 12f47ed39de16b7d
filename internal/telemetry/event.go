package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event names emitted by the dispatcher.
const (
	EventDidLoadModule = "toolkit_didLoadModule"
	EventUIClick       = "ui_click"
	EventWebviewError  = "webview_error"
	EventChatRoundTrip = "amazonq_chatRoundTrip"
)

// Result is the outcome recorded on every event.
type Result string

const (
	ResultSucceeded Result = "Succeeded"
	ResultFailed    Result = "Failed"
)

// Event is a single telemetry record.
type Event struct {
	ID         uuid.UUID
	Name       string
	Time       time.Time
	Result     Result
	Attributes map[string]any
}

// NewEvent creates an event stamped with a fresh ID and the current time.
func NewEvent(name string, result Result, attrs map[string]any) Event {
	if attrs == nil {
		attrs = make(map[string]any)
	}
	return Event{
		ID:         uuid.New(),
		Name:       name,
		Time:       time.Now(),
		Result:     result,
		Attributes: attrs,
	}
}

// Emitter accepts telemetry events.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(context.Context, Event) error

func (f EmitterFunc) Emit(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Emit logs ev at info level.
func (s *LogSink) Emit(ctx context.Context, ev Event) error {
	attrs := make([]slog.Attr, 0, len(ev.Attributes)+3)
	attrs = append(attrs,
		slog.String("event_id", ev.ID.String()),
		slog.String("name", ev.Name),
		slog.String("result", string(ev.Result)),
	)
	for k, v := range ev.Attributes {
		attrs = append(attrs, slog.Any(k, v))
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "telemetry", attrs...)
	return nil
}

// Multi fans an event out to several emitters. All emitters are called even
// if one fails; the errors are joined.
type Multi []Emitter

func (m Multi) Emit(ctx context.Context, ev Event) error {
	var errs []error
	for _, e := range m {
		if err := e.Emit(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
