package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rickgao/qchat-dispatch/internal/telemetry"
)

// Message is one classified webview message. The concrete type decides which
// handler runs; exactly one variant is produced per inbound message.
type Message interface {
	isMessage()
}

// UIReady signals the webview finished loading.
type UIReady struct {
	Raw json.RawMessage
}

// TimingPhase identifies a chat timing lifecycle step.
type TimingPhase int

const (
	TimingStart TimingPhase = iota
	TimingUpdate
	TimingStop
)

func (p TimingPhase) String() string {
	switch p {
	case TimingStart:
		return "start"
	case TimingUpdate:
		return "update"
	case TimingStop:
		return "stop"
	}
	return "unknown"
}

// ChatTiming is a start/update/stop chat message timing event.
type ChatTiming struct {
	Phase   TimingPhase
	TraceID string
	TabID   string
	Trigger string
	Metric  string    // update only
	At      time.Time // start time for TimingStart, otherwise the event time
}

// OpenLink asks the host to open a URL.
type OpenLink struct {
	Link string
}

// OpenAgentTelemetry reports that an agent tab was opened.
type OpenAgentTelemetry struct {
	Module  string
	Trigger string
}

// ClickTelemetry reports a click on a UI element.
type ClickTelemetry struct {
	Source string
}

// OtherTelemetry is a send-telemetry message of an unrecognised shape. It is
// accepted and ignored.
type OtherTelemetry struct {
	Name string
}

// DisclaimerAcknowledged records that the user accepted the chat disclaimer.
type DisclaimerAcknowledged struct{}

// WelcomeCountIncrement bumps the welcome-chat show counter.
type WelcomeCountIncrement struct{}

// WebviewError is a failure reported by the webview.
type WebviewError struct {
	Event        string
	ErrorMessage string
}

// ModuleLoadFailed reports whether the error happened while loading the
// chat module, as opposed to a generic webview error.
func (e WebviewError) ModuleLoadFailed() bool {
	return e.Event == telemetry.EventDidLoadModule
}

// ForAppMessage is any other message; it is forwarded by tabType.
type ForAppMessage struct {
	AppMessage
}

func (UIReady) isMessage()                {}
func (ChatTiming) isMessage()             {}
func (OpenLink) isMessage()               {}
func (OpenAgentTelemetry) isMessage()     {}
func (ClickTelemetry) isMessage()         {}
func (OtherTelemetry) isMessage()         {}
func (DisclaimerAcknowledged) isMessage() {}
func (WelcomeCountIncrement) isMessage()  {}
func (WebviewError) isMessage()           {}
func (ForAppMessage) isMessage()          {}

// ErrMissingField is wrapped by Parse when a recognised command lacks a
// required payload field.
var ErrMissingField = errors.New("missing required field")

// Parse classifies raw webview JSON. A recognised command wins over the
// error type, which wins over tabType routing. receivedAt fills in timing
// events that carry no timestamp.
func Parse(data []byte, receivedAt time.Time) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env == nil {
		return nil, errors.New("decode envelope: message is null")
	}
	command := env.str("command")

	switch command {
	case CommandUIReady:
		return UIReady{Raw: json.RawMessage(data)}, nil

	case CommandStartChatTiming:
		return parseChatTiming(data, TimingStart, receivedAt)
	case CommandUpdateChatTiming:
		return parseChatTiming(data, TimingUpdate, receivedAt)
	case CommandStopChatTiming:
		return parseChatTiming(data, TimingStop, receivedAt)

	case CommandOpenLink:
		var wire openLinkWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, fmt.Errorf("decode %s: %w", command, err)
		}
		if wire.Link == "" {
			return nil, fmt.Errorf("%s: %w: link", command, ErrMissingField)
		}
		return OpenLink{Link: wire.Link}, nil

	case CommandSendTelemetry:
		var wire sendTelemetryWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, fmt.Errorf("decode %s: %w", command, err)
		}
		switch wire.Name {
		case telemetry.EventDidLoadModule:
			return OpenAgentTelemetry{Module: wire.Module, Trigger: wire.Trigger}, nil
		case telemetry.EventUIClick:
			return ClickTelemetry{Source: wire.Source}, nil
		}
		return OtherTelemetry{Name: wire.Name}, nil

	case CommandDisclaimerAcknowledged:
		return DisclaimerAcknowledged{}, nil

	case CommandUpdateWelcomeCount:
		return WelcomeCountIncrement{}, nil
	}

	if env.str("type") == TypeError {
		return WebviewError{Event: env.str("event"), ErrorMessage: env.text("errorMessage")}, nil
	}

	return ForAppMessage{AppMessage{
		Command:    command,
		TabType:    env.str("tabType"),
		TabID:      env.text("tabID"),
		Raw:        json.RawMessage(data),
		ReceivedAt: receivedAt,
	}}, nil
}

func parseChatTiming(data []byte, phase TimingPhase, receivedAt time.Time) (Message, error) {
	var wire chatTimingWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode chat timing: %w", err)
	}
	if wire.TraceID == "" {
		return nil, fmt.Errorf("chat timing %s: %w: traceId", phase, ErrMissingField)
	}
	if phase == TimingUpdate && wire.Metric == "" {
		return nil, fmt.Errorf("chat timing %s: %w: metric", phase, ErrMissingField)
	}

	ts := wire.Time
	if phase == TimingStart {
		ts = wire.StartTime
	}

	return ChatTiming{
		Phase:   phase,
		TraceID: wire.TraceID,
		TabID:   wire.TabID,
		Trigger: wire.Trigger,
		Metric:  wire.Metric,
		At:      msToTime(ts, receivedAt),
	}, nil
}

// msToTime converts a JavaScript millisecond timestamp (which may carry a
// fractional part) to time.Time.
func msToTime(ms float64, fallback time.Time) time.Time {
	if ms <= 0 {
		return fallback
	}
	whole, frac := math.Modf(ms)
	return time.UnixMilli(int64(whole)).Add(time.Duration(frac * float64(time.Millisecond)))
}
