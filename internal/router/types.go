package router

import (
	"encoding/json"
	"time"

	"github.com/rickgao/qchat-dispatch/internal/channel"
)

// RouterConfig holds configuration for the inbound Event Router.
type RouterConfig struct {
	ChatModuleName string // Module name reported in load/error telemetry. Default: "amazonqChat"
	ChatTabType    string // Routing key notified on ui-is-ready. Default: "cwc"
}

// DefaultRouterConfig returns default configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		ChatModuleName: "amazonqChat",
		ChatTabType:    "cwc",
	}
}

// ForwarderConfig holds configuration for the outbound Forwarder.
type ForwarderConfig struct {
	QueueSize       int           // Initial capacity of the app→UI queue. Default: 256
	DeliveryTimeout time.Duration // Per-message transport deadline. Default: 5s
}

// DefaultForwarderConfig returns default configuration.
func DefaultForwarderConfig() ForwarderConfig {
	return ForwarderConfig{
		QueueSize:       256,
		DeliveryTimeout: 5 * time.Second,
	}
}

// Command tags the webview sends that the router handles itself.
const (
	CommandUIReady                = "ui-is-ready"
	CommandStartChatTiming        = "start-chat-message-telemetry"
	CommandUpdateChatTiming       = "update-chat-message-telemetry"
	CommandStopChatTiming         = "stop-chat-message-telemetry"
	CommandOpenLink               = "open-link"
	CommandSendTelemetry          = "send-telemetry"
	CommandDisclaimerAcknowledged = "disclaimer-acknowledged"
	CommandUpdateWelcomeCount     = "update-welcome-count"
)

// TypeError is the reserved message type the webview uses to report failures.
const TypeError = "error"

// AppMessage is what app controllers receive on their inbound channel. Raw is
// the webview message exactly as it arrived.
type AppMessage struct {
	Command    string
	TabType    string
	TabID      string
	Raw        json.RawMessage
	ReceivedAt time.Time
}

// AppPublisher is the inbound channel of one app controller.
type AppPublisher = channel.Publisher[AppMessage]

// AppListener is the read end of an app controller's inbound channel.
type AppListener = channel.Listener[AppMessage]

// NewAppChannel creates an app controller's inbound channel.
func NewAppChannel() (*AppPublisher, *AppListener) {
	return channel.NewPair[AppMessage]()
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	MessagesReceived int64 `json:"messages_received"`
	Dispatched       int64 `json:"dispatched"` // handled by a built-in handler
	Forwarded        int64 `json:"forwarded"`  // delivered to an app channel
	Dropped          int64 `json:"dropped"`    // no destination registered
	ParseErrors      int64 `json:"parse_errors"`
	HandlerErrors    int64 `json:"handler_errors"`
}

// ForwarderStats contains outbound delivery statistics.
type ForwarderStats struct {
	Published int64              `json:"published"`
	Delivered int64              `json:"delivered"`
	Failed    int64              `json:"failed"`
	UIReady   bool               `json:"ui_ready"`
	Queue     channel.QueueStats `json:"queue"`
}

// Wire types for JSON parsing

// envelope holds the top-level fields of a message, undecoded. Tags are read
// with str; a tag of any other JSON type counts as absent.
type envelope map[string]json.RawMessage

// str returns the string value of key, or "" when key is missing or not a
// JSON string.
func (e envelope) str(key string) string {
	raw, ok := e[key]
	if !ok || len(raw) == 0 || raw[0] != '"' {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// text returns the string value of key, or the raw JSON when it holds some
// other type.
func (e envelope) text(key string) string {
	raw, ok := e[key]
	if !ok || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		return e.str(key)
	}
	return string(raw)
}

// chatTimingWire covers the start/update/stop chat timing messages.
type chatTimingWire struct {
	TraceID   string  `json:"traceId"`
	TabID     string  `json:"tabID"`
	Trigger   string  `json:"trigger"`
	Metric    string  `json:"metric"`
	StartTime float64 `json:"startTime"` // ms since epoch
	Time      float64 `json:"time"`      // ms since epoch
}

// openLinkWire is the open-link payload.
type openLinkWire struct {
	Link string `json:"link"`
}

// sendTelemetryWire is the send-telemetry payload. Name selects the shape.
type sendTelemetryWire struct {
	Name    string `json:"name"`
	Module  string `json:"module"`
	Trigger string `json:"trigger"`
	Source  string `json:"source"`
}
