package featuredev

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/rickgao/qchat-dispatch/internal/router"
)

// ListenerStats counts UI listener outcomes.
type ListenerStats struct {
	Handled      int64 `json:"handled"`
	Unknown      int64 `json:"unknown"`
	DecodeErrors int64 `json:"decode_errors"`
}

// UIListener decodes feature-dev webview messages and calls the Controller.
type UIListener struct {
	input  *router.AppListener
	ctrl   Controller
	logger *slog.Logger

	handled      atomic.Int64
	unknown      atomic.Int64
	decodeErrors atomic.Int64
}

// NewUIListener creates a listener reading from input.
func NewUIListener(input *router.AppListener, ctrl Controller, logger *slog.Logger) *UIListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &UIListener{input: input, ctrl: ctrl, logger: logger}
}

// Run handles messages until ctx is done or the channel is closed.
func (l *UIListener) Run(ctx context.Context) {
	l.input.OnMessage(ctx, func(msg router.AppMessage) {
		l.Handle(ctx, msg)
	})
}

// Stats returns listener counters.
func (l *UIListener) Stats() ListenerStats {
	return ListenerStats{
		Handled:      l.handled.Load(),
		Unknown:      l.unknown.Load(),
		DecodeErrors: l.decodeErrors.Load(),
	}
}

// Handle dispatches one message. Unknown commands are dropped.
func (l *UIListener) Handle(ctx context.Context, msg router.AppMessage) {
	var err error

	switch msg.Command {
	case CommandChatPrompt:
		err = dispatch(msg, func(ev ChatPrompt) { l.ctrl.ProcessHumanChatMessage(ctx, ev) })
	case CommandFollowUpClicked:
		err = dispatch(msg, func(ev FollowUpClicked) { l.ctrl.FollowUpClicked(ctx, ev) })
	case CommandOpenDiff:
		err = dispatch(msg, func(ev OpenDiff) { l.ctrl.OpenDiff(ctx, ev) })
	case CommandChatItemVoted:
		err = dispatch(msg, func(ev ChatItemVoted) { l.ctrl.ProcessChatItemVoted(ctx, ev) })
	case CommandChatItemFeedback:
		err = dispatch(msg, func(ev ChatItemFeedback) { l.ctrl.ProcessChatItemFeedback(ctx, ev) })
	case CommandStopResponse:
		err = dispatch(msg, func(ev TabEvent) { l.ctrl.StopResponse(ctx, ev) })
	case CommandTabOpened:
		err = dispatch(msg, func(ev TabEvent) { l.ctrl.TabOpened(ctx, ev) })
	case CommandTabClosed:
		err = dispatch(msg, func(ev TabEvent) { l.ctrl.TabClosed(ctx, ev) })
	case CommandAuthClicked:
		err = dispatch(msg, func(ev AuthClicked) { l.ctrl.AuthClicked(ctx, ev) })
	case CommandResponseBodyLink:
		err = dispatch(msg, func(ev ResponseBodyLinkClick) { l.ctrl.ProcessResponseBodyLinkClick(ctx, ev) })
	case CommandInsertCodeAtPosition:
		err = dispatch(msg, func(ev InsertCodeAtPosition) { l.ctrl.InsertCodeAtPositionClicked(ctx, ev) })
	case CommandFileClicked:
		err = dispatch(msg, func(ev FileClicked) { l.ctrl.FileClicked(ctx, ev) })
	case CommandStoreCodeResultID:
		err = dispatch(msg, func(ev StoreCodeResultMessageID) { l.ctrl.StoreCodeResultMessageID(ctx, ev) })
	default:
		l.unknown.Add(1)
		l.logger.Debug("unknown feature-dev command, dropping", "command", msg.Command, "tab_id", msg.TabID)
		return
	}

	if err != nil {
		l.decodeErrors.Add(1)
		l.logger.Warn("failed to decode feature-dev message", "command", msg.Command, "error", err)
		return
	}
	l.handled.Add(1)
}

// dispatch decodes msg.Raw into T and calls fn.
func dispatch[T any](msg router.AppMessage, fn func(T)) error {
	var ev T
	if err := json.Unmarshal(msg.Raw, &ev); err != nil {
		return fmt.Errorf("decode %s: %w", msg.Command, err)
	}
	fn(ev)
	return nil
}
