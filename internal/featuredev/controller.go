package featuredev

import (
	"context"
	"log/slog"
)

// Controller receives decoded feature-dev webview events.
type Controller interface {
	ProcessHumanChatMessage(ctx context.Context, ev ChatPrompt)
	FollowUpClicked(ctx context.Context, ev FollowUpClicked)
	OpenDiff(ctx context.Context, ev OpenDiff)
	ProcessChatItemVoted(ctx context.Context, ev ChatItemVoted)
	ProcessChatItemFeedback(ctx context.Context, ev ChatItemFeedback)
	StopResponse(ctx context.Context, ev TabEvent)
	TabOpened(ctx context.Context, ev TabEvent)
	TabClosed(ctx context.Context, ev TabEvent)
	AuthClicked(ctx context.Context, ev AuthClicked)
	ProcessResponseBodyLinkClick(ctx context.Context, ev ResponseBodyLinkClick)
	InsertCodeAtPositionClicked(ctx context.Context, ev InsertCodeAtPosition)
	FileClicked(ctx context.Context, ev FileClicked)
	StoreCodeResultMessageID(ctx context.Context, ev StoreCodeResultMessageID)
}

// SessionController keeps SessionStorage in step with the webview's tabs and
// auth prompts. Generation, diffs and feedback belong to the feature-dev
// backend; here they are logged and otherwise ignored.
type SessionController struct {
	sessions  *SessionStorage
	messenger *Messenger
	logger    *slog.Logger
}

// NewSessionController creates a SessionController.
func NewSessionController(sessions *SessionStorage, messenger *Messenger, logger *slog.Logger) *SessionController {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionController{
		sessions:  sessions,
		messenger: messenger,
		logger:    logger,
	}
}

func (c *SessionController) TabOpened(ctx context.Context, ev TabEvent) {
	c.sessions.GetSession(ev.TabID)
}

func (c *SessionController) TabClosed(ctx context.Context, ev TabEvent) {
	c.sessions.DeleteSession(ev.TabID)
}

// AuthClicked marks the tab as authenticating. The auth watcher clears the
// flag once the connection comes up.
func (c *SessionController) AuthClicked(ctx context.Context, ev AuthClicked) {
	c.sessions.Update(ev.TabID, func(s *Session) { s.IsAuthenticating = true })
	c.logger.Info("feature-dev tab started authentication", "tab_id", ev.TabID, "auth_type", ev.AuthType)
}

// ProcessHumanChatMessage asks a tab that is mid sign-in to finish it first.
func (c *SessionController) ProcessHumanChatMessage(ctx context.Context, ev ChatPrompt) {
	if c.sessions.GetSession(ev.TabID).IsAuthenticating {
		c.messenger.SendAuthNeeded(ev.TabID)
		return
	}
	c.unhandled(CommandChatPrompt, ev.TabID)
}

func (c *SessionController) StoreCodeResultMessageID(ctx context.Context, ev StoreCodeResultMessageID) {
	c.sessions.Update(ev.TabID, func(s *Session) { s.CodeResultID = ev.MessageID })
}

func (c *SessionController) FollowUpClicked(ctx context.Context, ev FollowUpClicked) {
	c.unhandled(CommandFollowUpClicked, ev.TabID)
}

func (c *SessionController) OpenDiff(ctx context.Context, ev OpenDiff) {
	c.unhandled(CommandOpenDiff, ev.TabID)
}

func (c *SessionController) ProcessChatItemVoted(ctx context.Context, ev ChatItemVoted) {
	c.unhandled(CommandChatItemVoted, ev.TabID)
}

func (c *SessionController) ProcessChatItemFeedback(ctx context.Context, ev ChatItemFeedback) {
	c.unhandled(CommandChatItemFeedback, ev.TabID)
}

func (c *SessionController) StopResponse(ctx context.Context, ev TabEvent) {
	c.unhandled(CommandStopResponse, ev.TabID)
}

func (c *SessionController) ProcessResponseBodyLinkClick(ctx context.Context, ev ResponseBodyLinkClick) {
	c.unhandled(CommandResponseBodyLink, ev.TabID)
}

func (c *SessionController) InsertCodeAtPositionClicked(ctx context.Context, ev InsertCodeAtPosition) {
	c.unhandled(CommandInsertCodeAtPosition, ev.TabID)
}

func (c *SessionController) FileClicked(ctx context.Context, ev FileClicked) {
	c.unhandled(CommandFileClicked, ev.TabID)
}

func (c *SessionController) unhandled(command, tabID string) {
	c.logger.Debug("feature-dev event has no backend", "command", command, "tab_id", tabID)
}
