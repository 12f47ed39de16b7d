package featuredev

import "encoding/json"

// TabType is the routing key the app registers under.
const TabType = "featuredev"

// SenderName identifies the app on outbound messages.
const SenderName = "featureDevChat"

// Webview commands the app understands.
const (
	CommandChatPrompt           = "chat-prompt"
	CommandFollowUpClicked      = "follow-up-was-clicked"
	CommandOpenDiff             = "open-diff"
	CommandChatItemVoted        = "chat-item-voted"
	CommandChatItemFeedback     = "chat-item-feedback"
	CommandStopResponse         = "stop-response"
	CommandTabOpened            = "new-tab-was-created"
	CommandTabClosed            = "tab-was-removed"
	CommandAuthClicked          = "auth-follow-up-was-clicked"
	CommandResponseBodyLink     = "response-body-link-click"
	CommandInsertCodeAtPosition = "insert_code_at_cursor_position"
	CommandFileClicked          = "file-click"
	CommandStoreCodeResultID    = "store-code-result-message-id"
)

// ChatPrompt is a user message typed into a tab.
type ChatPrompt struct {
	TabID   string `json:"tabID"`
	Message string `json:"chatMessage"`
	Command string `json:"chatCommand,omitempty"`
}

// FollowUpClicked is a click on a suggested follow-up.
type FollowUpClicked struct {
	TabID     string          `json:"tabID"`
	MessageID string          `json:"messageId"`
	FollowUp  json.RawMessage `json:"followUp"`
}

// OpenDiff asks for the diff of a generated file.
type OpenDiff struct {
	TabID     string `json:"tabID"`
	MessageID string `json:"messageId"`
	FilePath  string `json:"filePath"`
	Deleted   bool   `json:"deleted"`
}

// ChatItemVoted is an up/down vote on a chat item.
type ChatItemVoted struct {
	TabID     string `json:"tabID"`
	MessageID string `json:"messageId"`
	Vote      string `json:"vote"`
}

// ChatItemFeedback is written feedback on a chat item.
type ChatItemFeedback struct {
	TabID     string `json:"tabID"`
	MessageID string `json:"messageId"`
	Type      string `json:"selectedOption"`
	Comment   string `json:"comment"`
}

// TabEvent carries only a tab ID (stop, open, close).
type TabEvent struct {
	TabID string `json:"tabID"`
}

// AuthClicked is a click on an authentication follow-up.
type AuthClicked struct {
	TabID    string `json:"tabID"`
	AuthType string `json:"authType"`
}

// ResponseBodyLinkClick is a click on a link inside a response.
type ResponseBodyLinkClick struct {
	TabID     string `json:"tabID"`
	MessageID string `json:"messageId"`
	Link      string `json:"link"`
}

// InsertCodeAtPosition asks to insert a code block at the cursor.
type InsertCodeAtPosition struct {
	TabID     string `json:"tabID"`
	MessageID string `json:"messageId"`
	Code      string `json:"code"`
}

// FileClicked is an action on a file in the generated file list.
type FileClicked struct {
	TabID      string `json:"tabID"`
	MessageID  string `json:"messageId"`
	FilePath   string `json:"filePath"`
	ActionName string `json:"actionName"`
}

// StoreCodeResultMessageID records which message holds the code result.
type StoreCodeResultMessageID struct {
	TabID     string `json:"tabID"`
	MessageID string `json:"messageId"`
}
