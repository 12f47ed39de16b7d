package api

import (
	"context"
	"fmt"
)

// AuthStatePath is the auth-state endpoint.
const AuthStatePath = "/v1/chat/auth-state"

// Connection states reported per feature.
const (
	StateConnected    = "connected"
	StateExpired      = "expired"
	StateDisconnected = "disconnected"
)

// AuthState is the connection state of each chat feature.
type AuthState struct {
	AmazonQ           string `json:"amazonQ"`
	CodeWhispererCore string `json:"codewhispererCore,omitempty"`
	CodeWhispererChat string `json:"codewhispererChat,omitempty"`
}

// ChatConnected reports whether Amazon Q chat is usable.
func (s AuthState) ChatConnected() bool {
	return s.AmazonQ == StateConnected
}

// GetChatAuthState fetches the current auth state.
func (c *Client) GetChatAuthState(ctx context.Context) (AuthState, error) {
	var state AuthState
	if err := c.get(ctx, AuthStatePath, &state); err != nil {
		return AuthState{}, fmt.Errorf("get chat auth state: %w", err)
	}
	return state, nil
}
