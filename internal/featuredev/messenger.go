package featuredev

// Outbound is the app→webview channel. *router.Forwarder satisfies it.
type Outbound interface {
	Publish(msg any) bool
}

// Outbound message types.
const (
	TypeAuthenticationUpdate = "authenticationUpdateMessage"
	TypeAuthNeeded           = "authNeededException"
	TypeErrorMessage         = "errorMessage"
)

// AuthenticationUpdateMessage tells the webview whether feature-dev is usable
// and which tabs just finished authenticating.
type AuthenticationUpdateMessage struct {
	Type                 string   `json:"type"`
	Sender               string   `json:"sender"`
	FeatureDevEnabled    bool     `json:"featureDevEnabled"`
	AuthenticatingTabIDs []string `json:"authenticatingTabIDs"`
}

// OutboundCommand names the message in delivery logs.
func (m AuthenticationUpdateMessage) OutboundCommand() string { return m.Type }

// AuthNeededMessage asks the webview to show the sign-in prompt in a tab.
type AuthNeededMessage struct {
	Type   string `json:"type"`
	Sender string `json:"sender"`
	TabID  string `json:"tabID"`
}

// OutboundCommand names the message in delivery logs.
func (m AuthNeededMessage) OutboundCommand() string { return m.Type }

// ErrorMessage shows an error in a tab.
type ErrorMessage struct {
	Type    string `json:"type"`
	Sender  string `json:"sender"`
	TabID   string `json:"tabID"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// OutboundCommand names the message in delivery logs.
func (m ErrorMessage) OutboundCommand() string { return m.Type }

// Messenger builds and publishes app→webview messages.
type Messenger struct {
	out    Outbound
	sender string
}

// NewMessenger creates a Messenger that stamps messages with sender.
func NewMessenger(out Outbound, sender string) *Messenger {
	return &Messenger{out: out, sender: sender}
}

// SendAuthenticationUpdate reports the feature-dev auth state.
func (m *Messenger) SendAuthenticationUpdate(enabled bool, authenticatingTabIDs []string) bool {
	if authenticatingTabIDs == nil {
		authenticatingTabIDs = []string{}
	}
	return m.out.Publish(AuthenticationUpdateMessage{
		Type:                 TypeAuthenticationUpdate,
		Sender:               m.sender,
		FeatureDevEnabled:    enabled,
		AuthenticatingTabIDs: authenticatingTabIDs,
	})
}

// SendAuthNeeded asks tabID to sign in.
func (m *Messenger) SendAuthNeeded(tabID string) bool {
	return m.out.Publish(AuthNeededMessage{
		Type:   TypeAuthNeeded,
		Sender: m.sender,
		TabID:  tabID,
	})
}

// SendError shows an error in tabID.
func (m *Messenger) SendError(tabID, title, message string) bool {
	return m.out.Publish(ErrorMessage{
		Type:    TypeErrorMessage,
		Sender:  m.sender,
		TabID:   tabID,
		Title:   title,
		Message: message,
	})
}
