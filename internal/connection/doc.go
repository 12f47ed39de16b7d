// Package connection implements the webview bridge.
//
// The bridge:
//   - Accepts the chat webview over a WebSocket (one active connection)
//   - Checks the Origin header against an allow list
//   - Rate limits inbound frames per connection
//   - Pings the webview and drops connections that stop answering
//   - Hands frames to the Event Router and sends app messages back
//
// Probe is the client side, for tooling and tests.
package connection
