// Package channel provides the in-process message channels that connect the
// webview dispatcher with app controllers.
//
// A channel is a Publisher/Listener pair over an unbounded Queue:
//   - Publishers never block (the UI callback must return promptly)
//   - Listeners receive messages one at a time, in publish order
//   - Closing a channel still delivers everything already published
package channel
