// Package featuredev wires the feature-dev chat app into the dispatcher.
//
// The app registers for tab type "featuredev". Webview messages for that tab
// type are decoded by UIListener and handed to a Controller. App messages go
// back to the webview through the Messenger. AuthWatcher debounces auth
// change signals and tells the webview which tabs finished authenticating.
package featuredev
