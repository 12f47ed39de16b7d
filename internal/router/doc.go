// Package router implements the Event Router.
//
// Parse classifies each webview frame into one Message variant. The Router
// handles the built-in commands itself (telemetry, prompt settings, links,
// global state) and forwards everything tagged with a tab type to the app
// registered for it in the Table. Unknown tab types are dropped and counted.
//
// TableBuilder collects app registrations at startup; Build freezes them
// into an immutable Table. Forwarder queues app messages for the webview
// and holds them until the UI reports ready.
package router
