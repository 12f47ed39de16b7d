// Package telemetry records webview lifecycle and interaction events.
//
// Events are emitted through an Emitter:
//   - LogSink writes them to the structured log
//   - Writer batches them into the telemetry_events table (PostgreSQL)
//   - Multi fans out to several emitters
//
// ChatDurations turns the start/update/stop chat timing messages sent by the
// webview into a single amazonq_chatRoundTrip event per trace.
package telemetry
