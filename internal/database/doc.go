// Package database provides the PostgreSQL connection pool and schema.
//
// The dispatcher keeps two tables:
//   - global_state: key/value host state (welcome-chat counter and friends)
//   - telemetry_events: batched telemetry when the postgres sink is enabled
package database
