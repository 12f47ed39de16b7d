// Package state provides the persisted global key-value store used for
// counters such as the welcome-chat show count.
//
// Backends:
//   - Postgres: global_state table (key text, value jsonb)
//   - Memory: in-process, for tests and running without a database
package state
