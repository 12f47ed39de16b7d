// Package api provides the client for the auth-state REST service.
//
// Requests are signed when a Signer is configured, and retried with
// jittered exponential backoff on 5xx and 429 responses.
package api
