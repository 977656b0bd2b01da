// Package dispatch serializes inbound messages per conversation and runs
// each one through the message pipeline: one message in flight per
// conversation, many conversations in parallel.
package dispatch

import "errors"

// Sentinel errors for dispatch operations.
var (
	// ErrStopped indicates the dispatcher has been shut down and no longer
	// accepts messages.
	ErrStopped = errors.New("dispatch: stopped")

	// ErrNoConversation indicates the message carries no conversation ID.
	ErrNoConversation = errors.New("dispatch: message has no conversation")

	// ErrNoHandler indicates no message handler has been configured.
	ErrNoHandler = errors.New("dispatch: no handler configured")
)
