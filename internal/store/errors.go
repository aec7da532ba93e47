package store

import "errors"

// Sentinel errors shared across the store, ledger, and transport layers.
// Callers match with errors.Is; wrapped messages carry the detail.
var (
	// ErrNotFound marks a reference to unknown content or an unknown user.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEvent marks an interaction tuple that was already recorded.
	// Ingestion delivers at-least-once, so callers treat this as a no-op.
	ErrDuplicateEvent = errors.New("duplicate interaction event")

	// ErrValidation marks malformed input that is rejected before any write.
	ErrValidation = errors.New("validation failed")
)
