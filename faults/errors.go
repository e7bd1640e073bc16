package faults

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when RetryWithBackoff is called with
	// a non-positive attempt count.
	ErrInvalidMaxAttempts = errors.New("max attempts must be greater than zero")

	// ErrNoRecoveryHandler is returned when recovery is requested for an
	// operation with no registered handler.
	ErrNoRecoveryHandler = errors.New("no recovery handler registered for operation")
)
