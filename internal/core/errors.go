package core

import "errors"

// Failure taxonomy shared by services and the HTTP layer. Services wrap
// these sentinels with context; callers classify with errors.Is.
var (
	// ErrUnauthorized: no or invalid owner identity on a mutating call.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound: referenced account or transaction absent, or not owned
	// by the caller. Ownership violations surface as not-found, never as a
	// redirect to someone else's data.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput: non-numeric amount, missing required field.
	ErrInvalidInput = errors.New("invalid input")

	// ErrExternalService: AI, store, or email call failed or timed out.
	ErrExternalService = errors.New("external service failure")

	// ErrConflict: concurrent modification detected, e.g. a recurrence
	// period already materialized by another worker.
	ErrConflict = errors.New("consistency conflict")
)
