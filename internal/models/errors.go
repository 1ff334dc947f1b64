package models

import "errors"

var (
	// ErrGenerationFailed marks a generation collaborator error or timeout.
	// Recoverable: callers route to the deterministic fallback.
	ErrGenerationFailed = errors.New("ai generation failed")

	// ErrMalformedResponse marks a collaborator reply that is not the JSON
	// the schema requires. Handled exactly like ErrGenerationFailed.
	ErrMalformedResponse = errors.New("malformed ai response")

	// ErrSessionNotFound means the in-process session state is missing.
	// Recoverable by rehydrating from the durable completion record.
	ErrSessionNotFound = errors.New("story session not found")

	// ErrValidation marks bad caller input. The only error class that is
	// surfaced to the caller instead of being absorbed by a fallback.
	ErrValidation = errors.New("validation failed")
)
