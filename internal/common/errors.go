// Package common defines the error taxonomy shared by all layers of
// CloudVault. Callers classify failures with errors.Is; the wrapping site
// adds the human-readable detail.
package common

import "errors"

var (
	// ErrInvalidArgument covers malformed or missing input, a self-referential
	// move, and similar caller mistakes.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound covers missing entities. Ownership mismatches are reported
	// with the same error so existence is never leaked.
	ErrNotFound = errors.New("not found")

	// ErrConflict covers naming collisions, cycle-forming moves, and attempts
	// to re-transition a terminal upload session.
	ErrConflict = errors.New("conflict")

	// ErrPayloadTooLarge is returned when an upload exceeds the configured
	// maximum size.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrUnavailable marks a failed or timed-out external store call.
	// Safe for the caller to retry.
	ErrUnavailable = errors.New("unavailable")

	// ErrInternal marks unexpected failures, e.g. the object store not
	// handing back a multipart id.
	ErrInternal = errors.New("internal error")

	// ErrInvalidToken is returned by the auth middleware for a malformed or
	// expired bearer token.
	ErrInvalidToken = errors.New("invalid token")
)
