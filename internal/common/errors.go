// Package common contains shared constants and sentinel errors used across
// Hipnode components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrDuplicateKey reports a unique-constraint violation. The identity
	// resolver recovers from it internally; it never reaches a client.
	ErrDuplicateKey = errors.New("duplicate key")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// ErrInvalidPayload is the only verification failure a client sees.
	// The specific failed check is logged server-side only.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrResolutionExhausted means no unique username could be generated
	// within the bounded retry budget.
	ErrResolutionExhausted = errors.New("identity resolution exhausted")

	// Session errors. Expired, malformed and absent tokens all collapse here.
	ErrSessionInvalid = errors.New("session invalid")

	// ErrStoreUnavailable means the persistence layer could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
)
