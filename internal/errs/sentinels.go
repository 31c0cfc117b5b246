// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates a missing required field or a violated constraint at write time.
	ErrValidation = errors.New("validation")

	// ErrConflict indicates a unique constraint violation (e.g., username taken).
	ErrConflict = errors.New("already exists")

	// ErrHashing indicates the password hashing primitive failed or the stored hash is malformed.
	ErrHashing = errors.New("hashing")

	// ErrStore indicates the backing store is unavailable or the operation failed.
	ErrStore = errors.New("store")

	// ErrUnauthorized indicates the candidate password did not match.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrLocked indicates the account is temporarily locked after repeated failures.
	ErrLocked = errors.New("account locked")
)
