// Package errs defines the sentinel errors shared across the session,
// dataset, and remote-sync layers. Callers should match these values with
// errors.Is.
package errs

import "errors"

var (
	// Login / session errors.
	ErrBadCredential    = errors.New("bad credential")
	ErrAlreadyActive    = errors.New("user already has an active session")
	ErrCapacityExceeded = errors.New("maximum number of concurrent sessions reached")

	// Remote store errors.
	ErrNotFound     = errors.New("not found")
	ErrAuthError    = errors.New("remote authentication rejected")
	ErrConflict     = errors.New("version conflict")
	ErrNetworkError = errors.New("network error")

	// Local persistence errors.
	ErrIOError = errors.New("local persistence failure")

	// ErrMalformedRecord marks an unreadable persisted registry file. The
	// stores recover from it by reseeding defaults instead of crashing.
	ErrMalformedRecord = errors.New("malformed record file")
)
