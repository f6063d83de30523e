package database

import "errors"

// Sentinel errors for the failure classes handlers care about. Store
// methods wrap these so callers can map them to channel/HTTP replies
// with errors.Is.
var (
	// ErrValidation marks a missing or malformed field, rejected before
	// any write.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a lookup of a row that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a uniqueness violation (duplicate sound name).
	ErrConflict = errors.New("conflict")
)
