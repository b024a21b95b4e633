package storage

import "errors"

// Sentinel errors shared by every store implementation. Callers match them
// with errors.Is; implementations wrap them with the offending key.
var (
	// ErrNotFound means no bar, run, curve or aggregate matched the key.
	ErrNotFound = errors.New("storage: not found")

	// ErrDuplicateKey means the key is already stored. Bars, runs and
	// curves are write-once; aggregates are only write-once through Insert.
	ErrDuplicateKey = errors.New("storage: duplicate key")

	// ErrInvalidInput means a record failed validation before any write.
	ErrInvalidInput = errors.New("storage: invalid input")
)
