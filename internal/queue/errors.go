package queue

import "errors"

var (
	// ErrNotFound indicates the requested entry, product, or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition indicates a status change that violates the state graph,
	// including assignment of a non-pending entry.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrConflict indicates a concurrent mutation won the version check first.
	// The caller observed stale state and must re-read before retrying.
	ErrConflict = errors.New("concurrent modification")

	// ErrValidation indicates malformed input to a store operation.
	ErrValidation = errors.New("validation error")
)
