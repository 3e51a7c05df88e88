// Package errs defines the error taxonomy shared by every manager.
//
// Managers wrap these sentinels with the offending id or name so callers can
// both render a specific message and discriminate with errors.Is.
package errs

import "errors"

var (
	// ErrResourceNotFound signals a referenced id that does not exist, or a
	// cross-reference mismatch (e.g. a content id that belongs to another item).
	ErrResourceNotFound = errors.New("resource not found")

	// ErrResourceAlreadyExists signals a uniqueness violation on create/rename.
	ErrResourceAlreadyExists = errors.New("resource already exists")

	// ErrUnauthorized signals an authorization engine denial.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrBadRequest signals a structural invariant violation: a hierarchy cycle,
	// deleting a default group, removing an owner from their own group, or
	// deleting a group that still has projects.
	ErrBadRequest = errors.New("bad request")

	// ErrConflict signals an optimistic concurrency collision, e.g. the loser of
	// two racing moves of the same item.
	ErrConflict = errors.New("conflict")
)
