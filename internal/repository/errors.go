package repository

import "errors"

// Common storage errors. Service and store code compare against these with
// errors.Is instead of inspecting driver errors.
var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry means an insert or update violated a unique constraint.
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
)

var ErrWorkspaceNotFound = ErrNotFound
