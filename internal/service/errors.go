package service

import (
	"errors"

	"github.com/pandeypooja21/code-sync/internal/store"
)

// Business errors returned to handlers. All of them are errors.Is-comparable;
// the HTTP layer maps each to a status code in one place.
var (
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrMemberNotFound    = errors.New("member not found")
	ErrNodeNotFound      = errors.New("node not found")
	ErrNoSuchInvite      = errors.New("no pending invite for this user")
	ErrAlreadyMember     = errors.New("user is already a member of this workspace")
	ErrDuplicateInvite   = errors.New("a pending invite already exists for this user")
	ErrInvalidParent     = errors.New("parent does not reference an existing folder")
	ErrCycleDetected     = errors.New("move would create a cycle in the tree")
	ErrInvalidName       = errors.New("name must not be empty")
	ErrUnauthorized      = errors.New("caller role does not permit this operation")
	ErrOwnerImmovable    = errors.New("the workspace owner cannot be removed")
	ErrTimeout           = errors.New("operation timed out, retry")
	ErrInternalServer    = errors.New("internal server error")
)

// mapStoreError translates store errors into business errors. Errors already
// belonging to this package pass through untouched.
func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrWorkspaceNotFound):
		return ErrWorkspaceNotFound
	case errors.Is(err, store.ErrTimeout):
		return ErrTimeout
	default:
		return err
	}
}
