package repository

import (
	"context"

	"github.com/pandeypooja21/code-sync/internal/domain"
)

// WorkspaceRepository is the durable backing behind the in-memory workspace
// store. The store stays authoritative; implementations only need to load on
// cold access and persist write-behind.
type WorkspaceRepository interface {
	// FindByID loads a persisted workspace record.
	// Returns ErrWorkspaceNotFound if no record exists.
	FindByID(ctx context.Context, id string) (*domain.WorkspaceRecord, error)

	// Save upserts a workspace record keyed by its ID.
	Save(ctx context.Context, record *domain.WorkspaceRecord) error

	// Delete removes a workspace record. Deleting an absent record is not an
	// error; the in-memory state is the source of truth for existence.
	Delete(ctx context.Context, id string) error
}
