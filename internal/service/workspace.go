package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pandeypooja21/code-sync/internal/domain"
	"github.com/pandeypooja21/code-sync/internal/store"
)

// SubscriptionCloser tears down every push channel of a workspace. The
// broadcast hub implements it.
type SubscriptionCloser interface {
	CloseWorkspace(workspaceID string)
}

// PresenceDropper discards all cursor state of a workspace. The presence
// tracker implements it.
type PresenceDropper interface {
	DropWorkspace(workspaceID string)
}

// WorkspaceService owns the workspace lifecycle: creation, lookup and
// owner-driven deletion.
type WorkspaceService struct {
	store    *store.Store
	closer   SubscriptionCloser
	presence PresenceDropper
}

// NewWorkspaceService creates a WorkspaceService instance.
func NewWorkspaceService(st *store.Store, closer SubscriptionCloser, presence PresenceDropper) *WorkspaceService {
	if st == nil {
		panic("Store cannot be nil for WorkspaceService")
	}
	return &WorkspaceService{store: st, closer: closer, presence: presence}
}

// Create registers a new workspace with the caller as its sole owner. The
// owner member is fixed for the workspace's lifetime.
func (s *WorkspaceService) Create(ctx context.Context, owner domain.Identity, name string) (*domain.Snapshot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}

	now := time.Now()
	ws := &domain.Workspace{
		ID:        uuid.NewString(),
		Name:      name,
		OwnerID:   owner.UserID,
		CreatedAt: now,
		Members: []domain.Member{{
			UserID:      owner.UserID,
			DisplayName: owner.DisplayName,
			AvatarURL:   owner.AvatarURL,
			Role:        domain.RoleOwner,
			JoinedAt:    now,
		}},
		Invites: make(map[string]domain.Invite),
		Nodes:   make(map[string]*domain.Node),
	}

	if err := s.store.Create(ctx, ws); err != nil {
		logrus.WithError(err).WithField("owner_id", owner.UserID).
			Error("Failed to create workspace")
		return nil, ErrInternalServer
	}
	snap, err := s.store.Snapshot(ctx, ws.ID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return snap, nil
}

// Get returns the canonical snapshot of a workspace. Only members may read it.
func (s *WorkspaceService) Get(ctx context.Context, caller domain.Identity, workspaceID string) (*domain.Snapshot, error) {
	var snap *domain.Snapshot
	err := s.store.View(ctx, workspaceID, func(ws *domain.Workspace) error {
		if !ws.IsMember(caller.UserID) {
			return ErrUnauthorized
		}
		snap = store.BuildSnapshot(ws)
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	return snap, nil
}

// Delete tears down a workspace: store state, cursor state and every open
// subscription. Only the owner may delete.
func (s *WorkspaceService) Delete(ctx context.Context, caller domain.Identity, workspaceID string) error {
	err := s.store.View(ctx, workspaceID, func(ws *domain.Workspace) error {
		if ws.OwnerID != caller.UserID {
			return ErrUnauthorized
		}
		return nil
	})
	if err != nil {
		return mapStoreError(err)
	}

	if err := s.store.Delete(ctx, workspaceID); err != nil {
		return mapStoreError(err)
	}
	if s.presence != nil {
		s.presence.DropWorkspace(workspaceID)
	}
	if s.closer != nil {
		s.closer.CloseWorkspace(workspaceID)
	}
	logrus.WithFields(logrus.Fields{
		"workspace_id": workspaceID,
		"user_id":      caller.UserID,
	}).Info("Workspace deleted by owner")
	return nil
}
