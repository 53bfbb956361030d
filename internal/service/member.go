package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/pandeypooja21/code-sync/internal/domain"
	"github.com/pandeypooja21/code-sync/internal/store"
)

// MemberService is the membership registry: listing and removal. The owner
// invariant (exactly one member with the owner role, never removable) is
// enforced here on every removal path.
type MemberService struct {
	store *store.Store
}

// NewMemberService creates a MemberService instance.
func NewMemberService(st *store.Store) *MemberService {
	if st == nil {
		panic("Store cannot be nil for MemberService")
	}
	return &MemberService{store: st}
}

// List returns the workspace members in insertion order.
func (s *MemberService) List(ctx context.Context, workspaceID string) ([]domain.Member, error) {
	var members []domain.Member
	err := s.store.View(ctx, workspaceID, func(ws *domain.Workspace) error {
		members = append([]domain.Member(nil), ws.Members...)
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	return members, nil
}

// Remove removes a contributor from the workspace. Contributors may remove
// themselves ("exit workspace"); the owner may remove any contributor. The
// owner can never be removed, not by others and not by self-exit; deleting
// the workspace is the owner's way out.
func (s *MemberService) Remove(ctx context.Context, workspaceID string, caller domain.Identity, targetUserID string) error {
	err := s.store.Mutate(ctx, workspaceID, func(ws *domain.Workspace) ([]domain.Event, error) {
		target := ws.MemberByID(targetUserID)
		if target == nil {
			return nil, ErrMemberNotFound
		}
		if target.Role == domain.RoleOwner {
			return nil, ErrOwnerImmovable
		}

		callerMember := ws.MemberByID(caller.UserID)
		if callerMember == nil {
			return nil, ErrUnauthorized
		}
		selfRemoval := caller.UserID == targetUserID
		if !selfRemoval && callerMember.Role != domain.RoleOwner {
			return nil, ErrUnauthorized
		}

		removed := *target
		for i := range ws.Members {
			if ws.Members[i].UserID == targetUserID {
				ws.Members = append(ws.Members[:i], ws.Members[i+1:]...)
				break
			}
		}
		return []domain.Event{{
			Kind:        domain.EventMemberRemoved,
			WorkspaceID: workspaceID,
			Member:      &removed,
		}}, nil
	})
	if err != nil {
		return mapStoreError(err)
	}
	logrus.WithFields(logrus.Fields{
		"workspace_id": workspaceID,
		"user_id":      targetUserID,
		"removed_by":   caller.UserID,
	}).Info("Member removed")
	return nil
}
