package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pandeypooja21/code-sync/internal/domain"
	"github.com/pandeypooja21/code-sync/internal/store"
)

// InviteService drives the invite lifecycle: pending -> accepted, declined or
// revoked. Terminal transitions delete the invite record, so re-applying a
// terminal transition fails cleanly with ErrNoSuchInvite instead of producing
// a duplicate side effect, so clients may retry accept/decline on a lost
// acknowledgment.
type InviteService struct {
	store *store.Store
}

// NewInviteService creates an InviteService instance.
func NewInviteService(st *store.Store) *InviteService {
	if st == nil {
		panic("Store cannot be nil for InviteService")
	}
	return &InviteService{store: st}
}

// Invite creates a pending invite for inviteeID. The inviter must hold the
// contributor or owner role. Re-inviting a user with an invite already
// pending fails with ErrDuplicateInvite; the timestamp is not refreshed.
func (s *InviteService) Invite(ctx context.Context, workspaceID string, inviter domain.Identity, inviteeID string) error {
	logCtx := logrus.WithFields(logrus.Fields{
		"workspace_id": workspaceID,
		"inviter_id":   inviter.UserID,
		"invitee_id":   inviteeID,
	})

	err := s.store.Mutate(ctx, workspaceID, func(ws *domain.Workspace) ([]domain.Event, error) {
		if !ws.IsMember(inviter.UserID) {
			return nil, ErrUnauthorized
		}
		if ws.IsMember(inviteeID) {
			return nil, ErrAlreadyMember
		}
		if _, pending := ws.Invites[inviteeID]; pending {
			return nil, ErrDuplicateInvite
		}

		invite := domain.Invite{
			WorkspaceID: workspaceID,
			InviteeID:   inviteeID,
			InviterID:   inviter.UserID,
			CreatedAt:   time.Now(),
		}
		ws.Invites[inviteeID] = invite
		return []domain.Event{{
			Kind:        domain.EventInviteCreated,
			WorkspaceID: workspaceID,
			Invite:      &invite,
		}}, nil
	})
	if err != nil {
		return mapStoreError(err)
	}
	logCtx.Info("Invite created")
	return nil
}

// Accept converts the caller's pending invite into contributor membership.
// Removal of the invite and insertion of the member happen in one atomic
// step; a second Accept finds no invite and fails with ErrNoSuchInvite
// without creating a double membership.
func (s *InviteService) Accept(ctx context.Context, workspaceID string, invitee domain.Identity) error {
	logCtx := logrus.WithFields(logrus.Fields{
		"workspace_id": workspaceID,
		"invitee_id":   invitee.UserID,
	})

	err := s.store.Mutate(ctx, workspaceID, func(ws *domain.Workspace) ([]domain.Event, error) {
		invite, pending := ws.Invites[invitee.UserID]
		if !pending {
			return nil, ErrNoSuchInvite
		}
		if ws.IsMember(invitee.UserID) {
			// An invite for an existing member violates the exclusivity
			// invariant; drop it rather than double-adding.
			delete(ws.Invites, invitee.UserID)
			return nil, ErrAlreadyMember
		}

		delete(ws.Invites, invitee.UserID)
		member := domain.Member{
			UserID:      invitee.UserID,
			DisplayName: invitee.DisplayName,
			AvatarURL:   invitee.AvatarURL,
			Role:        domain.RoleContributor,
			JoinedAt:    time.Now(),
		}
		ws.Members = append(ws.Members, member)
		return []domain.Event{
			{
				Kind:        domain.EventMemberAdded,
				WorkspaceID: workspaceID,
				Member:      &member,
			},
			{
				Kind:        domain.EventInviteResolved,
				WorkspaceID: workspaceID,
				Invite:      &invite,
				Resolution:  domain.InviteAccepted,
			},
		}, nil
	})
	if err != nil {
		return mapStoreError(err)
	}
	logCtx.Info("Invite accepted, member added")
	return nil
}

// Decline removes the caller's pending invite.
func (s *InviteService) Decline(ctx context.Context, workspaceID string, invitee domain.Identity) error {
	return s.resolve(ctx, workspaceID, invitee.UserID, domain.InviteDeclined)
}

// Revoke removes a pending invite on behalf of the workspace owner.
func (s *InviteService) Revoke(ctx context.Context, workspaceID string, caller domain.Identity, inviteeID string) error {
	err := s.store.Mutate(ctx, workspaceID, func(ws *domain.Workspace) ([]domain.Event, error) {
		m := ws.MemberByID(caller.UserID)
		if m == nil || m.Role != domain.RoleOwner {
			return nil, ErrUnauthorized
		}
		return resolveInvite(ws, inviteeID, domain.InviteRevoked)
	})
	return mapStoreError(err)
}

// ListForUser returns every pending invite addressed to the caller across all
// workspaces, oldest first.
func (s *InviteService) ListForUser(ctx context.Context, caller domain.Identity) ([]domain.Invite, error) {
	invites, err := s.store.InvitesForUser(ctx, caller.UserID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return invites, nil
}

func (s *InviteService) resolve(ctx context.Context, workspaceID, inviteeID string, resolution domain.InviteResolution) error {
	err := s.store.Mutate(ctx, workspaceID, func(ws *domain.Workspace) ([]domain.Event, error) {
		return resolveInvite(ws, inviteeID, resolution)
	})
	if err != nil {
		return mapStoreError(err)
	}
	logrus.WithFields(logrus.Fields{
		"workspace_id": workspaceID,
		"invitee_id":   inviteeID,
		"resolution":   resolution,
	}).Info("Invite resolved")
	return nil
}

func resolveInvite(ws *domain.Workspace, inviteeID string, resolution domain.InviteResolution) ([]domain.Event, error) {
	invite, pending := ws.Invites[inviteeID]
	if !pending {
		return nil, ErrNoSuchInvite
	}
	delete(ws.Invites, inviteeID)
	return []domain.Event{{
		Kind:        domain.EventInviteResolved,
		WorkspaceID: ws.ID,
		Invite:      &invite,
		Resolution:  resolution,
	}}, nil
}
