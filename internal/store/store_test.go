package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandeypooja21/code-sync/internal/domain"
	"github.com/pandeypooja21/code-sync/internal/repository"
	"github.com/pandeypooja21/code-sync/internal/repository/mocks"
	"github.com/pandeypooja21/code-sync/internal/store"
)

// recordingNotifier captures every published event for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recordingNotifier) Publish(workspaceID string, events ...domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *recordingNotifier) all() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

func newWorkspace(id, ownerID string) *domain.Workspace {
	now := time.Now()
	return &domain.Workspace{
		ID:        id,
		Name:      "ws " + id,
		OwnerID:   ownerID,
		CreatedAt: now,
		Members: []domain.Member{{
			UserID:   ownerID,
			Role:     domain.RoleOwner,
			JoinedAt: now,
		}},
		Invites: make(map[string]domain.Invite),
		Nodes:   make(map[string]*domain.Node),
	}
}

func TestStore_Create_RequiresOwnerAsSoleMember(t *testing.T) {
	st := store.New()
	ctx := context.Background()

	ws := newWorkspace("ws-1", "alice")
	ws.Members = append(ws.Members, domain.Member{UserID: "bob", Role: domain.RoleContributor})
	require.Error(t, st.Create(ctx, ws), "creating with more than the owner should fail")

	ws = newWorkspace("ws-1", "alice")
	ws.Members[0].Role = domain.RoleContributor
	require.Error(t, st.Create(ctx, ws), "creating without the owner role should fail")

	ws = newWorkspace("ws-1", "alice")
	require.NoError(t, st.Create(ctx, ws))

	snap, err := st.Snapshot(ctx, "ws-1")
	require.NoError(t, err)
	require.Len(t, snap.Members, 1)
	assert.Equal(t, "alice", snap.Members[0].UserID)
	assert.Equal(t, domain.RoleOwner, snap.Members[0].Role)
}

func TestStore_Create_DuplicateID(t *testing.T) {
	st := store.New()
	ctx := context.Background()

	require.NoError(t, st.Create(ctx, newWorkspace("ws-1", "alice")))
	err := st.Create(ctx, newWorkspace("ws-1", "bob"))
	assert.ErrorIs(t, err, store.ErrWorkspaceExists)
}

func TestStore_Mutate_UnknownWorkspace(t *testing.T) {
	st := store.New()
	err := st.Mutate(context.Background(), "nope", func(ws *domain.Workspace) ([]domain.Event, error) {
		t.Fatal("mutation body must not run for an unknown workspace")
		return nil, nil
	})
	assert.ErrorIs(t, err, store.ErrWorkspaceNotFound)
}

func TestStore_Mutate_PublishesInCommitOrder(t *testing.T) {
	st := store.New()
	notifier := &recordingNotifier{}
	st.SetNotifier(notifier)
	ctx := context.Background()
	require.NoError(t, st.Create(ctx, newWorkspace("ws-1", "alice")))

	err := st.Mutate(ctx, "ws-1", func(ws *domain.Workspace) ([]domain.Event, error) {
		return []domain.Event{
			{Kind: domain.EventMemberAdded, WorkspaceID: ws.ID},
			{Kind: domain.EventInviteResolved, WorkspaceID: ws.ID},
		}, nil
	})
	require.NoError(t, err)

	events := notifier.all()
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventMemberAdded, events[0].Kind)
	assert.Equal(t, domain.EventInviteResolved, events[1].Kind)
}

func TestStore_Mutate_FailedMutationPublishesNothing(t *testing.T) {
	st := store.New()
	notifier := &recordingNotifier{}
	st.SetNotifier(notifier)
	ctx := context.Background()
	require.NoError(t, st.Create(ctx, newWorkspace("ws-1", "alice")))

	wantErr := assert.AnError
	err := st.Mutate(ctx, "ws-1", func(ws *domain.Workspace) ([]domain.Event, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.Empty(t, notifier.all(), "a failed mutation must not broadcast")
}

func TestStore_Mutate_TimesOutWhileSlotHeld(t *testing.T) {
	st := store.New(store.WithLockWait(20 * time.Millisecond))
	ctx := context.Background()
	require.NoError(t, st.Create(ctx, newWorkspace("ws-1", "alice")))

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = st.Mutate(ctx, "ws-1", func(ws *domain.Workspace) ([]domain.Event, error) {
			close(entered)
			<-release
			return nil, nil
		})
	}()
	<-entered

	err := st.Mutate(ctx, "ws-1", func(ws *domain.Workspace) ([]domain.Event, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, store.ErrTimeout)
	close(release)
}

func TestStore_InviteIndex_FollowsLifecycle(t *testing.T) {
	st := store.New()
	st.SetNotifier(&recordingNotifier{})
	ctx := context.Background()
	require.NoError(t, st.Create(ctx, newWorkspace("ws-1", "alice")))
	require.NoError(t, st.Create(ctx, newWorkspace("ws-2", "carol")))

	addInvite := func(wsID string, at time.Time) {
		err := st.Mutate(ctx, wsID, func(ws *domain.Workspace) ([]domain.Event, error) {
			inv := domain.Invite{WorkspaceID: wsID, InviteeID: "bob", InviterID: ws.OwnerID, CreatedAt: at}
			ws.Invites["bob"] = inv
			return []domain.Event{{Kind: domain.EventInviteCreated, WorkspaceID: wsID, Invite: &inv}}, nil
		})
		require.NoError(t, err)
	}
	base := time.Now()
	addInvite("ws-2", base.Add(time.Second))
	addInvite("ws-1", base)

	invites, err := st.InvitesForUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, invites, 2)
	assert.Equal(t, "ws-1", invites[0].WorkspaceID, "invites should come out oldest first")
	assert.Equal(t, "ws-2", invites[1].WorkspaceID)

	err = st.Mutate(ctx, "ws-1", func(ws *domain.Workspace) ([]domain.Event, error) {
		inv := ws.Invites["bob"]
		delete(ws.Invites, "bob")
		return []domain.Event{{
			Kind: domain.EventInviteResolved, WorkspaceID: ws.ID,
			Invite: &inv, Resolution: domain.InviteDeclined,
		}}, nil
	})
	require.NoError(t, err)

	invites, err = st.InvitesForUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, invites, 1)
	assert.Equal(t, "ws-2", invites[0].WorkspaceID)
}

func TestStore_Delete_RemovesStateAndRecord(t *testing.T) {
	mockRepo := new(mocks.WorkspaceRepository)
	st := store.New(store.WithRepository(mockRepo))
	ctx := context.Background()
	require.NoError(t, st.Create(ctx, newWorkspace("ws-1", "alice")))

	mockRepo.On("Delete", ctx, "ws-1").Return(nil).Once()
	require.NoError(t, st.Delete(ctx, "ws-1"))

	mockRepo.On("FindByID", ctx, "ws-1").Return(nil, repository.ErrWorkspaceNotFound).Once()
	_, err := st.Snapshot(ctx, "ws-1")
	assert.ErrorIs(t, err, store.ErrWorkspaceNotFound)

	assert.ErrorIs(t, st.Delete(ctx, "ws-1"), store.ErrWorkspaceNotFound)
	mockRepo.AssertExpectations(t)
}

// A delete overlapping an in-flight invite mutation must not wedge the
// registry: the mutation holds the workspace lock and touches the invite
// index, while the delete needs both the registry and the workspace.
func TestStore_Delete_DoesNotStallRegistryDuringInviteMutation(t *testing.T) {
	st := store.New()
	st.SetNotifier(&recordingNotifier{})
	ctx := context.Background()
	require.NoError(t, st.Create(ctx, newWorkspace("ws-1", "alice")))

	entered := make(chan struct{})
	release := make(chan struct{})
	mutateDone := make(chan error, 1)
	go func() {
		mutateDone <- st.Mutate(ctx, "ws-1", func(ws *domain.Workspace) ([]domain.Event, error) {
			close(entered)
			<-release
			inv := domain.Invite{WorkspaceID: ws.ID, InviteeID: "bob", InviterID: "alice", CreatedAt: time.Now()}
			ws.Invites["bob"] = inv
			return []domain.Event{{Kind: domain.EventInviteCreated, WorkspaceID: ws.ID, Invite: &inv}}, nil
		})
	}()
	<-entered

	deleteDone := make(chan error, 1)
	go func() { deleteDone <- st.Delete(ctx, "ws-1") }()

	// Unrelated workspaces must stay reachable while the delete waits out the
	// held workspace.
	createDone := make(chan error, 1)
	go func() { createDone <- st.Create(ctx, newWorkspace("ws-2", "carol")) }()
	select {
	case err := <-createDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("creating an unrelated workspace blocked behind a delete")
	}

	close(release)
	select {
	case err := <-deleteDone:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("delete never completed")
	}
	select {
	case err := <-mutateDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("mutation never completed")
	}

	// The delete swept bob's index entry even though the invite landed while
	// the teardown was in flight.
	invites, err := st.InvitesForUser(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, invites)
}

func TestStore_ColdLoad_FromRepository(t *testing.T) {
	ctx := context.Background()

	ws := newWorkspace("ws-1", "alice")
	ws.Invites["bob"] = domain.Invite{WorkspaceID: "ws-1", InviteeID: "bob", InviterID: "alice", CreatedAt: time.Now()}
	state, err := store.EncodeState(ws)
	require.NoError(t, err)

	mockRepo := new(mocks.WorkspaceRepository)
	mockRepo.On("FindByID", ctx, "ws-1").
		Return(&domain.WorkspaceRecord{ID: "ws-1", OwnerID: "alice", Name: ws.Name, State: state}, nil).
		Once()

	st := store.New(store.WithRepository(mockRepo))
	snap, err := st.Snapshot(ctx, "ws-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", snap.OwnerID)
	require.Len(t, snap.Invites, 1)
	assert.Equal(t, "bob", snap.Invites[0].InviteeID)

	// The loaded workspace stays in memory; a second read must not hit the
	// repository again. The invite index is rebuilt from the loaded state.
	_, err = st.Snapshot(ctx, "ws-1")
	require.NoError(t, err)
	invites, err := st.InvitesForUser(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, invites, 1)
	mockRepo.AssertExpectations(t)
}

func TestStore_PersistHook_CalledAfterMutation(t *testing.T) {
	var mu sync.Mutex
	var flushed []string
	st := store.New(store.WithPersistHook(func(workspaceID string) {
		mu.Lock()
		flushed = append(flushed, workspaceID)
		mu.Unlock()
	}))
	ctx := context.Background()

	require.NoError(t, st.Create(ctx, newWorkspace("ws-1", "alice")))
	err := st.Mutate(ctx, "ws-1", func(ws *domain.Workspace) ([]domain.Event, error) {
		ws.Name = "renamed"
		return nil, nil
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"ws-1", "ws-1"}, flushed, "create and mutate should each trigger a flush")
}
