package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pandeypooja21/code-sync/internal/domain"
	"github.com/pandeypooja21/code-sync/internal/store"
)

var (
	alice = domain.Identity{UserID: "alice", DisplayName: "Alice"}
	bob   = domain.Identity{UserID: "bob", DisplayName: "Bob"}
	carol = domain.Identity{UserID: "carol", DisplayName: "Carol"}
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

func (r *recordingNotifier) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func newEmptyStore() *store.Store {
	st := store.New()
	st.SetNotifier(&recordingNotifier{})
	return st
}

// newStoreWithWorkspace seeds a store with one workspace owned by the given
// identity and returns the store, the workspace id and the notifier.
func newStoreWithWorkspace(t *testing.T, owner domain.Identity) (*store.Store, string, *recordingNotifier) {
	t.Helper()
	st := store.New()
	notifier := &recordingNotifier{}
	st.SetNotifier(notifier)

	now := time.Now()
	ws := &domain.Workspace{
		ID:        "ws-" + owner.UserID,
		Name:      "test workspace",
		OwnerID:   owner.UserID,
		CreatedAt: now,
		Members: []domain.Member{{
			UserID:      owner.UserID,
			DisplayName: owner.DisplayName,
			Role:        domain.RoleOwner,
			JoinedAt:    now,
		}},
		Invites: make(map[string]domain.Invite),
		Nodes:   make(map[string]*domain.Node),
	}
	require.NoError(t, st.Create(context.Background(), ws))
	notifier.reset()
	return st, ws.ID, notifier
}
