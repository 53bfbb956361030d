// Package hub fans state-change events out to every subscriber of a
// workspace. A subscriber joining mid-session first receives a full snapshot
// built under the workspace read lock, then incremental events in commit
// order; publishing never blocks the mutation path.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pandeypooja21/code-sync/internal/domain"
	"github.com/pandeypooja21/code-sync/internal/presence"
	"github.com/pandeypooja21/code-sync/internal/store"
)

// ErrNotMember means the subscriber is not a member of the workspace.
var ErrNotMember = errors.New("hub: caller is not a workspace member")

// bucket holds the subscriber set of one workspace. seq is the per-workspace
// event sequence, advanced under the bucket lock so subscribers observe
// events in the order mutations committed.
type bucket struct {
	mu      sync.Mutex
	seq     uint64
	clients map[*Client]bool
}

// Hub maintains the per-workspace subscriber sets. It implements the Notifier
// contract of both the workspace store and the presence tracker.
type Hub struct {
	mu         sync.RWMutex
	workspaces map[string]*bucket

	store    *store.Store
	presence *presence.Tracker
}

// NewHub creates a Hub. The store and tracker are needed to build the initial
// snapshot for joining subscribers.
func NewHub(st *store.Store, tracker *presence.Tracker) *Hub {
	if st == nil {
		panic("Store cannot be nil for Hub")
	}
	if tracker == nil {
		panic("presence Tracker cannot be nil for Hub")
	}
	return &Hub{
		workspaces: make(map[string]*bucket),
		store:      st,
		presence:   tracker,
	}
}

// Publish delivers events to every subscriber of the workspace. The store
// calls this while holding the workspace write lock, which is what makes the
// sequence numbers match commit order; delivery to each subscriber is a
// non-blocking send so a slow consumer only ever costs itself events.
func (h *Hub) Publish(workspaceID string, events ...domain.Event) {
	h.mu.RLock()
	b, ok := h.workspaces[workspaceID]
	h.mu.RUnlock()
	if !ok {
		// No subscribers; joiners reconcile through the snapshot.
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range events {
		b.seq++
		events[i].Seq = b.seq
		data, err := json.Marshal(events[i])
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"workspace_id": workspaceID,
				"event_kind":   events[i].Kind,
			}).Error("Failed to marshal event, skipping broadcast")
			continue
		}
		for client := range b.clients {
			select {
			case client.send <- data:
			default:
				// Buffer full: drop this event for this subscriber. Its next
				// snapshot (on reconnect) reconciles; nobody else waits.
				logrus.WithFields(logrus.Fields{
					"workspace_id": workspaceID,
					"user_id":      client.identity.UserID,
					"event_kind":   events[i].Kind,
				}).Warn("Subscriber send buffer full, dropping event")
			}
		}
	}
}

// Register subscribes a client to its workspace. The snapshot is built and
// queued while the workspace read lock is held, so no event committed after
// the snapshot can be missed and none committed before it can be replayed.
func (h *Hub) Register(ctx context.Context, client *Client) error {
	if client == nil {
		return errors.New("hub: cannot register nil client")
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"workspace_id": client.workspaceID,
		"user_id":      client.identity.UserID,
	})

	err := h.store.View(ctx, client.workspaceID, func(ws *domain.Workspace) error {
		if !ws.IsMember(client.identity.UserID) {
			return ErrNotMember
		}
		snap := store.BuildSnapshot(ws)
		snap.Cursors = h.presence.Snapshot(client.workspaceID, client.identity.UserID)

		// The bucket lookup and the membership insert happen under h.mu as one
		// step. Unregister deletes an emptied bucket under the same lock, so a
		// client can never land in a bucket that is no longer in the map.
		h.mu.Lock()
		defer h.mu.Unlock()
		b, ok := h.workspaces[client.workspaceID]
		if !ok {
			b = &bucket{clients: make(map[*Client]bool)}
			h.workspaces[client.workspaceID] = b
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		b.seq++
		event := domain.Event{
			Kind:        domain.EventSnapshot,
			Seq:         b.seq,
			WorkspaceID: client.workspaceID,
			Snapshot:    snap,
		}
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		// The send buffer is freshly created and empty, so this cannot block
		// while the locks are held.
		client.send <- data
		b.clients[client] = true
		return nil
	})
	if err != nil {
		return err
	}
	logCtx.Info("Subscriber registered, snapshot queued")
	return nil
}

// Unregister removes a client from its workspace and releases its resources.
// Safe to call more than once; the read pump calls it on every exit path.
func (h *Hub) Unregister(client *Client) {
	if client == nil {
		return
	}
	h.mu.Lock()
	b, ok := h.workspaces[client.workspaceID]
	if ok {
		b.mu.Lock()
		delete(b.clients, client)
		empty := len(b.clients) == 0
		b.mu.Unlock()
		if empty {
			delete(h.workspaces, client.workspaceID)
		}
	}
	h.mu.Unlock()

	client.closeSend()
	// Drop the cursor right away instead of waiting out the staleness window.
	h.presence.Remove(client.workspaceID, client.identity.UserID)
	logrus.WithFields(logrus.Fields{
		"workspace_id": client.workspaceID,
		"user_id":      client.identity.UserID,
	}).Info("Subscriber unregistered")
}

// CloseWorkspace disconnects every subscriber of a workspace. Called when the
// owner deletes the workspace.
func (h *Hub) CloseWorkspace(workspaceID string) {
	h.mu.Lock()
	b, ok := h.workspaces[workspaceID]
	if ok {
		delete(h.workspaces, workspaceID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	b.mu.Lock()
	clients := make([]*Client, 0, len(b.clients))
	for client := range b.clients {
		clients = append(clients, client)
	}
	b.clients = make(map[*Client]bool)
	b.mu.Unlock()

	for _, client := range clients {
		client.closeSend()
	}
	logrus.WithFields(logrus.Fields{
		"workspace_id": workspaceID,
		"subscribers":  len(clients),
	}).Info("Workspace subscriptions closed")
}

// SubscriberCount reports the number of active subscribers of a workspace.
func (h *Hub) SubscriberCount(workspaceID string) int {
	h.mu.RLock()
	b, ok := h.workspaces[workspaceID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}
