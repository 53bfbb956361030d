// Package store holds the authoritative in-memory workspace state. Every
// mutation of one workspace runs under that workspace's exclusive slot so
// concurrent invites, accepts and tree edits serialize without corrupting
// invariants; snapshot reads observe a consistent point-in-time view.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pandeypooja21/code-sync/internal/domain"
	"github.com/pandeypooja21/code-sync/internal/repository"
)

var (
	// ErrWorkspaceNotFound means no workspace exists under the given id.
	ErrWorkspaceNotFound = errors.New("store: workspace not found")
	// ErrWorkspaceExists means Create collided with an existing id.
	ErrWorkspaceExists = errors.New("store: workspace already exists")
	// ErrTimeout means the mutation slot could not be acquired within the
	// bounded wait. The caller may retry.
	ErrTimeout = errors.New("store: timed out waiting for workspace lock")
)

// Notifier receives the change events a mutation emits. Publish is called
// while the workspace write lock is held, so delivery order matches commit
// order; implementations must never block.
type Notifier interface {
	Publish(workspaceID string, events ...domain.Event)
}

// PersistHook is invoked after every successful mutation so a background
// worker can flush the workspace write-behind. It must not block.
type PersistHook func(workspaceID string)

// DefaultLockWait bounds how long a mutation waits for the workspace slot
// before failing with ErrTimeout.
const DefaultLockWait = 3 * time.Second

type entry struct {
	slot chan struct{} // capacity-1 semaphore serializing mutations
	mu   sync.RWMutex  // guards ws for readers
	ws   *domain.Workspace
}

func (e *entry) acquire(ctx context.Context, wait time.Duration) error {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case e.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ErrTimeout
	case <-timer.C:
		return ErrTimeout
	}
}

func (e *entry) release() { <-e.slot }

// Store is the process-wide registry of live workspaces.
type Store struct {
	mu         sync.RWMutex
	workspaces map[string]*entry
	inviteIdx  map[string]map[string]struct{} // invitee user id -> workspace ids

	notifier Notifier
	repo     repository.WorkspaceRepository // optional durable backing
	persist  PersistHook                    // optional write-behind trigger
	lockWait time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithRepository attaches a durable backing used for cold loads and deletes.
func WithRepository(repo repository.WorkspaceRepository) Option {
	return func(s *Store) { s.repo = repo }
}

// WithPersistHook attaches the write-behind trigger.
func WithPersistHook(hook PersistHook) Option {
	return func(s *Store) { s.persist = hook }
}

// WithLockWait overrides the bounded mutation wait.
func WithLockWait(wait time.Duration) Option {
	return func(s *Store) { s.lockWait = wait }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		workspaces: make(map[string]*entry),
		inviteIdx:  make(map[string]map[string]struct{}),
		lockWait:   DefaultLockWait,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetNotifier attaches the broadcast hub. Must be called before traffic;
// mutations with no notifier attached are applied silently.
func (s *Store) SetNotifier(n Notifier) { s.notifier = n }

// Create registers a new workspace. The workspace must carry its owner as
// Members[0]; the store takes ownership of the value.
func (s *Store) Create(ctx context.Context, ws *domain.Workspace) error {
	if len(ws.Members) != 1 || ws.Members[0].Role != domain.RoleOwner || ws.Members[0].UserID != ws.OwnerID {
		return fmt.Errorf("store: workspace %s must be created with exactly its owner as first member", ws.ID)
	}
	if ws.Invites == nil {
		ws.Invites = make(map[string]domain.Invite)
	}
	if ws.Nodes == nil {
		ws.Nodes = make(map[string]*domain.Node)
	}

	s.mu.Lock()
	if _, ok := s.workspaces[ws.ID]; ok {
		s.mu.Unlock()
		return ErrWorkspaceExists
	}
	s.workspaces[ws.ID] = &entry{slot: make(chan struct{}, 1), ws: ws}
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"workspace_id": ws.ID,
		"owner_id":     ws.OwnerID,
	}).Info("Workspace created")

	if s.persist != nil {
		s.persist(ws.ID)
	}
	return nil
}

// Mutate runs fn under the workspace's exclusive slot. Events returned by fn
// are published to the notifier before the write lock is released, so
// subscribers observe them in commit order. On error the workspace is left
// untouched only if fn itself left it untouched; fn must mutate after its
// validation, never before.
func (s *Store) Mutate(ctx context.Context, workspaceID string, fn func(ws *domain.Workspace) ([]domain.Event, error)) error {
	e, err := s.lookup(ctx, workspaceID)
	if err != nil {
		return err
	}
	if err := e.acquire(ctx, s.lockWait); err != nil {
		return err
	}
	defer e.release()

	e.mu.Lock()
	events, err := fn(e.ws)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	s.indexEvents(events)
	if s.notifier != nil && len(events) > 0 {
		s.notifier.Publish(workspaceID, events...)
	}
	e.mu.Unlock()

	if s.persist != nil {
		s.persist(workspaceID)
	}
	return nil
}

// View runs fn under the workspace read lock. Multiple views run
// concurrently; none observes a partially applied mutation.
func (s *Store) View(ctx context.Context, workspaceID string, fn func(ws *domain.Workspace) error) error {
	e, err := s.lookup(ctx, workspaceID)
	if err != nil {
		return err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fn(e.ws)
}

// Snapshot builds the canonical point-in-time view of a workspace. Cursor
// state is owned by the presence tracker and filled in by the hub.
func (s *Store) Snapshot(ctx context.Context, workspaceID string) (*domain.Snapshot, error) {
	var snap *domain.Snapshot
	err := s.View(ctx, workspaceID, func(ws *domain.Workspace) error {
		snap = BuildSnapshot(ws)
		return nil
	})
	return snap, err
}

// Delete tears down a workspace: in-memory state, invite index and the
// durable record. Subscription teardown is the hub's job.
func (s *Store) Delete(ctx context.Context, workspaceID string) error {
	s.mu.Lock()
	e, ok := s.workspaces[workspaceID]
	if !ok {
		s.mu.Unlock()
		return ErrWorkspaceNotFound
	}
	delete(s.workspaces, workspaceID)
	s.mu.Unlock()

	// Read the invitee set without s.mu held; an in-flight mutation may hold
	// the workspace lock while indexEvents waits on s.mu, so nesting the two
	// here would deadlock the whole registry.
	e.mu.RLock()
	invitees := make([]string, 0, len(e.ws.Invites))
	for invitee := range e.ws.Invites {
		invitees = append(invitees, invitee)
	}
	e.mu.RUnlock()

	s.mu.Lock()
	for _, invitee := range invitees {
		s.dropInviteIndex(invitee, workspaceID)
	}
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.Delete(ctx, workspaceID); err != nil {
			// The in-memory state is gone either way; a stale record only
			// costs a cold load that the next Delete cleans up.
			logrus.WithError(err).WithField("workspace_id", workspaceID).
				Warn("Failed to delete workspace record")
		}
	}
	logrus.WithField("workspace_id", workspaceID).Info("Workspace deleted")
	return nil
}

// InvitesForUser lists every pending invite addressed to the given user
// across all live workspaces.
func (s *Store) InvitesForUser(ctx context.Context, userID string) ([]domain.Invite, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.inviteIdx[userID]))
	for wsID := range s.inviteIdx[userID] {
		ids = append(ids, wsID)
	}
	s.mu.RUnlock()

	invites := make([]domain.Invite, 0, len(ids))
	for _, wsID := range ids {
		err := s.View(ctx, wsID, func(ws *domain.Workspace) error {
			if inv, ok := ws.Invites[userID]; ok {
				invites = append(invites, inv)
			}
			return nil
		})
		if err != nil && !errors.Is(err, ErrWorkspaceNotFound) {
			return nil, err
		}
	}
	sort.Slice(invites, func(i, j int) bool { return invites[i].CreatedAt.Before(invites[j].CreatedAt) })
	return invites, nil
}

// IDs returns the ids of all live workspaces.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.workspaces))
	for id := range s.workspaces {
		ids = append(ids, id)
	}
	return ids
}

// lookup resolves a live entry, cold-loading from the repository when the
// workspace is not yet in memory.
func (s *Store) lookup(ctx context.Context, workspaceID string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.workspaces[workspaceID]
	s.mu.RUnlock()
	if ok {
		return e, nil
	}
	if s.repo == nil {
		return nil, ErrWorkspaceNotFound
	}

	record, err := s.repo.FindByID(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, repository.ErrWorkspaceNotFound) {
			return nil, ErrWorkspaceNotFound
		}
		logrus.WithError(err).WithField("workspace_id", workspaceID).
			Error("Failed to load workspace record")
		return nil, fmt.Errorf("store: load workspace %s: %w", workspaceID, err)
	}
	ws, err := DecodeState(record.State)
	if err != nil {
		return nil, fmt.Errorf("store: decode workspace %s: %w", workspaceID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.workspaces[workspaceID]; ok {
		// Lost the load race; the winner's state is authoritative.
		return existing, nil
	}
	e = &entry{slot: make(chan struct{}, 1), ws: ws}
	s.workspaces[workspaceID] = e
	for invitee := range ws.Invites {
		s.addInviteIndexLocked(invitee, workspaceID)
	}
	logrus.WithField("workspace_id", workspaceID).Info("Workspace loaded from durable storage")
	return e, nil
}

// indexEvents keeps the invitee index in sync with the invite lifecycle.
func (s *Store) indexEvents(events []domain.Event) {
	for _, ev := range events {
		if ev.Invite == nil {
			continue
		}
		switch ev.Kind {
		case domain.EventInviteCreated:
			s.mu.Lock()
			s.addInviteIndexLocked(ev.Invite.InviteeID, ev.Invite.WorkspaceID)
			s.mu.Unlock()
		case domain.EventInviteResolved:
			s.mu.Lock()
			s.dropInviteIndex(ev.Invite.InviteeID, ev.Invite.WorkspaceID)
			s.mu.Unlock()
		}
	}
}

func (s *Store) addInviteIndexLocked(invitee, workspaceID string) {
	if s.inviteIdx[invitee] == nil {
		s.inviteIdx[invitee] = make(map[string]struct{})
	}
	s.inviteIdx[invitee][workspaceID] = struct{}{}
}

// dropInviteIndex requires s.mu held.
func (s *Store) dropInviteIndex(invitee, workspaceID string) {
	if set, ok := s.inviteIdx[invitee]; ok {
		delete(set, workspaceID)
		if len(set) == 0 {
			delete(s.inviteIdx, invitee)
		}
	}
}

// BuildSnapshot converts live workspace state into its canonical wire form.
// Invites and nodes come out in stable creation order.
func BuildSnapshot(ws *domain.Workspace) *domain.Snapshot {
	snap := &domain.Snapshot{
		WorkspaceID: ws.ID,
		Name:        ws.Name,
		OwnerID:     ws.OwnerID,
		Members:     append([]domain.Member(nil), ws.Members...),
		Invites:     make([]domain.Invite, 0, len(ws.Invites)),
		Nodes:       make([]domain.Node, 0, len(ws.Nodes)),
		Cursors:     []domain.CursorState{},
	}
	for _, inv := range ws.Invites {
		snap.Invites = append(snap.Invites, inv)
	}
	sort.Slice(snap.Invites, func(i, j int) bool {
		return snap.Invites[i].CreatedAt.Before(snap.Invites[j].CreatedAt)
	})
	for _, node := range ws.Nodes {
		snap.Nodes = append(snap.Nodes, *node)
	}
	sort.Slice(snap.Nodes, func(i, j int) bool {
		a, b := snap.Nodes[i], snap.Nodes[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return snap
}

// EncodeState serializes a workspace for the durable record.
func EncodeState(ws *domain.Workspace) (string, error) {
	bytes, err := json.Marshal(ws)
	if err != nil {
		return "", fmt.Errorf("store: encode workspace %s: %w", ws.ID, err)
	}
	return string(bytes), nil
}

// DecodeState restores a workspace from its durable record.
func DecodeState(state string) (*domain.Workspace, error) {
	var ws domain.Workspace
	if err := json.Unmarshal([]byte(state), &ws); err != nil {
		return nil, fmt.Errorf("store: decode workspace state: %w", err)
	}
	if ws.Invites == nil {
		ws.Invites = make(map[string]domain.Invite)
	}
	if ws.Nodes == nil {
		ws.Nodes = make(map[string]*domain.Node)
	}
	return &ws, nil
}
