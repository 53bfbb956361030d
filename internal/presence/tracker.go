// Package presence tracks ephemeral live-cursor state per workspace. Cursor
// positions are never persisted; a background sweep evicts entries whose age
// exceeds the staleness threshold, so a user who disconnects uncleanly still
// disappears for everyone within one sweep interval.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pandeypooja21/code-sync/internal/domain"
)

const (
	// DefaultStaleAfter is the staleness threshold: a cursor not refreshed
	// for longer than this is presumed disconnected.
	DefaultStaleAfter = 5 * time.Second
	// DefaultSweepInterval is how often the eviction scan runs.
	DefaultSweepInterval = 100 * time.Millisecond
	// DefaultMinPublishInterval bounds the broadcast rate per user. Position
	// reports arriving faster still update the stored state; only the
	// broadcast is coalesced, and the sweep flushes any state the throttle
	// suppressed, so the final position always reaches peers.
	DefaultMinPublishInterval = 50 * time.Millisecond
)

// Notifier receives cursor_update events. It must never block.
type Notifier interface {
	Publish(workspaceID string, events ...domain.Event)
}

type cursorEntry struct {
	state         domain.CursorState
	lastPublished time.Time
}

// Tracker owns all cursor state, keyed by (workspace id, user id).
type Tracker struct {
	mu      sync.RWMutex
	cursors map[string]map[string]*cursorEntry // workspace id -> user id -> entry

	notifier      Notifier
	staleAfter    time.Duration
	sweepInterval time.Duration
	minPublish    time.Duration
	now           func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithStaleAfter overrides the staleness threshold.
func WithStaleAfter(d time.Duration) Option {
	return func(t *Tracker) { t.staleAfter = d }
}

// WithSweepInterval overrides the sweep tick.
func WithSweepInterval(d time.Duration) Option {
	return func(t *Tracker) { t.sweepInterval = d }
}

// WithMinPublishInterval overrides the per-user broadcast throttle.
func WithMinPublishInterval(d time.Duration) Option {
	return func(t *Tracker) { t.minPublish = d }
}

// WithClock overrides the time source. Tests use this to drive eviction
// without sleeping.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a Tracker with the given notifier attached.
func NewTracker(notifier Notifier, opts ...Option) *Tracker {
	t := &Tracker{
		cursors:       make(map[string]map[string]*cursorEntry),
		notifier:      notifier,
		staleAfter:    DefaultStaleAfter,
		sweepInterval: DefaultSweepInterval,
		minPublish:    DefaultMinPublishInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetNotifier attaches the broadcast hub. Must be called before traffic;
// reports made with no notifier attached update state without broadcasting.
func (t *Tracker) SetNotifier(n Notifier) { t.notifier = n }

// Report upserts the cursor position for one user and broadcasts it, subject
// to the per-user throttle. The stored state always reflects the latest
// report even when the broadcast is coalesced.
func (t *Tracker) Report(workspaceID, userID, displayName string, x, y int) {
	now := t.now()
	state := domain.CursorState{
		WorkspaceID: workspaceID,
		UserID:      userID,
		X:           x,
		Y:           y,
		DisplayName: displayName,
		Color:       domain.CursorColor(userID),
		UpdatedAt:   now,
	}

	t.mu.Lock()
	byUser, ok := t.cursors[workspaceID]
	if !ok {
		byUser = make(map[string]*cursorEntry)
		t.cursors[workspaceID] = byUser
	}
	entry, ok := byUser[userID]
	if !ok {
		entry = &cursorEntry{}
		byUser[userID] = entry
	}
	entry.state = state
	publish := now.Sub(entry.lastPublished) >= t.minPublish
	if publish {
		entry.lastPublished = now
	}
	t.mu.Unlock()

	if publish && t.notifier != nil {
		t.notifier.Publish(workspaceID, domain.Event{
			Kind:        domain.EventCursorUpdate,
			WorkspaceID: workspaceID,
			Cursor:      &domain.CursorUpdate{Cursor: state},
		})
	}
}

// Remove drops a user's cursor immediately, broadcasting its disappearance.
// Called on clean disconnects so peers do not wait out the staleness window.
func (t *Tracker) Remove(workspaceID, userID string) {
	t.mu.Lock()
	byUser, ok := t.cursors[workspaceID]
	if !ok {
		t.mu.Unlock()
		return
	}
	entry, ok := byUser[userID]
	if !ok {
		t.mu.Unlock()
		return
	}
	state := entry.state
	delete(byUser, userID)
	if len(byUser) == 0 {
		delete(t.cursors, workspaceID)
	}
	t.mu.Unlock()

	if t.notifier != nil {
		t.notifier.Publish(workspaceID, domain.Event{
			Kind:        domain.EventCursorUpdate,
			WorkspaceID: workspaceID,
			Cursor:      &domain.CursorUpdate{Cursor: state, Gone: true},
		})
	}
}

// DropWorkspace discards all cursor state of a deleted workspace.
func (t *Tracker) DropWorkspace(workspaceID string) {
	t.mu.Lock()
	delete(t.cursors, workspaceID)
	t.mu.Unlock()
}

// Snapshot returns the live cursors of a workspace, excluding the caller's
// own position.
func (t *Tracker) Snapshot(workspaceID, excludeUserID string) []domain.CursorState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	byUser := t.cursors[workspaceID]
	out := make([]domain.CursorState, 0, len(byUser))
	for userID, entry := range byUser {
		if userID == excludeUserID {
			continue
		}
		out = append(out, entry.state)
	}
	return out
}

// Run drives the staleness sweep until ctx is cancelled. It should run in its
// own goroutine; the sweep holds the tracker lock only for the eviction scan
// and never blocks foreground reports.
func (t *Tracker) Run(ctx context.Context) {
	log := logrus.WithField("component", "presence_sweeper")
	ticker := time.NewTicker(t.sweepInterval)
	defer ticker.Stop()
	log.Info("Presence sweeper running")

	for {
		select {
		case <-ctx.Done():
			log.Info("Presence sweeper stopped")
			return
		case <-ticker.C:
			if evicted := t.Sweep(t.now()); evicted > 0 {
				log.WithField("evicted", evicted).Debug("Evicted stale cursors")
			}
		}
	}
}

// Sweep evicts every cursor whose age exceeds the staleness threshold and
// broadcasts the disappearances. It also re-broadcasts any surviving cursor
// whose latest report the throttle coalesced, so a user's final position
// reaches peers within one sweep interval. Returns the number of evicted
// cursors.
func (t *Tracker) Sweep(now time.Time) int {
	type broadcast struct {
		workspaceID string
		state       domain.CursorState
		gone        bool
	}
	var pending []broadcast
	var evicted int

	t.mu.Lock()
	for workspaceID, byUser := range t.cursors {
		for userID, entry := range byUser {
			if now.Sub(entry.state.UpdatedAt) > t.staleAfter {
				pending = append(pending, broadcast{workspaceID, entry.state, true})
				evicted++
				delete(byUser, userID)
				continue
			}
			if entry.state.UpdatedAt.After(entry.lastPublished) {
				pending = append(pending, broadcast{workspaceID, entry.state, false})
				entry.lastPublished = now
			}
		}
		if len(byUser) == 0 {
			delete(t.cursors, workspaceID)
		}
	}
	t.mu.Unlock()

	if t.notifier != nil {
		for _, b := range pending {
			t.notifier.Publish(b.workspaceID, domain.Event{
				Kind:        domain.EventCursorUpdate,
				WorkspaceID: b.workspaceID,
				Cursor:      &domain.CursorUpdate{Cursor: b.state, Gone: b.gone},
			})
		}
	}
	return evicted
}
