package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/pandeypooja21/code-sync/internal/domain"
	"github.com/pandeypooja21/code-sync/internal/repository"
	"github.com/pandeypooja21/code-sync/internal/store"
	"github.com/pandeypooja21/code-sync/internal/tasks"
)

// PersistHandler flushes live workspace state into the durable repository.
// The in-memory store stays authoritative; a flush failure is retried by
// asynq and never surfaces to clients.
type PersistHandler struct {
	store *store.Store
	repo  repository.WorkspaceRepository
}

// NewPersistHandler creates a PersistHandler instance.
func NewPersistHandler(st *store.Store, repo repository.WorkspaceRepository) *PersistHandler {
	if st == nil {
		panic("Store cannot be nil for PersistHandler")
	}
	if repo == nil {
		panic("WorkspaceRepository cannot be nil for PersistHandler")
	}
	return &PersistHandler{store: st, repo: repo}
}

// ProcessPersist handles one workspace:persist task.
func (h *PersistHandler) ProcessPersist(ctx context.Context, task *asynq.Task) error {
	var payload tasks.WorkspacePersistPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		// A payload that never parses will never succeed; skip retries.
		return fmt.Errorf("unmarshal workspace:persist payload: %v: %w", err, asynq.SkipRetry)
	}
	return h.persistOne(ctx, payload.WorkspaceID)
}

// ProcessFlushAll handles the periodic workspace:flush_all task.
func (h *PersistHandler) ProcessFlushAll(ctx context.Context, _ *asynq.Task) error {
	ids := h.store.IDs()
	var failed int
	for _, id := range ids {
		if err := h.persistOne(ctx, id); err != nil {
			failed++
			logrus.WithError(err).WithField("workspace_id", id).
				Warn("Periodic flush failed for workspace")
		}
	}
	logrus.WithFields(logrus.Fields{
		"workspaces": len(ids),
		"failed":     failed,
	}).Info("Periodic workspace flush completed")
	if failed > 0 {
		return fmt.Errorf("periodic flush: %d of %d workspaces failed", failed, len(ids))
	}
	return nil
}

func (h *PersistHandler) persistOne(ctx context.Context, workspaceID string) error {
	var record *domain.WorkspaceRecord
	err := h.store.View(ctx, workspaceID, func(ws *domain.Workspace) error {
		state, err := store.EncodeState(ws)
		if err != nil {
			return err
		}
		record = &domain.WorkspaceRecord{
			ID:        ws.ID,
			OwnerID:   ws.OwnerID,
			Name:      ws.Name,
			State:     state,
			CreatedAt: ws.CreatedAt,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrWorkspaceNotFound) {
			// Deleted between enqueue and flush; nothing left to persist.
			return nil
		}
		return err
	}
	return h.repo.Save(ctx, record)
}
