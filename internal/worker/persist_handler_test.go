package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pandeypooja21/code-sync/internal/domain"
	"github.com/pandeypooja21/code-sync/internal/repository/mocks"
	"github.com/pandeypooja21/code-sync/internal/store"
	"github.com/pandeypooja21/code-sync/internal/tasks"
	"github.com/pandeypooja21/code-sync/internal/worker"
)

func seedStore(t *testing.T, st *store.Store, wsID string) {
	t.Helper()
	now := time.Now()
	err := st.Create(context.Background(), &domain.Workspace{
		ID:      wsID,
		Name:    "flush me",
		OwnerID: "alice",
		Members: []domain.Member{{UserID: "alice", Role: domain.RoleOwner, JoinedAt: now}},
		Invites: make(map[string]domain.Invite),
		Nodes:   make(map[string]*domain.Node),
	})
	require.NoError(t, err)
}

func TestPersistHandler_ProcessPersist_SavesRecord(t *testing.T) {
	st := store.New()
	seedStore(t, st, "ws-1")
	mockRepo := new(mocks.WorkspaceRepository)
	handler := worker.NewPersistHandler(st, mockRepo)
	ctx := context.Background()

	mockRepo.On("Save", ctx, mock.MatchedBy(func(record *domain.WorkspaceRecord) bool {
		if record.ID != "ws-1" || record.OwnerID != "alice" || record.Name != "flush me" {
			return false
		}
		ws, err := store.DecodeState(record.State)
		return err == nil && ws.IsMember("alice")
	})).Return(nil).Once()

	payload, err := tasks.NewWorkspacePersistTask("ws-1")
	require.NoError(t, err)
	task := asynq.NewTask(tasks.TypeWorkspacePersist, payload)

	require.NoError(t, handler.ProcessPersist(ctx, task))
	mockRepo.AssertExpectations(t)
}

func TestPersistHandler_ProcessPersist_WorkspaceGone(t *testing.T) {
	st := store.New()
	mockRepo := new(mocks.WorkspaceRepository)
	handler := worker.NewPersistHandler(st, mockRepo)

	payload, err := tasks.NewWorkspacePersistTask("deleted-meanwhile")
	require.NoError(t, err)
	task := asynq.NewTask(tasks.TypeWorkspacePersist, payload)

	// Deleted between enqueue and flush: nothing to do, no retry.
	assert.NoError(t, handler.ProcessPersist(context.Background(), task))
	mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestPersistHandler_ProcessPersist_MalformedPayload(t *testing.T) {
	st := store.New()
	handler := worker.NewPersistHandler(st, new(mocks.WorkspaceRepository))

	task := asynq.NewTask(tasks.TypeWorkspacePersist, []byte("{not json"))
	err := handler.ProcessPersist(context.Background(), task)
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry, "an unparsable payload must not be retried")
}

func TestPersistHandler_ProcessFlushAll(t *testing.T) {
	st := store.New()
	seedStore(t, st, "ws-1")
	seedStore(t, st, "ws-2")
	mockRepo := new(mocks.WorkspaceRepository)
	handler := worker.NewPersistHandler(st, mockRepo)
	ctx := context.Background()

	mockRepo.On("Save", ctx, mock.AnythingOfType("*domain.WorkspaceRecord")).Return(nil).Twice()

	task := asynq.NewTask(tasks.TypeWorkspaceFlushAll, nil)
	require.NoError(t, handler.ProcessFlushAll(ctx, task))
	mockRepo.AssertExpectations(t)
}

func TestPersistHandler_ProcessFlushAll_ReportsFailures(t *testing.T) {
	st := store.New()
	seedStore(t, st, "ws-1")
	mockRepo := new(mocks.WorkspaceRepository)
	handler := worker.NewPersistHandler(st, mockRepo)
	ctx := context.Background()

	mockRepo.On("Save", ctx, mock.AnythingOfType("*domain.WorkspaceRecord")).Return(assert.AnError).Once()

	task := asynq.NewTask(tasks.TypeWorkspaceFlushAll, nil)
	err := handler.ProcessFlushAll(ctx, task)
	require.Error(t, err, "a failed flush must surface so asynq retries")
	mockRepo.AssertExpectations(t)
}
