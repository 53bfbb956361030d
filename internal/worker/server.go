// Package worker runs the asynq server that executes background persistence
// tasks off the request path.
package worker

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/pandeypooja21/code-sync/internal/repository"
	"github.com/pandeypooja21/code-sync/internal/store"
	"github.com/pandeypooja21/code-sync/internal/tasks"
)

// WorkerServer wraps the asynq server lifecycle.
type WorkerServer struct {
	server *asynq.Server
	log    *logrus.Entry
	store  *store.Store
	repo   repository.WorkspaceRepository
}

// NewWorkerServer creates a WorkerServer instance.
func NewWorkerServer(redisOpt asynq.RedisClientOpt, st *store.Store, repo repository.WorkspaceRepository, logger *logrus.Logger) *WorkerServer {
	logEntry := logger.WithField("component", "worker_server")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_type": task.Type(),
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).Errorf("Task failed: %v", err)
			}),
		},
	)

	return &WorkerServer{
		server: server,
		log:    logEntry,
		store:  st,
		repo:   repo,
	}
}

// Start runs the worker server. It should be called in its own goroutine.
func (ws *WorkerServer) Start() {
	mux := asynq.NewServeMux()

	persistHandler := NewPersistHandler(ws.store, ws.repo)
	mux.HandleFunc(tasks.TypeWorkspacePersist, persistHandler.ProcessPersist)
	mux.HandleFunc(tasks.TypeWorkspaceFlushAll, persistHandler.ProcessFlushAll)

	ws.log.Info("Worker server starting...")
	if err := ws.server.Run(mux); err != nil {
		if !errors.Is(err, asynq.ErrServerClosed) {
			ws.log.Fatalf("Could not run worker server: %v", err)
		}
		ws.log.Info("Worker server stopped")
	}
}

// Shutdown stops the worker server gracefully.
func (ws *WorkerServer) Shutdown() {
	ws.log.Info("Shutting down worker server...")
	ws.server.Shutdown()
	ws.log.Info("Worker server shut down")
}
