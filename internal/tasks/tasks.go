// Package tasks defines the asynq task types and payloads shared between the
// enqueuing side and the worker.
package tasks

import "encoding/json"

const (
	// TypeWorkspacePersist flushes one workspace write-behind.
	TypeWorkspacePersist = "workspace:persist"
	// TypeWorkspaceFlushAll re-persists every live workspace. Scheduled
	// periodically as a safety net behind the per-mutation enqueue.
	TypeWorkspaceFlushAll = "workspace:flush_all"
)

// WorkspacePersistPayload carries the id of the workspace to flush.
type WorkspacePersistPayload struct {
	WorkspaceID string `json:"workspaceId"`
}

// NewWorkspacePersistTask builds the payload of a workspace:persist task.
func NewWorkspacePersistTask(workspaceID string) ([]byte, error) {
	return json.Marshal(WorkspacePersistPayload{WorkspaceID: workspaceID})
}

// NewWorkspaceFlushAllTask builds the (empty) payload of a
// workspace:flush_all task.
func NewWorkspaceFlushAllTask() ([]byte, error) {
	return json.Marshal(struct{}{})
}
