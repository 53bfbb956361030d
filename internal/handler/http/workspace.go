// Package http exposes the mutating operations of the synchronization engine
// as request/response endpoints. Every handler resolves the caller identity
// set by the Auth middleware, delegates to a service and maps errors
// centrally; no handler touches workspace state directly.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pandeypooja21/code-sync/internal/domain"
	"github.com/pandeypooja21/code-sync/internal/middleware"
	"github.com/pandeypooja21/code-sync/internal/service"
)

// WorkspaceHandler serves workspace lifecycle requests.
type WorkspaceHandler struct {
	workspaceService *service.WorkspaceService
}

// NewWorkspaceHandler creates a WorkspaceHandler instance.
func NewWorkspaceHandler(workspaceService *service.WorkspaceService) *WorkspaceHandler {
	if workspaceService == nil {
		panic("WorkspaceService cannot be nil for WorkspaceHandler")
	}
	return &WorkspaceHandler{workspaceService: workspaceService}
}

// callerIdentity pulls the identity the Auth middleware stored, failing the
// request if the middleware did not run.
func callerIdentity(c *gin.Context) (domain.Identity, bool) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		logrus.Warn("Handler: identity missing from context, middleware missing or failed?")
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return domain.Identity{}, false
	}
	return identity, true
}

// CreateWorkspaceRequest is the body of POST /api/workspaces.
type CreateWorkspaceRequest struct {
	Name string `json:"name" binding:"required"`
}

// Create handles POST /api/workspaces.
func (h *WorkspaceHandler) Create(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}
	var req CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: name is required")
		return
	}

	snap, err := h.workspaceService.Create(c.Request.Context(), identity, req.Name)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"workspace_id": snap.WorkspaceID,
		"user_id":      identity.UserID,
	}).Info("Handler: Workspace created")
	SuccessResponse(c, http.StatusCreated, snap)
}

// Get handles GET /api/workspaces/:id.
func (h *WorkspaceHandler) Get(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}
	snap, err := h.workspaceService.Get(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, snap)
}

// Delete handles DELETE /api/workspaces/:id.
func (h *WorkspaceHandler) Delete(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}
	if err := h.workspaceService.Delete(c.Request.Context(), identity, c.Param("id")); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Workspace deleted"})
}
