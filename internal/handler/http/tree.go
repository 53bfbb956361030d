package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pandeypooja21/code-sync/internal/domain"
	"github.com/pandeypooja21/code-sync/internal/service"
)

// TreeHandler serves the file tree endpoints.
type TreeHandler struct {
	treeService *service.TreeService
}

// NewTreeHandler creates a TreeHandler instance.
func NewTreeHandler(treeService *service.TreeService) *TreeHandler {
	if treeService == nil {
		panic("TreeService cannot be nil for TreeHandler")
	}
	return &TreeHandler{treeService: treeService}
}

// CreateNodeRequest is the body of POST /api/workspaces/:id/nodes. ParentID
// empty means the root level.
type CreateNodeRequest struct {
	ParentID string `json:"parentId"`
	Name     string `json:"name" binding:"required"`
	Kind     string `json:"kind" binding:"required,oneof=folder file"`
}

// Create handles POST /api/workspaces/:id/nodes.
func (h *TreeHandler) Create(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}
	var req CreateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: name and kind (folder|file) are required")
		return
	}

	node, err := h.treeService.CreateNode(c.Request.Context(), c.Param("id"), identity,
		req.ParentID, req.Name, domain.NodeKind(req.Kind))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, node)
}

// RenameNodeRequest is the body of PATCH /api/workspaces/:id/nodes/:nodeId.
type RenameNodeRequest struct {
	Name string `json:"name" binding:"required"`
}

// Rename handles PATCH /api/workspaces/:id/nodes/:nodeId.
func (h *TreeHandler) Rename(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}
	var req RenameNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: name is required")
		return
	}

	err := h.treeService.Rename(c.Request.Context(), c.Param("id"), identity, c.Param("nodeId"), req.Name)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Node renamed"})
}

// MoveNodeRequest is the body of POST /api/workspaces/:id/nodes/:nodeId/move.
// NewParentID empty moves the node to the root level.
type MoveNodeRequest struct {
	NewParentID string `json:"newParentId"`
}

// Move handles POST /api/workspaces/:id/nodes/:nodeId/move.
func (h *TreeHandler) Move(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}
	var req MoveNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input")
		return
	}

	err := h.treeService.Move(c.Request.Context(), c.Param("id"), identity, c.Param("nodeId"), req.NewParentID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Node moved"})
}

// Delete handles DELETE /api/workspaces/:id/nodes/:nodeId. Folder deletion
// cascades to all descendants.
func (h *TreeHandler) Delete(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}
	err := h.treeService.Delete(c.Request.Context(), c.Param("id"), identity, c.Param("nodeId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Node deleted"})
}

// List handles GET /api/workspaces/:id/nodes?parent=<id>: one tree level.
func (h *TreeHandler) List(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}
	nodes, err := h.treeService.List(c.Request.Context(), c.Param("id"), identity, c.Query("parent"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"nodes": nodes})
}
