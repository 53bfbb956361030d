package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pandeypooja21/code-sync/internal/service"
)

// InviteHandler serves the invite lifecycle endpoints.
type InviteHandler struct {
	inviteService *service.InviteService
}

// NewInviteHandler creates an InviteHandler instance.
func NewInviteHandler(inviteService *service.InviteService) *InviteHandler {
	if inviteService == nil {
		panic("InviteService cannot be nil for InviteHandler")
	}
	return &InviteHandler{inviteService: inviteService}
}

// CreateInviteRequest is the body of POST /api/workspaces/:id/invites.
type CreateInviteRequest struct {
	InviteeID string `json:"inviteeId" binding:"required"`
}

// Create handles POST /api/workspaces/:id/invites.
func (h *InviteHandler) Create(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}
	var req CreateInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: inviteeId is required")
		return
	}

	err := h.inviteService.Invite(c.Request.Context(), c.Param("id"), identity, req.InviteeID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, gin.H{"message": "Invite created"})
}

// Accept handles POST /api/workspaces/:id/invites/accept. The caller accepts
// their own pending invite.
func (h *InviteHandler) Accept(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}
	if err := h.inviteService.Accept(c.Request.Context(), c.Param("id"), identity); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Invite accepted"})
}

// Decline handles POST /api/workspaces/:id/invites/decline.
func (h *InviteHandler) Decline(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}
	if err := h.inviteService.Decline(c.Request.Context(), c.Param("id"), identity); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Invite declined"})
}

// Revoke handles DELETE /api/workspaces/:id/invites/:userId. Owner only.
func (h *InviteHandler) Revoke(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}
	err := h.inviteService.Revoke(c.Request.Context(), c.Param("id"), identity, c.Param("userId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Invite revoked"})
}

// ListMine handles GET /api/users/me/invites: every pending invite addressed
// to the caller, across workspaces. Backs the invite notification panel.
func (h *InviteHandler) ListMine(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}
	invites, err := h.inviteService.ListForUser(c.Request.Context(), identity)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"invites": invites})
}
