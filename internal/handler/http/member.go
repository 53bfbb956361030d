package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pandeypooja21/code-sync/internal/service"
)

// MemberHandler serves the membership registry endpoints.
type MemberHandler struct {
	memberService *service.MemberService
}

// NewMemberHandler creates a MemberHandler instance.
func NewMemberHandler(memberService *service.MemberService) *MemberHandler {
	if memberService == nil {
		panic("MemberService cannot be nil for MemberHandler")
	}
	return &MemberHandler{memberService: memberService}
}

// List handles GET /api/workspaces/:id/members.
func (h *MemberHandler) List(c *gin.Context) {
	if _, ok := callerIdentity(c); !ok {
		return
	}
	members, err := h.memberService.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"members": members})
}

// Remove handles DELETE /api/workspaces/:id/members/:userId. Contributors may
// remove themselves; the owner may remove any contributor.
func (h *MemberHandler) Remove(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}
	err := h.memberService.Remove(c.Request.Context(), c.Param("id"), identity, c.Param("userId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Member removed"})
}
