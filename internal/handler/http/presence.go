package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pandeypooja21/code-sync/internal/domain"
	"github.com/pandeypooja21/code-sync/internal/presence"
	"github.com/pandeypooja21/code-sync/internal/service"
	"github.com/pandeypooja21/code-sync/internal/store"
)

// PresenceHandler serves cursor reporting over plain HTTP for clients that
// have not opened the push channel. Subscribed clients normally report over
// the websocket instead.
type PresenceHandler struct {
	tracker *presence.Tracker
	store   *store.Store
}

// NewPresenceHandler creates a PresenceHandler instance.
func NewPresenceHandler(tracker *presence.Tracker, st *store.Store) *PresenceHandler {
	if tracker == nil {
		panic("presence Tracker cannot be nil for PresenceHandler")
	}
	if st == nil {
		panic("Store cannot be nil for PresenceHandler")
	}
	return &PresenceHandler{tracker: tracker, store: st}
}

// ReportRequest is the body of POST /api/workspaces/:id/cursor.
type ReportRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Report handles POST /api/workspaces/:id/cursor.
func (h *PresenceHandler) Report(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}
	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input")
		return
	}

	workspaceID := c.Param("id")
	err := h.store.View(c.Request.Context(), workspaceID, func(ws *domain.Workspace) error {
		if !ws.IsMember(identity.UserID) {
			return service.ErrUnauthorized
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrWorkspaceNotFound) {
			err = service.ErrWorkspaceNotFound
		}
		HandleServiceError(c, err)
		return
	}

	h.tracker.Report(workspaceID, identity.UserID, identity.DisplayName, req.X, req.Y)
	SuccessResponse(c, http.StatusAccepted, gin.H{"message": "Position recorded"})
}
