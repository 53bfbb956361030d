// Package websocket upgrades subscribe requests into long-lived push
// channels bound to one workspace.
package websocket

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/pandeypooja21/code-sync/internal/hub"
	"github.com/pandeypooja21/code-sync/internal/middleware"
	"github.com/pandeypooja21/code-sync/internal/presence"
	"github.com/pandeypooja21/code-sync/internal/store"
)

// Handler upgrades connections and registers subscribers with the hub.
type Handler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
	tracker  *presence.Tracker
}

// NewHandler creates a websocket Handler instance.
func NewHandler(h *hub.Hub, tracker *presence.Tracker, allowedOrigin string) *Handler {
	if h == nil {
		panic("Hub cannot be nil for websocket Handler")
	}
	if tracker == nil {
		panic("presence Tracker cannot be nil for websocket Handler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}
	return &Handler{upgrader: upgrader, hub: h, tracker: tracker}
}

// Subscribe handles GET /ws/workspace/:id. The server sends one full
// snapshot event, then incremental events until the client disconnects; the
// client reconnects and re-subscribes to obtain a fresh snapshot after any
// channel close.
func (h *Handler) Subscribe(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		logrus.Warn("WS Handler: identity missing from context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	workspaceID := c.Param("id")
	logCtx := logrus.WithFields(logrus.Fields{
		"workspace_id": workspaceID,
		"user_id":      identity.UserID,
	})

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}

	client := hub.NewClient(h.hub, conn, workspaceID, identity, h.tracker)
	if err := h.hub.Register(c.Request.Context(), client); err != nil {
		switch {
		case errors.Is(err, store.ErrWorkspaceNotFound):
			logCtx.Warn("WS Handler: Workspace not found")
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "workspace not found"),
				closeDeadline())
		case errors.Is(err, hub.ErrNotMember):
			logCtx.Warn("WS Handler: Caller is not a member")
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "not a workspace member"),
				closeDeadline())
		default:
			logCtx.WithError(err).Error("WS Handler: Failed to register subscriber")
		}
		conn.Close()
		return
	}

	client.Run()
	logCtx.Info("WS Handler: Subscriber connected")
}

func closeDeadline() time.Time { return time.Now().Add(time.Second) }
