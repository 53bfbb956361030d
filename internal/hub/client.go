package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/pandeypooja21/code-sync/internal/domain"
	"github.com/pandeypooja21/code-sync/internal/presence"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Inbound traffic is only cursor
	// reports, so this stays small.
	maxMessageSize = 512

	// Outbound buffer per subscriber. Overflow drops events for this
	// subscriber only.
	sendBufferSize = 256
)

// inboundMessage is what a connected client may send over the push channel.
// Cursor reports are the only inbound traffic; everything else goes through
// the request/response API.
type inboundMessage struct {
	Type string `json:"type"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

// Client is one websocket subscriber of one workspace.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	workspaceID string
	identity    domain.Identity
	tracker     *presence.Tracker

	send      chan []byte
	closeOnce sync.Once
}

// NewClient creates a Client for an upgraded connection.
func NewClient(h *Hub, conn *websocket.Conn, workspaceID string, identity domain.Identity, tracker *presence.Tracker) *Client {
	return &Client{
		hub:         h,
		conn:        conn,
		workspaceID: workspaceID,
		identity:    identity,
		tracker:     tracker,
		send:        make(chan []byte, sendBufferSize),
	}
}

// Run starts the read and write pumps. It returns immediately; the pumps own
// the connection from here on.
func (c *Client) Run() {
	go c.writePump()
	go c.readPump()
}

// readPump consumes inbound messages until the connection dies, then
// unregisters the client. Cursor reports feed the presence tracker; the
// tracker's throttle bounds the broadcast rate regardless of how fast the
// pointer moves.
func (c *Client) readPump() {
	logCtx := logrus.WithFields(logrus.Fields{
		"workspace_id": c.workspaceID,
		"user_id":      c.identity.UserID,
	})
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
		logCtx.Debug("Read pump exited")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("Websocket read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logCtx.WithError(err).Debug("Ignoring malformed inbound message")
			continue
		}
		switch msg.Type {
		case "cursor":
			c.tracker.Report(c.workspaceID, c.identity.UserID, c.identity.DisplayName, msg.X, msg.Y)
		default:
			logCtx.WithField("message_type", msg.Type).Debug("Ignoring unknown inbound message type")
		}
	}
}

// writePump drains the send channel to the connection and keeps the
// connection alive with pings. It exits when the channel closes or a write
// fails; either way the read pump notices and unregisters.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel during unregister.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithFields(logrus.Fields{
					"workspace_id": c.workspaceID,
					"user_id":      c.identity.UserID,
				}).WithError(err).Warn("Failed to write message to websocket")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}
