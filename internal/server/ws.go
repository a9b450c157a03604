package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/colonyops/holdpoint/internal/core/eventbus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024 * 16,
	WriteBufferSize: 1024 * 16,
	CheckOrigin: func(r *http.Request) bool {
		return true // local-only server
	},
}

// WebSocket message types pushed to clients.
const (
	wsMsgSessionCreated   = "session_created"
	wsMsgSessionCompleted = "session_completed"
	wsMsgSessionCancelled = "session_cancelled"
	wsMsgCommentAdded     = "comment_added"
	wsMsgCommentDeleted   = "comment_deleted"
)

// wsMessage is the envelope for events pushed to clients.
type wsMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	// sessionID filters events; empty receives everything.
	sessionID string
	// writeMu serializes writes; the hub broadcasts from the bus dispatch
	// goroutine while pings may come from elsewhere.
	writeMu sync.Mutex
}

func (c *wsClient) send(msg wsMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

// wsHub fans bus events out to connected review pages.
type wsHub struct {
	log zerolog.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func newWSHub(bus *eventbus.EventBus, logger zerolog.Logger) *wsHub {
	h := &wsHub{
		log:     logger,
		clients: make(map[*wsClient]struct{}),
	}

	bus.SubscribeSessionCreated(func(p eventbus.SessionCreatedPayload) {
		h.broadcast(p.Session.ID, wsMsgSessionCreated, p.Session)
	})
	bus.SubscribeSessionCompleted(func(p eventbus.SessionCompletedPayload) {
		h.broadcast(p.SessionID, wsMsgSessionCompleted, p.Result)
	})
	bus.SubscribeSessionCancelled(func(p eventbus.SessionCancelledPayload) {
		h.broadcast(p.SessionID, wsMsgSessionCancelled, map[string]string{"reason": p.Reason})
	})
	bus.SubscribeCommentAdded(func(p eventbus.CommentAddedPayload) {
		h.broadcast(p.SessionID, wsMsgCommentAdded, p.Comment)
	})
	bus.SubscribeCommentDeleted(func(p eventbus.CommentDeletedPayload) {
		h.broadcast(p.SessionID, wsMsgCommentDeleted, map[string]string{"comment_id": p.CommentID})
	})

	return h
}

func (h *wsHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &wsClient{
		conn:      conn,
		sessionID: r.URL.Query().Get("session"),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, client)
		h.mu.Unlock()
		_ = conn.Close()
	}()

	// Clients only listen; the read loop exists to detect disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Msg("websocket read")
			}
			return
		}
	}
}

func (h *wsHub) broadcast(sessionID, msgType string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.log.Error().Err(err).Str("type", msgType).Msg("marshal ws event")
		return
	}
	msg := wsMessage{Type: msgType, SessionID: sessionID, Data: raw}

	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		if c.sessionID == "" || c.sessionID == sessionID {
			clients = append(clients, c)
		}
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.send(msg); err != nil {
			h.log.Debug().Err(err).Msg("websocket write failed")
		}
	}
}
