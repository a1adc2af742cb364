package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/krshsl/interviewcoach/backend/models"
	ws "github.com/krshsl/interviewcoach/backend/websocket"
)

// Inbound frames
const clientAnswer = "answer"

type clientFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type WebSocketHandler struct {
	sessions *SessionService
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(sessions *SessionService, hub *ws.Hub, allowedOrigins string) *WebSocketHandler {
	return &WebSocketHandler{
		sessions: sessions,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return CheckOrigin(r, allowedOrigins)
			},
		},
	}
}

// RegisterSessionRoutes registers the live chat route inside the /sessions subrouter
func (h *WebSocketHandler) RegisterSessionRoutes(r chi.Router) {
	r.Get("/{id}/ws", h.ServeSession)
}

// ServeSession upgrades the request and streams the session's events until the client leaves
func (h *WebSocketHandler) ServeSession(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	session, err := h.sessions.load(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err, "session_id", session.ID)
		return
	}

	slog.Info("WebSocket connection established", "user_id", user.ID, "session_id", session.ID)

	ctx := context.WithoutCancel(r.Context())
	client := h.hub.Register(conn, user.ID, session.ID, func(c *ws.Client, data []byte) {
		h.handleFrame(ctx, user, c, data)
	})
	client.SendJSON(SessionEvent{Type: EventStatus, Status: session.Status})
	client.Serve()

	slog.Info("WebSocket connection closed", "user_id", user.ID, "session_id", session.ID)
}

func (h *WebSocketHandler) handleFrame(ctx context.Context, user *models.User, c *ws.Client, data []byte) {
	var frame clientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.SendJSON(SessionEvent{Type: EventError, Error: "invalid message"})
		return
	}

	switch frame.Type {
	case clientAnswer:
		// The reply and status changes reach every client through the broadcaster.
		if _, err := h.sessions.Answer(ctx, user, c.SessionID, frame.Content); err != nil {
			slog.Warn("WebSocket answer rejected", "error", err, "session_id", c.SessionID, "user_id", c.UserID)
			c.SendJSON(SessionEvent{Type: EventError, Error: asError(err).Message})
		}
	default:
		c.SendJSON(SessionEvent{Type: EventError, Error: "unknown message type"})
	}
}

// CheckOrigin validates the origin of WebSocket connections against a comma-separated allow list
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	if strings.TrimSpace(allowedOriginsStr) == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	for _, allowed := range strings.Split(allowedOriginsStr, ",") {
		if strings.TrimSpace(allowed) == origin {
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}
