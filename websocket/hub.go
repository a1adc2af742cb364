package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Hub fans events out to the clients watching each interview session
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

type Client struct {
	ID        string
	UserID    string
	SessionID string

	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	handler func(*Client, []byte)
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]struct{}),
	}
}

// Run blocks until ctx is done and then disconnects every client
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for sessionID, room := range h.rooms {
		for client := range room {
			close(client.send)
		}
		delete(h.rooms, sessionID)
	}
	slog.Info("WebSocket hub stopped")
}

// Register adds a connection to the room of sessionID. handler receives every inbound frame in order.
func (h *Hub) Register(conn *websocket.Conn, userID, sessionID string, handler func(*Client, []byte)) *Client {
	client := &Client{
		ID:        uuid.New().String(),
		UserID:    userID,
		SessionID: sessionID,
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		handler:   handler,
	}

	h.mu.Lock()
	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[sessionID] = room
	}
	room[client] = struct{}{}
	h.mu.Unlock()

	slog.Info("Client registered", "client_id", client.ID, "user_id", userID, "session_id", sessionID)
	return client
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

// removeLocked drops client and closes its send channel, the caller holds h.mu
func (h *Hub) removeLocked(client *Client) {
	room, ok := h.rooms[client.SessionID]
	if !ok {
		return
	}
	if _, ok := room[client]; !ok {
		return
	}
	delete(room, client)
	close(client.send)
	if len(room) == 0 {
		delete(h.rooms, client.SessionID)
	}
	slog.Info("Client unregistered", "client_id", client.ID, "user_id", client.UserID, "session_id", client.SessionID)
}

// Broadcast sends event as JSON to every client of sessionID. Clients with a full buffer are dropped.
func (h *Hub) Broadcast(sessionID string, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal websocket event", "error", err, "session_id", sessionID)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.rooms[sessionID] {
		select {
		case client.send <- data:
		default:
			slog.Warn("Dropping slow websocket client", "client_id", client.ID, "session_id", sessionID)
			h.removeLocked(client)
		}
	}
}

// ClientCount returns the number of clients watching sessionID
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

// SendJSON queues v for this client only
func (c *Client) SendJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal websocket event", "error", err, "session_id", c.SessionID)
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.rooms[c.SessionID][c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		slog.Warn("WebSocket send buffer full", "client_id", c.ID, "session_id", c.SessionID)
	}
}

// Serve runs the write pump in the background and reads until the connection closes
func (c *Client) Serve() {
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err, "session_id", c.SessionID)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if c.handler != nil {
			c.handler(c, data)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
