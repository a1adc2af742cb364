package services

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/krshsl/interviewcoach/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		allowed string
		want    bool
	}{
		{"exact match", "http://localhost:5173", "http://localhost:5173", true},
		{"match in list", "https://app.example.com", "http://localhost:5173, https://app.example.com", true},
		{"not listed", "https://evil.example.com", "http://localhost:5173", false},
		{"empty allow list", "http://localhost:5173", "  ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			req.Header.Set("Origin", tt.origin)
			assert.Equal(t, tt.want, CheckOrigin(req, tt.allowed))
		})
	}
}

func cookieHeader(cookies []*http.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

func dialSession(t *testing.T, srv *httptest.Server, sessionID, origin string, cookies []*http.Cookie) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sessions/" + sessionID + "/ws"
	header := http.Header{}
	header.Set("Origin", origin)
	header.Set("Cookie", cookieHeader(cookies))
	return websocket.DefaultDialer.Dial(url, header)
}

func readEvent(t *testing.T, conn *websocket.Conn) SessionEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var event SessionEvent
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestWebSocketRejectsUnknownOrigin(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.register("ws-origin@example.com")
	session := startCustom(t, env, env.user("ws-origin@example.com"))
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	_, resp, err := dialSession(t, srv, session.ID, "https://evil.example.com", cookies)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebSocketHidesForeignSession(t *testing.T) {
	env := newTestEnv(t)
	env.register("ws-owner@example.com")
	other := env.register("ws-other@example.com")
	session := startCustom(t, env, env.user("ws-owner@example.com"))
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	_, resp, err := dialSession(t, srv, session.ID, "http://localhost:5173", other)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketAnswerRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.register("ws@example.com")
	session := startCustom(t, env, env.user("ws@example.com"))
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	conn, _, err := dialSession(t, srv, session.ID, "http://localhost:5173", cookies)
	require.NoError(t, err)
	defer conn.Close()

	event := readEvent(t, conn)
	assert.Equal(t, EventStatus, event.Type)
	assert.Equal(t, models.SessionActive, event.Status)

	require.NoError(t, conn.WriteJSON(clientFrame{Type: "shout", Content: "hello"}))
	event = readEvent(t, conn)
	assert.Equal(t, EventError, event.Type)
	assert.Equal(t, "unknown message type", event.Error)

	require.NoError(t, conn.WriteJSON(clientFrame{Type: clientAnswer, Content: "   "}))
	event = readEvent(t, conn)
	assert.Equal(t, EventError, event.Type)
	assert.Equal(t, "answer must not be empty", event.Error)

	require.NoError(t, conn.WriteJSON(clientFrame{Type: clientAnswer, Content: "Measure throughput and size the pool to it."}))
	event = readEvent(t, conn)
	require.Equal(t, EventMessage, event.Type)
	require.NotNil(t, event.Message)
	assert.Equal(t, models.RoleUser, event.Message.Role)

	event = readEvent(t, conn)
	require.Equal(t, EventMessage, event.Type)
	require.NotNil(t, event.Message)
	assert.Equal(t, models.RoleAssistant, event.Message.Role)
	assert.True(t, strings.HasSuffix(event.Message.Content, questionTwo))
}
