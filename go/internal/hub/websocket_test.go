package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/focusflow/go/internal/models"
	"github.com/mcdev12/focusflow/go/internal/sessions"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLookup map[string]*models.Session

func (l stubLookup) GetSessionByCode(ctx context.Context, code string) (*models.Session, error) {
	if s, ok := l[code]; ok {
		return s, nil
	}
	return nil, sessions.ErrNotFound
}

func newWSServer(t *testing.T, h *Hub, lookup SessionLookup) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewWebSocketHandler(h, lookup, DefaultConnectionConfig(), zerolog.Nop()).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session?" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		_ = resp.Body.Close()
	})
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestWebSocket_ReceivesSessionAndJoinTopics(t *testing.T) {
	h, _ := newTestHub(t, 8)
	srv := newWSServer(t, h, stubLookup{"ABC123": {Code: "ABC123"}})

	conn := dial(t, srv, "code=abc123")
	require.Eventually(t, func() bool {
		return h.Stats().Topics["session/ABC123"] == 1 && h.Stats().Topics["session/ABC123/user-joined"] == 1
	}, 2*time.Second, 10*time.Millisecond)

	h.Publish("session/ABC123", map[string]any{"status": "ACTIVE"})
	h.Publish("session/ABC123/user-joined", map[string]any{"user": "calm-otter-12"})

	var first, second Message
	readJSON(t, conn, &first)
	readJSON(t, conn, &second)
	assert.Equal(t, "session/ABC123", first.Topic)
	assert.JSONEq(t, `{"status":"ACTIVE"}`, string(first.Payload))
	assert.Equal(t, "session/ABC123/user-joined", second.Topic)
}

func TestWebSocket_SubscribeCommand(t *testing.T) {
	h, _ := newTestHub(t, 8)
	srv := newWSServer(t, h, nil)

	conn := dial(t, srv, "code=ABC123")
	require.NoError(t, conn.WriteJSON(ClientCommand{Action: "subscribe", Topic: "session/XYZ999"}))

	var ack ServerNotice
	readJSON(t, conn, &ack)
	assert.Equal(t, "subscribed", ack.Type)
	assert.Equal(t, "session/XYZ999", ack.Topic)

	h.Publish("session/XYZ999", "hello")
	var msg Message
	readJSON(t, conn, &msg)
	assert.Equal(t, "session/XYZ999", msg.Topic)

	require.NoError(t, conn.WriteJSON(ClientCommand{Action: "shout", Topic: "session/XYZ999"}))
	var notice ServerNotice
	readJSON(t, conn, &notice)
	assert.Equal(t, "error", notice.Type)
}

func TestWebSocket_DisconnectRemovesSubscriber(t *testing.T) {
	h, _ := newTestHub(t, 8)
	srv := newWSServer(t, h, nil)

	conn := dial(t, srv, "code=ABC123")
	require.Eventually(t, func() bool { return h.Stats().Subscribers == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return h.Stats().Subscribers == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_RejectsBadOrUnknownCode(t *testing.T) {
	h, _ := newTestHub(t, 8)
	handler := NewWebSocketHandler(h, stubLookup{}, DefaultConnectionConfig(), zerolog.Nop())

	w := httptest.NewRecorder()
	handler.HandleSessionConnection(w, httptest.NewRequest(http.MethodGet, "/ws/session?code=bad", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	handler.HandleSessionConnection(w, httptest.NewRequest(http.MethodGet, "/ws/session?code=ZZZZZZ", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebSocket_Stats(t *testing.T) {
	h, _ := newTestHub(t, 8)
	handler := NewWebSocketHandler(h, nil, DefaultConnectionConfig(), zerolog.Nop())
	s := h.Register("s")
	h.Subscribe(s, "session/ABC123")

	w := httptest.NewRecorder()
	handler.HandleConnectionStats(w, httptest.NewRequest(http.MethodGet, "/ws/stats", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(0), body["total_connections"])
	assert.Equal(t, float64(1), body["total_subscribers"])
}
