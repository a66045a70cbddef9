package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/focusflow/go/internal/models"
	"github.com/mcdev12/focusflow/go/internal/sessions"
	"github.com/rs/zerolog"
)

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024, // 1KB max message size
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins, the API is CORS-open as well
			return true
		},
	}
}

// SessionLookup resolves a session code before a connection is accepted.
type SessionLookup interface {
	GetSessionByCode(ctx context.Context, code string) (*models.Session, error)
}

// ClientCommand is a message a connected client may send.
type ClientCommand struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

// ServerNotice is written back to a client in response to a command.
type ServerNotice struct {
	Type  string `json:"type"`
	Topic string `json:"topic,omitempty"`
	Error string `json:"error,omitempty"`
}

// WebSocketHandler upgrades HTTP requests into hub subscribers
type WebSocketHandler struct {
	hub      *Hub
	sessions SessionLookup
	upgrader websocket.Upgrader
	config   ConnectionConfig
	logger   zerolog.Logger

	mu          sync.RWMutex
	connections map[*Connection]struct{}
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID   string
	Code string
	Conn *websocket.Conn
	sub  *Subscriber
	h    *WebSocketHandler

	ConnectedAt time.Time
}

// NewWebSocketHandler creates a new WebSocket handler. lookup may be nil,
// in which case any well-formed code is accepted.
func NewWebSocketHandler(h *Hub, lookup SessionLookup, config ConnectionConfig, logger zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      h,
		sessions: lookup,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		logger:      logger.With().Str("component", "websocket").Logger(),
		connections: make(map[*Connection]struct{}),
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (wh *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/session", wh.HandleSessionConnection)
	mux.HandleFunc("GET /ws/stats", wh.HandleConnectionStats)
}

// HandleSessionConnection subscribes a new connection to both topics of a session
func (wh *WebSocketHandler) HandleSessionConnection(w http.ResponseWriter, r *http.Request) {
	code, err := sessions.NormalizeCode(r.URL.Query().Get("code"))
	if err != nil {
		http.Error(w, "code is required and must be a valid session code", http.StatusBadRequest)
		return
	}

	if wh.sessions != nil {
		if _, err := wh.sessions.GetSessionByCode(r.Context(), code); err != nil {
			if errors.Is(err, sessions.ErrNotFound) {
				http.Error(w, "session not found", http.StatusNotFound)
				return
			}
			wh.logger.Error().Err(err).Str("code", code).Msg("failed to look up session")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	conn, err := wh.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		wh.logger.Error().Err(err).Str("code", code).Msg("failed to upgrade WebSocket connection")
		return
	}

	c := &Connection{
		ID:          uuid.NewString(),
		Code:        code,
		Conn:        conn,
		h:           wh,
		ConnectedAt: time.Now(),
	}
	c.sub = wh.hub.Register(c.ID)
	wh.hub.Subscribe(c.sub, sessions.SessionTopic(code))
	wh.hub.Subscribe(c.sub, sessions.UserJoinedTopic(code))
	wh.track(c)

	go c.writePump()
	go c.readPump()

	wh.logger.Info().
		Str("connection_id", c.ID).
		Str("code", code).
		Msg("WebSocket connection established")
}

// HandleConnectionStats returns statistics about active connections
func (wh *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	wh.mu.RLock()
	total := len(wh.connections)
	wh.mu.RUnlock()

	resp := struct {
		TotalConnections int `json:"total_connections"`
		Stats
	}{
		TotalConnections: total,
		Stats:            wh.hub.Stats(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		wh.logger.Error().Err(err).Msg("failed to write connection stats")
	}
}

func (wh *WebSocketHandler) track(c *Connection) {
	wh.mu.Lock()
	wh.connections[c] = struct{}{}
	wh.mu.Unlock()
}

func (wh *WebSocketHandler) untrack(c *Connection) {
	wh.mu.Lock()
	_, ok := wh.connections[c]
	delete(wh.connections, c)
	wh.mu.Unlock()

	if ok {
		wh.hub.Remove(c.sub)
		wh.logger.Info().
			Str("connection_id", c.ID).
			Str("code", c.Code).
			Msg("connection closed")
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	cfg := c.h.config
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.h.untrack(c)
	}()

	for {
		select {
		case message, ok := <-c.sub.Messages():
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				// Removed from the hub, possibly evicted for being slow
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.h.logger.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.h.logger.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	cfg := c.h.config
	defer func() {
		c.h.untrack(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(cfg.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.h.logger.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	}
}

// handleClientMessage applies subscribe and unsubscribe commands
func (c *Connection) handleClientMessage(message []byte) {
	var cmd ClientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		c.notify(ServerNotice{Type: "error", Error: "invalid command"})
		return
	}

	if !strings.HasPrefix(cmd.Topic, "session/") {
		c.notify(ServerNotice{Type: "error", Topic: cmd.Topic, Error: "unknown topic"})
		return
	}

	switch cmd.Action {
	case "subscribe":
		c.h.hub.Subscribe(c.sub, cmd.Topic)
	case "unsubscribe":
		c.h.hub.Unsubscribe(c.sub, cmd.Topic)
	default:
		c.notify(ServerNotice{Type: "error", Topic: cmd.Topic, Error: fmt.Sprintf("unknown action %q", cmd.Action)})
		return
	}

	c.h.logger.Debug().
		Str("connection_id", c.ID).
		Str("action", cmd.Action).
		Str("topic", cmd.Topic).
		Msg("client command applied")
	c.notify(ServerNotice{Type: cmd.Action + "d", Topic: cmd.Topic})
}

// notify writes a notice to the client, bypassing the hub
func (c *Connection) notify(n ServerNotice) {
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	c.h.hub.sendDirect(c.sub, data)
}
