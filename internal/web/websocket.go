package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/spindex/spindex/internal/submission"
)

// Feed message types.
const (
	WSMsgTypeConnected    = "connected"
	WSMsgTypeStatusChange = "status_change"
)

// Client write tuning.
const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = 50 * time.Second
	wsSendBufferSize = 16
)

// WSMessage is one feed event pushed to connected dashboards.
type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// statusChangePayload mirrors the fields a dashboard needs to update a
// queue row without a follow-up fetch.
type statusChangePayload struct {
	SubmissionID  string `json:"submissionId"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	ApprovalCount int    `json:"approvalCount"`
	UpdatedAt     string `json:"updatedAt"`
}

// Hub fans status-change events out to all connected websocket clients.
// It implements moderation.StatusNotifier so it can sit directly in the
// engine's notifier fan-out.
type Hub struct {
	logger *slog.Logger

	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan *WSMessage

	mu      sync.Mutex
	clients map[*wsClient]struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates the feed hub. Run must be called for events to flow.
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		logger:     logger,
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan *WSMessage, 256),
		clients:    make(map[*wsClient]struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run is the hub's main loop. It exits when Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.close()
			}
			h.clients = make(map[*wsClient]struct{})
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()

			h.logger.Debug("Feed client connected",
				"total", total)
			c.send(&WSMessage{Type: WSMsgTypeConnected})

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.close()
			}
			total := len(h.clients)
			h.mu.Unlock()

			h.logger.Debug("Feed client disconnected",
				"total", total)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				// A client that cannot keep up is dropped
				// rather than allowed to stall the feed.
				if !c.send(msg) {
					delete(h.clients, c)
					c.close()
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop shuts the hub down and disconnects all clients.
func (h *Hub) Stop() {
	h.cancel()
}

// NotifyStatusChange implements moderation.StatusNotifier.
func (h *Hub) NotifyStatusChange(_ context.Context,
	rec submission.Record) {

	msg := &WSMessage{
		Type: WSMsgTypeStatusChange,
		Payload: statusChangePayload{
			SubmissionID:  rec.ID,
			Type:          string(rec.Type),
			Status:        string(rec.Status),
			ApprovalCount: rec.ApprovalCount(),
			UpdatedAt:     rec.UpdatedAt.UTC().Format(time.RFC3339),
		},
	}

	select {
	case h.broadcast <- msg:
	case <-h.ctx.Done():
	default:
		// Feed full; the dashboard refetches on reconnect anyway.
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed is read-only and carries no credentials, so
	// cross-origin dashboards are allowed.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWebSocket upgrades GET /ws into a feed subscription.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		hub:  s.hub,
		conn: conn,
		out:  make(chan *WSMessage, wsSendBufferSize),
		done: make(chan struct{}),
	}

	select {
	case s.hub.register <- c:
	case <-s.hub.ctx.Done():
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// wsClient is one connected feed subscriber.
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	out  chan *WSMessage

	closeOnce sync.Once
	done      chan struct{}
}

// send queues a message, reporting false if the client's buffer is full.
func (c *wsClient) send(msg *WSMessage) bool {
	select {
	case c.out <- msg:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// writePump drains the outbound queue onto the connection and keeps the
// connection alive with pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case msg := <-c.out:
			deadline := time.Now().Add(wsWriteWait)
			_ = c.conn.SetWriteDeadline(deadline)

			payload, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			err = c.conn.WriteMessage(
				websocket.TextMessage, payload,
			)
			if err != nil {
				c.disconnect()
				return
			}

		case <-ticker.C:
			deadline := time.Now().Add(wsWriteWait)
			_ = c.conn.SetWriteDeadline(deadline)

			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			if err != nil {
				c.disconnect()
				return
			}
		}
	}
}

// readPump discards inbound frames; the feed is one-way. It exists to
// process control frames and notice closed connections.
func (c *wsClient) readPump() {
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.disconnect()
			return
		}
	}
}

func (c *wsClient) disconnect() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.ctx.Done():
		c.close()
	}
}
