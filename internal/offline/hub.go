package offline

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mmcdole/drinks/internal/domain"
)

const (
	writeWait     = 5 * time.Second
	clientBacklog = 16
)

var upgrader = websocket.Upgrader{
	// Clients are pages served through this proxy on any local host name
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// client is one connected websocket. All writes go through send so a
// single goroutine owns the connection's write side.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected clients and broadcasts proxy messages to them.
// It implements domain.Notifier.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*client
}

var _ domain.Notifier = (*Hub)(nil)

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger,
		clients: make(map[string]*client),
	}
}

// Broadcast sends msg to every client. Clients whose backlog is full miss
// the message rather than blocking the proxy.
func (h *Hub) Broadcast(msg domain.ClientMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("client backlog full, dropping message", "client", c.id, "type", msg.Type)
		}
	}
	h.logger.Info("broadcast", "type", msg.Type, "clients", len(h.clients))
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(conn *websocket.Conn) *client {
	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, clientBacklog),
	}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	return c
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	h.mu.Unlock()
}

// Serve upgrades the request and runs the connection until it closes.
// Each text frame is a Message; replies are written on the same connection.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, proxy *Proxy) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := h.add(conn)
	logger := h.logger.With("client", c.id)
	logger.Info("client connected", "clients", h.ClientCount())

	done := make(chan struct{})
	go h.writeLoop(c, done)

	defer func() {
		h.remove(c)
		<-done
		conn.Close()
		logger.Info("client disconnected", "clients", h.ClientCount())
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket error", "error", err)
			}
			return
		}

		reply := h.dispatch(r.Context(), proxy, data)
		if reply == nil {
			continue
		}
		out, err := json.Marshal(reply)
		if err != nil {
			logger.Error("failed to encode reply", "error", err)
			continue
		}

		h.mu.RLock()
		select {
		case c.send <- out:
		default:
			logger.Warn("client backlog full, dropping reply")
		}
		h.mu.RUnlock()
	}
}

// dispatch decodes and handles one inbound frame
func (h *Hub) dispatch(ctx context.Context, proxy *Proxy, data []byte) any {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return ErrorReply{Error: "invalid message"}
	}
	reply, err := proxy.HandleMessage(ctx, msg)
	if err != nil {
		return ErrorReply{Error: err.Error()}
	}
	return reply
}

// writeLoop drains c.send until it is closed
func (h *Hub) writeLoop(c *client, done chan<- struct{}) {
	defer close(done)
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Warn("websocket write failed", "client", c.id, "error", err)
		}
	}
}
