package events

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"servicehub/internal/domain"
)

const writeWait = 10 * time.Second

// Message is the frame pushed to websocket subscribers.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const TypeStatusChanged = "request.status_changed"

// Subscriber is one live connection. Writes are serialised; gorilla allows one writer at a time.
type Subscriber struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *Subscriber) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

func (c *Subscriber) writeControl(messageType int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(messageType, nil, time.Now().Add(writeWait))
}

// Hub keeps one live connection per user. A newer connection replaces the older one.
type Hub struct {
	connections map[string]*Subscriber
	mutex       sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Subscriber),
	}
}

func (h *Hub) Register(userID string, ws *websocket.Conn) *Subscriber {
	c := &Subscriber{ws: ws}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	if old, exists := h.connections[userID]; exists && old != nil {
		_ = old.ws.Close()
	}
	h.connections[userID] = c
	return c
}

// Unregister drops userID only while c is still its current connection.
func (h *Hub) Unregister(userID string, c *Subscriber) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if cur, exists := h.connections[userID]; exists && cur == c {
		delete(h.connections, userID)
	}
	_ = c.ws.Close()
}

func (h *Hub) SendToUser(userID string, message interface{}) bool {
	h.mutex.RLock()
	c, exists := h.connections[userID]
	h.mutex.RUnlock()

	if !exists || c == nil {
		return false
	}

	if err := c.writeJSON(message); err != nil {
		h.Unregister(userID, c)
		return false
	}
	return true
}

// Publish pushes a lifecycle event to every recipient that is online.
func (h *Hub) Publish(_ context.Context, ev domain.RequestEvent) {
	msg := Message{Type: TypeStatusChanged, Data: ev}
	seen := make(map[string]bool, len(ev.Recipients))
	for _, userID := range ev.Recipients {
		if userID == "" || seen[userID] {
			continue
		}
		seen[userID] = true
		h.SendToUser(userID, msg)
	}
}

func (h *Hub) IsOnline(userID string) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	_, exists := h.connections[userID]
	return exists
}

func (h *Hub) OnlineCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.connections)
}

func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for userID, c := range h.connections {
		if c != nil {
			_ = c.ws.Close()
		}
		delete(h.connections, userID)
	}
}
