package server

import (
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/nusantaramap/internal/search"
)

// EventType tags messages pushed to WebSocket clients.
type EventType string

const (
	EventHello         EventType = "hello"
	EventState         EventType = "state"
	EventView          EventType = "view"
	EventSearchResults EventType = "search_results"
	EventError         EventType = "error"
)

// Event is one server-to-client WebSocket message.
type Event struct {
	Type     EventType       `json:"type"`
	ClientID string          `json:"client_id,omitempty"`
	State    *Snapshot       `json:"state,omitempty"`
	View     *ViewState      `json:"view,omitempty"`
	Query    string          `json:"query,omitempty"`
	Results  []search.Result `json:"results,omitzero"`
	Error    string          `json:"error,omitempty"`
}

// sendBuffer is the per-client queue length. Events beyond it are dropped for
// that client.
const sendBuffer = 64

type client struct {
	id     string
	send   chan Event
	mu     sync.Mutex
	closed bool
}

func newClient(id string) *client {
	return &client{id: id, send: make(chan Event, sendBuffer)}
}

// push queues ev without blocking. It reports false when the event was dropped.
func (c *client) push(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub fans events out to connected WebSocket clients.
type Hub struct {
	clients map[string]*client
	logger  *slog.Logger
	mu      sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{clients: make(map[string]*client), logger: logger}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	h.log().Debug("websocket client connected", "client_id", c.id, "clients", n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()

	c.close()
	h.log().Debug("websocket client disconnected", "client_id", c.id, "clients", n)
}

// Broadcast queues ev for every client. It never blocks on a slow client.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, c := range h.clients {
		if !c.push(ev) {
			h.log().Warn("dropping event for slow websocket client", "client_id", id, "type", ev.Type)
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}
