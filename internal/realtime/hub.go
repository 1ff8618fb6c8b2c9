// internal/realtime/hub.go
package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/localserve/internal/metrics"
)

// Event is the envelope written to websocket clients.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Pusher delivers real-time events. Delivery is best effort.
type Pusher interface {
	PushToUser(userID uuid.UUID, event string, payload any)
	PushToConversation(clientID, providerID uuid.UUID, event string, payload any)
}

// Disconnector drops the live connections of a user.
type Disconnector interface {
	DisconnectUser(userID uuid.UUID) int
}

type Client struct {
	ID     string
	UserID uuid.UUID
	Conn   *WebSocketConn
	Send   chan []byte
}

type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	metrics    *metrics.Collector
}

func NewHub(m *metrics.Collector) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		metrics:    m,
	}
}

func (h *Hub) RegisterClient(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// PushToUser sends an event to every connection of userID.
func (h *Hub) PushToUser(userID uuid.UUID, event string, payload any) {
	b, err := json.Marshal(Event{Type: event, Data: payload})
	if err != nil {
		log.Printf("Error marshaling %s event: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if client.UserID == userID {
			select {
			case client.Send <- b:
			default:
				// kalau penuh, skip (jangan block)
			}
		}
	}
}

// PushToConversation sends an event to both participants.
func (h *Hub) PushToConversation(clientID, providerID uuid.UUID, event string, payload any) {
	h.PushToUser(clientID, event, payload)
	h.PushToUser(providerID, event, payload)
}

// DisconnectUser closes every connection of userID and reports how many
// there were. The websocket writer sees Send closed and hangs up.
func (h *Hub) DisconnectUser(userID uuid.UUID) int {
	h.mu.Lock()
	n := 0
	for id, client := range h.clients {
		if client.UserID == userID {
			close(client.Send)
			delete(h.clients, id)
			n++
		}
	}
	left := len(h.clients)
	h.mu.Unlock()

	if n > 0 {
		h.metrics.SetWSClients(left)
		log.Printf("Disconnected %d client(s) of user %s", n, userID)
	}
	return n
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run owns registration until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetWSClients(n)
			log.Printf("Client registered: %s (UserID: %s)", client.ID, client.UserID)

		case client := <-h.unregister:
			h.mu.Lock()
			if old, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(old.Send)
				log.Printf("Client unregistered: %s", client.ID)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetWSClients(n)

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.Send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			h.metrics.SetWSClients(0)
			return
		}
	}
}
