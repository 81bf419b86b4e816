package realtime

import (
	"context"
	"sync"

	"github.com/gofiber/websocket/v2"
)

// BroadcastMessage packages a payload for a tenant-scoped broadcast.
type BroadcastMessage struct {
	TenantID string
	Payload  []byte
}

// Hub manages active sessions and tenant-scoped broadcasts. It is created
// at service start, run until the root context is cancelled, and injected
// wherever fanout is needed.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan BroadcastMessage
	done       chan struct{}
}

// NewHub builds a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan BroadcastMessage),
		done:       make(chan struct{}),
	}
}

// Run starts the hub loop and blocks until ctx is cancelled. All remaining
// sessions are closed on shutdown, and once the loop exits every hub
// operation becomes a no-op instead of blocking on an unread channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				close(client.Send)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				if client.TenantID() != message.TenantID {
					continue
				}
				select {
				case client.Send <- message.Payload:
				default:
					// slow consumer, drop the session
					delete(h.clients, client)
					close(client.Send)
				}
			}
		}
	}
}

// Broadcast sends a payload to every session joined to the tenant's group
// and to no other group. Delivery is best-effort; after shutdown the
// message is dropped.
func (h *Hub) Broadcast(tenantID string, payload []byte) {
	select {
	case h.broadcast <- BroadcastMessage{TenantID: tenantID, Payload: payload}:
	case <-h.done:
	}
}

// Register adds a session to the hub.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes a session from the hub.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Client represents one websocket session. A session belongs to at most one
// tenant group, joined explicitly after authenticating; until then its
// tenant id is empty and no broadcast matches it.
type Client struct {
	Conn *websocket.Conn
	Hub  *Hub
	Send chan []byte

	mu       sync.RWMutex
	tenantID string
}

// NewClient returns a client ready for registration.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		Conn: conn,
		Hub:  hub,
		Send: make(chan []byte, 256),
	}
}

// TenantID returns the tenant group the session has joined, if any.
func (c *Client) TenantID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tenantID
}

// SetTenantID records the joined tenant group.
func (c *Client) SetTenantID(tenantID string) {
	c.mu.Lock()
	c.tenantID = tenantID
	c.mu.Unlock()
}
