package realtime

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/flowbit/ticket-service/internal/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// clientMessage is what a connected session may send.
type clientMessage struct {
	Type     string `json:"type"`
	TenantID string `json:"tenantId"`
}

// errorMessage is pushed back on a rejected join.
type errorMessage struct {
	Event string `json:"event"`
	Error string `json:"error"`
}

// NewHandler returns the fiber handler that upgrades connections and runs
// the session pumps. The auth middleware must run before the upgrade so the
// caller identity is available for join validation.
func NewHandler(hub *Hub, logger *zap.Logger) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		identity, ok := conn.Locals(auth.IdentityKey).(*auth.Identity)
		if !ok || identity == nil {
			_ = conn.Close()
			return
		}

		client := NewClient(hub, conn)
		hub.Register(client)

		go client.writePump()
		client.readPump(identity, logger)
	})
}

// Upgrade gates the websocket route: non-upgrade requests get a 426.
func Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// readPump consumes session messages. Joining a tenant group is an explicit
// step and is validated against the session's own token tenant; a session
// can never join another tenant's group, whatever id it supplies.
func (c *Client) readPump(identity *auth.Identity, logger *zap.Logger) {
	defer func() {
		c.Hub.Unregister(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}

		var payload clientMessage
		if err := json.Unmarshal(message, &payload); err != nil {
			continue
		}

		switch payload.Type {
		case "join-tenant":
			if payload.TenantID != identity.TenantID {
				logger.Warn("rejected cross-tenant join",
					zap.String("requested", payload.TenantID),
					zap.String("token_tenant", identity.TenantID))
				c.sendError("join-rejected")
				continue
			}
			c.SetTenantID(identity.TenantID)
		case "leave-tenant":
			c.SetTenantID("")
		}
	}
}

func (c *Client) sendError(reason string) {
	msg, err := json.Marshal(errorMessage{Event: "error", Error: reason})
	if err != nil {
		return
	}
	select {
	case c.Send <- msg:
	default:
	}
}

// writePump pushes hub payloads to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
