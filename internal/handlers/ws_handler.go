package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/localserve/internal/realtime"
)

const sendBuffer = 256

type WSHandler struct {
	Hub *realtime.Hub
}

func NewWSHandler(hub *realtime.Hub) *WSHandler {
	return &WSHandler{Hub: hub}
}

// Routes mounts /ws behind the given auth chain. Tokens may arrive as a
// cookie, a bearer header or the token query parameter.
func (h *WSHandler) Routes(app fiber.Router, auth ...fiber.Handler) {
	chain := append(append([]fiber.Handler{}, auth...), websocket.New(h.Serve))
	app.Get("/ws", chain...)
}

// Serve pumps hub events to one connection until it closes.
func (h *WSHandler) Serve(c *websocket.Conn) {
	uid, _ := c.Locals("userId").(string)
	userID, err := uuid.Parse(uid)
	if err != nil {
		c.Close()
		return
	}

	client := &realtime.Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Conn:   realtime.NewWebSocketConn(c),
		Send:   make(chan []byte, sendBuffer),
	}
	h.Hub.RegisterClient(client)
	log.Printf("[WS] user %s connected", userID)
	defer func() {
		h.Hub.UnregisterClient(client)
		log.Printf("[WS] user %s disconnected", userID)
	}()

	go func() {
		for msg := range client.Send {
			if err := client.Conn.WriteText(msg); err != nil {
				return
			}
		}
		// hub closed Send: tell the reader to stop
		_ = c.Close()
	}()

	// inbound frames are only keep-alives
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}
