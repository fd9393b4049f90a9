package handlers

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/IlyaVishnyakMuz/apgram-backend/internal/notify"
)

type EventsHandler struct {
	bus notify.Bus
}

func NewEventsHandler(bus notify.Bus) *EventsHandler {
	return &EventsHandler{bus: bus}
}

// Upgrade gates the events route to WebSocket requests.
func (h *EventsHandler) Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// Stream pushes "posts_updated" signals until the client disconnects or
// falls behind far enough for the bus to drop it.
func (h *EventsHandler) Stream() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		defer c.Close()

		events, unsubscribe := h.bus.Subscribe(16)
		defer unsubscribe()

		// Reads are discarded; the first read error means the peer is gone.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					// Dropped by the bus for falling behind.
					return
				}
				if err := c.WriteJSON(event); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	})
}
