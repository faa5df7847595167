package wsserver

import (
	"log/slog"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/room-relay/modules/broadcast"
	"github.com/example/room-relay/modules/relay"
)

// Handlers contains the WebSocket and HTTP handlers.
type Handlers struct {
	router *relay.Router
	hub    *broadcast.Hub
	logger *slog.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(router *relay.Router, hub *broadcast.Hub) *Handlers {
	return &Handlers{
		router: router,
		hub:    hub,
		logger: slog.Default(),
	}
}

// HandleWebSocket services one WebSocket connection for its whole lifetime:
// mint an opaque handle, attach the outbound queue, then pump inbound frames
// into the router until the transport closes.
func (h *Handlers) HandleWebSocket(c *websocket.Conn) {
	id := relay.ConnID(uuid.New().String())

	h.hub.Attach(id, c)
	h.router.HandleConnect(id)
	defer func() {
		h.router.HandleClose(id)
		h.hub.Detach(id)
	}()

	h.logger.Info("WebSocket connected", "connID", id)

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket error", "connID", id, "error", err)
			}
			break
		}
		h.router.HandleMessage(id, raw)
	}

	h.logger.Info("WebSocket disconnected", "connID", id)
}

// GetRoom returns the current room snapshot (GET /api/v1/rooms/:id).
func (h *Handlers) GetRoom(c *fiber.Ctx) error {
	roomID := c.Params("id")

	room, ok := h.router.RoomSnapshot(roomID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Room does not exist",
		})
	}
	return c.JSON(room)
}

// HealthCheck handles health check requests (GET /health).
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":           "healthy",
		"service":          "room-relay",
		"live_connections": h.router.LiveConnections(),
		"rooms":            h.router.RoomCount(),
	})
}
