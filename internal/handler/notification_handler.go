package handler

import (
	"ai-mediagen-be/internal/pkg/logger"
	"ai-mediagen-be/internal/pkg/serverutils"
	internalWS "ai-mediagen-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type BroadcastRequest struct {
	Title   string `json:"title" validate:"required,max=120"`
	Message string `json:"message" validate:"required,max=1000"`
}

// NotificationHandler serves the live event stream generation and credit events are pushed on.
type NotificationHandler struct {
	hub    *internalWS.Hub
	logger logger.ILogger
}

func NewNotificationHandler(hub *internalWS.Hub, log logger.ILogger) *NotificationHandler {
	return &NotificationHandler{
		hub:    hub,
		logger: log,
	}
}

// ServeWs upgrades an authenticated request. Browsers pass the token as ?token=.
func (h *NotificationHandler) ServeWs(c *fiber.Ctx) error {
	userID, err := serverutils.CurrentUserID(c)
	if err != nil {
		return err
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("NotificationHandler", "Starting WebSocket session", map[string]interface{}{"user_id": userID})
			internalWS.ServeWs(h.hub, conn, userID)
			h.logger.Info("NotificationHandler", "WebSocket session ended", map[string]interface{}{"user_id": userID})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

// Connections reports how many live sockets the caller has open.
func (h *NotificationHandler) Connections(c *fiber.Ctx) error {
	userID, err := serverutils.CurrentUserID(c)
	if err != nil {
		return err
	}
	return c.JSON(serverutils.SuccessResponse("Live connections", fiber.Map{"connections": h.hub.Connected(userID)}))
}

// Broadcast sends a system-wide notice to every connected client.
func (h *NotificationHandler) Broadcast(c *fiber.Ctx) error {
	var req BroadcastRequest
	if err := c.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	h.hub.Broadcast("SYSTEM_BROADCAST", fiber.Map{
		"title":   req.Title,
		"message": req.Message,
	})
	return c.JSON(serverutils.SuccessResponse[any]("Broadcast queued", nil))
}

func (h *NotificationHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws", serverutils.JwtMiddleware, h.ServeWs)
	router.Get("/ws/connections", serverutils.JwtMiddleware, h.Connections)

	admin := router.Group("/admin/notifications", serverutils.JwtMiddleware, serverutils.AdminMiddleware)
	admin.Post("/broadcast", h.Broadcast)
}
