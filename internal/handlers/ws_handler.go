package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saan-app/saan_be/internal/realtime"
	"github.com/saan-app/saan_be/internal/session"
)

const (
	wsPingPeriod = 30 * time.Second
	wsPongWait   = 70 * time.Second
)

type NotificationHandler struct {
	Hub *realtime.Hub
}

func NewNotificationHandler(hub *realtime.Hub) *NotificationHandler {
	return &NotificationHandler{Hub: hub}
}

// Upgrade only lets authenticated websocket handshakes through; it runs
// after the cookie middleware.
func (h *NotificationHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if !session.From(c).Authenticated() {
		return fiber.ErrUnauthorized
	}
	return c.Next()
}

func (h *NotificationHandler) Handle(c *websocket.Conn) {
	s, _ := c.Locals(session.LocalsKey).(session.Session)
	if !s.Authenticated() {
		_ = c.Close()
		return
	}

	client := &realtime.Client{
		ID:     uuid.New().String(),
		UserID: s.UserID,
		Conn:   realtime.NewWebSocketConn(c),
		Send:   make(chan []byte, 256),
	}

	h.Hub.RegisterClient(client)
	defer h.Hub.UnregisterClient(client)

	_ = c.SetReadDeadline(time.Now().Add(wsPongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case msg, ok := <-client.Send:
				if !ok {
					_ = c.WriteMessage(websocket.CloseMessage, nil)
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					zap.L().Debug("ws write", zap.Stringer("user_id", s.UserID), zap.Error(err))
					return
				}
			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	// notifications are one-way; reads only keep the connection alive
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			zap.L().Debug("ws closed", zap.Stringer("user_id", s.UserID), zap.Error(err))
			return
		}
	}
}
