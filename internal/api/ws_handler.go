package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/consogab/server/internal/metrics"
	"github.com/consogab/server/internal/ws"
)

func (s *Server) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	sub, err := s.validator.Validate(c.Query("token"))
	if err != nil {
		return fiber.ErrUnauthorized
	}
	c.Locals(localUserID, sub)
	return c.Next()
}

func (s *Server) handleWS(conn *websocket.Conn) {
	uid, _ := conn.Locals(localUserID).(string)
	if uid == "" {
		_ = conn.Close()
		return
	}
	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	client := ws.NewClient(uid, conn, s.hub)
	client.Run()
}
