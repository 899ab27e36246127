package websocket

import (
	accessDomain "github.com/AzielCF/az-admin/access/domain"
	"github.com/AzielCF/az-admin/pkg/utils"
	"github.com/AzielCF/az-admin/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const (
	textMessage  = fiberws.TextMessage
	closeMessage = fiberws.CloseMessage
)

// RegisterRoutes mounts the dashboard stream at /admin/ws. Subscribers need
// the view_alerts capability.
func RegisterRoutes(app fiber.Router, hub *Hub, access accessDomain.Checker) {
	app.Use("/admin/ws", middleware.Actor(), func(c *fiber.Ctx) error {
		actor := middleware.ActorFrom(c)
		if !access.HasCapability(actor.Role, accessDomain.CapViewAlerts) {
			return c.Status(fiber.StatusForbidden).JSON(utils.ResponseData{
				Status:  fiber.StatusForbidden,
				Code:    "FORBIDDEN",
				Message: "role may not subscribe to admin events",
			})
		}
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	app.Get("/admin/ws", fiberws.New(func(c *fiberws.Conn) {
		if !hub.add(c) {
			_ = c.Close()
			return
		}
		defer func() {
			hub.remove(c)
			_ = c.Close()
		}()

		// Dashboards only listen; reading detects the close.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if fiberws.IsUnexpectedCloseError(err, fiberws.CloseGoingAway, fiberws.CloseAbnormalClosure) {
					logrus.Debugf("[WS] read error: %v", err)
				}
				return
			}
		}
	}))
}
