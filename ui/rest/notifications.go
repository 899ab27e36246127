package rest

import (
	accessDomain "github.com/AzielCF/az-admin/access/domain"
	"github.com/AzielCF/az-admin/pkg/utils"
	"github.com/AzielCF/az-admin/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
)

// GetNotificationStats returns real-time dispatcher queue statistics.
func (handler *Admin) GetNotificationStats(c *fiber.Ctx) error {
	utils.PanicIfNeeded(handler.require(c, middleware.ActorFrom(c), accessDomain.CapSystemMaintenance))

	if handler.Dispatcher == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(utils.ResponseData{
			Status:  fiber.StatusServiceUnavailable,
			Code:    "SERVICE_UNAVAILABLE",
			Message: "Notification dispatcher not initialized",
		})
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Notification dispatcher stats",
		Results: handler.Dispatcher.Stats(),
	})
}
