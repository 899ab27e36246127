package rest

import (
	accessDomain "github.com/AzielCF/az-admin/access/domain"
	monitorDomain "github.com/AzielCF/az-admin/monitor/domain"
	"github.com/AzielCF/az-admin/pkg/utils"
	"github.com/AzielCF/az-admin/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
)

// GetAlerts evaluates every health rule on each call; alerts are never cached.
func (handler *Admin) GetAlerts(c *fiber.Ctx) error {
	actor := middleware.ActorFrom(c)
	utils.PanicIfNeeded(handler.require(c, actor, accessDomain.CapViewAlerts))

	alerts := handler.Monitor.Generate(c.UserContext())
	if alerts == nil {
		alerts = []monitorDomain.Alert{}
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Health alerts generated",
		Results: alerts,
	})
}
