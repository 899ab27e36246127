package rest

import (
	accessDomain "github.com/AzielCF/az-admin/access/domain"
	pkgError "github.com/AzielCF/az-admin/pkg/error"
	"github.com/AzielCF/az-admin/pkg/utils"
	"github.com/AzielCF/az-admin/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
)

func (handler *Admin) GetSettings(c *fiber.Ctx) error {
	actor := middleware.ActorFrom(c)
	utils.PanicIfNeeded(handler.require(c, actor, accessDomain.CapSystemMaintenance))

	overrides, err := handler.Settings.GetDynamicSettings(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Settings retrieved",
		Results: map[string]any{
			"overrides": overrides,
			"health":    handler.Settings.HealthThresholds(c.UserContext()),
			"quota":     handler.Settings.QuotaConfig(c.UserContext()),
		},
	})
}

// UpdateSettings stores overrides given as {"key": "value"}. An empty value
// restores the configured default.
func (handler *Admin) UpdateSettings(c *fiber.Ctx) error {
	var values map[string]string
	if err := c.BodyParser(&values); err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError(err.Error()))
	}

	overrides, err := handler.Settings.Update(c.UserContext(), middleware.ActorFrom(c), values)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Settings updated",
		Results: overrides,
	})
}
