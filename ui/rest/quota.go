package rest

import (
	"github.com/AzielCF/az-admin/pkg/utils"
	quotaDomain "github.com/AzielCF/az-admin/quota/domain"
	"github.com/AzielCF/az-admin/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
)

func (handler *Admin) GetQuota(c *fiber.Ctx) error {
	actor := middleware.ActorFrom(c)
	d := handler.Limiter.Status(c.UserContext(), quotaDomain.ClassAdmin, middleware.IdentityFrom(c), actor.Role)
	middleware.SetQuotaHeaders(c, d)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Quota status",
		Results: d,
	})
}
