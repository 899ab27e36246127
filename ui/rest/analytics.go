package rest

import (
	"strings"

	analyticsDomain "github.com/AzielCF/az-admin/analytics/domain"
	"github.com/AzielCF/az-admin/pkg/utils"
	"github.com/AzielCF/az-admin/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
)

func (handler *Admin) GetAnalytics(c *fiber.Ctx) error {
	query := analyticsDomain.Query{Period: c.Query("period")}
	if raw := strings.TrimSpace(c.Query("metrics")); raw != "" {
		query.Metrics = strings.Split(raw, ",")
	}

	report, hit, err := handler.Analytics.Metrics(c.UserContext(), middleware.ActorFrom(c), query)
	utils.PanicIfNeeded(err)

	if hit {
		c.Set("X-Cache", "HIT")
	} else {
		c.Set("X-Cache", "MISS")
	}
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Analytics computed",
		Results: report,
	})
}
