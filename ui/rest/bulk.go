package rest

import (
	"fmt"
	"time"

	bulkDomain "github.com/AzielCF/az-admin/bulk/domain"
	pkgError "github.com/AzielCF/az-admin/pkg/error"
	"github.com/AzielCF/az-admin/pkg/utils"
	"github.com/AzielCF/az-admin/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
)

// bulkFailure is the body of a rejected or rolled back bulk request.
type bulkFailure struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (handler *Admin) RunBulk(c *fiber.Ctx) error {
	var req bulkDomain.Request
	if err := c.BodyParser(&req); err != nil {
		return bulkError(c, pkgError.ValidationError(err.Error()))
	}

	actor := middleware.ActorFrom(c)
	result, err := handler.Bulk.Execute(c.UserContext(), actor, req)
	if err != nil {
		return bulkError(c, err)
	}

	return c.JSON(bulkDomain.Response{
		Success:     true,
		Message:     fmt.Sprintf("%s on %s affected %d records", req.Action, req.Target, result.RecordsAffected),
		Action:      req.Action,
		Target:      req.Target,
		Result:      result,
		PerformedBy: actor.ID,
		Timestamp:   time.Now().UTC(),
	})
}

func bulkError(c *fiber.Ctx, err error) error {
	res := utils.ErrorResponse(err)
	return c.Status(res.Status).JSON(bulkFailure{
		Success: false,
		Message: res.Message,
		Error:   res.Code,
	})
}
