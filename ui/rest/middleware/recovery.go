package middleware

import (
	"fmt"

	"github.com/AzielCF/az-admin/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Recovery renders panics raised through utils.PanicIfNeeded. A GenericError
// keeps its status and code; anything else is a 500.
func Recovery() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("%v", rec)
			}
			res := utils.ErrorResponse(err)
			if res.Status >= 500 {
				logrus.WithField("path", ctx.Path()).Errorf("[REST] panic recovered: %v", rec)
			}

			_ = ctx.Status(res.Status).JSON(res)
		}()

		return ctx.Next()
	}
}
