package rest

import (
	"context"
	"strconv"
	"time"

	accessDomain "github.com/AzielCF/az-admin/access/domain"
	accountsDomain "github.com/AzielCF/az-admin/accounts/domain"
	cacheApp "github.com/AzielCF/az-admin/cache/application"
	cacheDomain "github.com/AzielCF/az-admin/cache/domain"
	pkgError "github.com/AzielCF/az-admin/pkg/error"
	"github.com/AzielCF/az-admin/pkg/utils"
	"github.com/AzielCF/az-admin/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
)

func (handler *Admin) ListUsers(c *fiber.Ctx) error {
	actor := middleware.ActorFrom(c)
	utils.PanicIfNeeded(handler.require(c, actor, accessDomain.CapViewUsers))

	filter := accountsDomain.UserFilter{
		Role:   c.Query("role"),
		Status: c.Query("status"),
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 20),
	}
	key := cacheApp.BuildKey(cacheDomain.NamespaceUsers, "list", map[string]string{
		"role":   filter.Role,
		"status": filter.Status,
		"page":   strconv.Itoa(filter.Page),
		"limit":  strconv.Itoa(filter.Limit),
	}, actor.ID)

	raw, hit, err := cacheApp.RememberRaw(c.UserContext(), handler.Cache, key, ttlOr(handler.TTL.UsersTTL, 2*time.Minute),
		func(ctx context.Context) (any, error) {
			return handler.Moderation.ListUsers(ctx, filter)
		})
	utils.PanicIfNeeded(err)

	return sendCached(c, raw, hit, "Users retrieved")
}

func (handler *Admin) GetUser(c *fiber.Ctx) error {
	actor := middleware.ActorFrom(c)
	utils.PanicIfNeeded(handler.require(c, actor, accessDomain.CapViewUsers))

	user, err := handler.Moderation.GetUser(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "User retrieved",
		Results: user,
	})
}

type moderationBody struct {
	Reason string `json:"reason"`
}

type moderateFunc func(ctx context.Context, actor accessDomain.Actor, req accountsDomain.ModerationRequest) (accountsDomain.User, error)

func (handler *Admin) moderate(c *fiber.Ctx, fn moderateFunc, message string) error {
	var body moderationBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			utils.PanicIfNeeded(pkgError.ValidationError(err.Error()))
		}
	}

	user, err := fn(c.UserContext(), middleware.ActorFrom(c), accountsDomain.ModerationRequest{
		UserID: c.Params("id"),
		Reason: body.Reason,
	})
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: message,
		Results: user,
	})
}

func (handler *Admin) SuspendUser(c *fiber.Ctx) error {
	return handler.moderate(c, handler.Moderation.Suspend, "User suspended")
}

func (handler *Admin) ActivateUser(c *fiber.Ctx) error {
	return handler.moderate(c, handler.Moderation.Activate, "User activated")
}

func (handler *Admin) BanUser(c *fiber.Ctx) error {
	return handler.moderate(c, handler.Moderation.Ban, "User banned")
}
