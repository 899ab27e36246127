package rest

import (
	"context"
	"strconv"
	"time"

	accessDomain "github.com/AzielCF/az-admin/access/domain"
	auditDomain "github.com/AzielCF/az-admin/audit/domain"
	cacheApp "github.com/AzielCF/az-admin/cache/application"
	cacheDomain "github.com/AzielCF/az-admin/cache/domain"
	pkgError "github.com/AzielCF/az-admin/pkg/error"
	"github.com/AzielCF/az-admin/pkg/utils"
	"github.com/AzielCF/az-admin/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
)

func (handler *Admin) GetLogs(c *fiber.Ctx) error {
	actor := middleware.ActorFrom(c)
	utils.PanicIfNeeded(handler.require(c, actor, accessDomain.CapViewLogs))

	filter := auditDomain.Filter{
		ActorID:  c.Query("actor_id"),
		Action:   c.Query("action"),
		TargetID: c.Query("target_id"),
		Page:     c.QueryInt("page", 1),
		Limit:    c.QueryInt("limit", 50),
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			utils.PanicIfNeeded(pkgError.ValidationError("since: must be an RFC3339 timestamp"))
		}
		filter.Since = &t
	}

	key := cacheApp.BuildKey(cacheDomain.NamespaceLogs, "list", map[string]string{
		"actor_id":  filter.ActorID,
		"action":    filter.Action,
		"target_id": filter.TargetID,
		"since":     c.Query("since"),
		"page":      strconv.Itoa(filter.Page),
		"limit":     strconv.Itoa(filter.Limit),
	}, actor.ID)

	raw, hit, err := cacheApp.RememberRaw(c.UserContext(), handler.Cache, key, ttlOr(handler.TTL.LogsTTL, time.Minute),
		func(ctx context.Context) (any, error) {
			return handler.Trail.Query(ctx, filter)
		})
	utils.PanicIfNeeded(err)

	return sendCached(c, raw, hit, "Audit log retrieved")
}
