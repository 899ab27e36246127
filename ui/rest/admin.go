package rest

import (
	"fmt"
	"time"

	accessDomain "github.com/AzielCF/az-admin/access/domain"
	accountsApp "github.com/AzielCF/az-admin/accounts/application"
	analyticsApp "github.com/AzielCF/az-admin/analytics/application"
	auditApp "github.com/AzielCF/az-admin/audit/application"
	auditDomain "github.com/AzielCF/az-admin/audit/domain"
	bulkApp "github.com/AzielCF/az-admin/bulk/application"
	cacheApp "github.com/AzielCF/az-admin/cache/application"
	"github.com/AzielCF/az-admin/core/config"
	settingsApp "github.com/AzielCF/az-admin/core/settings/application"
	monitorApp "github.com/AzielCF/az-admin/monitor/application"
	notifyApp "github.com/AzielCF/az-admin/notify/application"
	pkgError "github.com/AzielCF/az-admin/pkg/error"
	"github.com/AzielCF/az-admin/pkg/utils"
	quotaApp "github.com/AzielCF/az-admin/quota/application"
	quotaDomain "github.com/AzielCF/az-admin/quota/domain"
	"github.com/AzielCF/az-admin/ui/rest/middleware"
	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

// Admin bundles the services behind the /admin routes.
type Admin struct {
	Access     accessDomain.Checker
	Trail      *auditApp.Trail
	Cache      *cacheApp.Store
	Limiter    *quotaApp.Limiter
	Moderation *accountsApp.ModerationService
	Bulk       *bulkApp.Engine
	Monitor    *monitorApp.Generator
	Analytics  *analyticsApp.Aggregator
	Settings   *settingsApp.SettingsService
	Dispatcher *notifyApp.Dispatcher
	TTL        config.CacheConfig
}

func InitRestAdmin(app fiber.Router, handler Admin) Admin {
	// Reading the quota must not spend it.
	app.Get("/admin/quota", middleware.Actor(), handler.GetQuota)

	group := app.Group("/admin", middleware.Actor(), middleware.Quota(handler.Limiter, quotaDomain.ClassAdmin))
	group.Get("/analytics", handler.GetAnalytics)
	group.Get("/health/alerts", handler.GetAlerts)
	group.Get("/logs", handler.GetLogs)
	group.Get("/users", handler.ListUsers)
	group.Get("/users/:id", handler.GetUser)
	group.Post("/users/:id/suspend", handler.SuspendUser)
	group.Post("/users/:id/activate", handler.ActivateUser)
	group.Post("/users/:id/ban", handler.BanUser)
	group.Post("/bulk", handler.RunBulk)
	group.Post("/cache/flush", handler.FlushCache)
	group.Get("/settings", handler.GetSettings)
	group.Put("/settings", handler.UpdateSettings)
	group.Get("/notifications/stats", handler.GetNotificationStats)

	return handler
}

// require records and rejects an actor lacking capability.
func (handler *Admin) require(c *fiber.Ctx, actor accessDomain.Actor, capability accessDomain.Capability) error {
	if handler.Access.HasCapability(actor.Role, capability) {
		return nil
	}
	handler.Trail.RecordDenied(c.UserContext(), actor.ID, string(actor.Role), string(capability), requestMetadata(actor))
	return pkgError.AuthorizationError(fmt.Sprintf("role %q lacks %s", actor.Role, capability))
}

// sendCached writes a memoized payload inside the standard envelope.
func sendCached(c *fiber.Ctx, raw json.RawMessage, hit bool, message string) error {
	if hit {
		c.Set("X-Cache", "HIT")
	} else {
		c.Set("X-Cache", "MISS")
	}
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: message,
		Results: raw,
	})
}

func requestMetadata(actor accessDomain.Actor) auditDomain.RequestMetadata {
	return auditDomain.RequestMetadata{
		IP:        actor.IP,
		UserAgent: actor.UserAgent,
		RequestID: actor.RequestID,
	}
}

func ttlOr(ttl, fallback time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return fallback
}
