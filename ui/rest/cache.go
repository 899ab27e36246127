package rest

import (
	"fmt"
	"strings"

	accessDomain "github.com/AzielCF/az-admin/access/domain"
	auditDomain "github.com/AzielCF/az-admin/audit/domain"
	cacheDomain "github.com/AzielCF/az-admin/cache/domain"
	pkgError "github.com/AzielCF/az-admin/pkg/error"
	"github.com/AzielCF/az-admin/pkg/utils"
	"github.com/AzielCF/az-admin/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type flushBody struct {
	Namespace string `json:"namespace"`
}

// FlushCache drops one namespace, or every namespace when none or "all" is given.
func (handler *Admin) FlushCache(c *fiber.Ctx) error {
	actor := middleware.ActorFrom(c)
	utils.PanicIfNeeded(handler.require(c, actor, accessDomain.CapFlushCache))

	var body flushBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			utils.PanicIfNeeded(pkgError.ValidationError(err.Error()))
		}
	}

	namespaces := cacheDomain.AllNamespaces
	if ns := strings.TrimSpace(body.Namespace); ns != "" && ns != "all" {
		if !knownNamespace(ns) {
			utils.PanicIfNeeded(pkgError.ValidationError(fmt.Sprintf("namespace: must be one of %v or \"all\"", cacheDomain.AllNamespaces)))
		}
		namespaces = []string{ns}
	}

	removed := handler.Cache.InvalidateNamespaces(c.UserContext(), namespaces...)

	_, err := handler.Trail.Record(c.UserContext(), auditDomain.Record{
		ActorID:   actor.ID,
		ActorRole: string(actor.Role),
		Action:    auditDomain.ActionCacheFlush,
		TargetID:  strings.Join(namespaces, ","),
		Details:   map[string]any{"keys_removed": removed, "cache_available": handler.Cache.Available()},
		Request:   requestMetadata(actor),
	})
	if err != nil {
		logrus.WithError(err).Warn("[CACHE] failed to audit flush")
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cache flushed",
		Results: map[string]any{"namespaces": namespaces, "keys_removed": removed},
	})
}

func knownNamespace(ns string) bool {
	for _, known := range cacheDomain.AllNamespaces {
		if ns == known {
			return true
		}
	}
	return false
}
