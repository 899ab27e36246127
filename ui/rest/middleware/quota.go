package middleware

import (
	"strconv"
	"time"

	"github.com/AzielCF/az-admin/pkg/utils"
	quotaApp "github.com/AzielCF/az-admin/quota/application"
	quotaDomain "github.com/AzielCF/az-admin/quota/domain"
	"github.com/gofiber/fiber/v2"
)

// IdentityFrom is the quota identity of the request's actor.
func IdentityFrom(c *fiber.Ctx) quotaDomain.Identity {
	actor := ActorFrom(c)
	return quotaDomain.Identity{IP: c.IP(), ActorID: actor.ID}
}

// SetQuotaHeaders writes the X-RateLimit headers for d.
func SetQuotaHeaders(c *fiber.Ctx, d quotaDomain.Decision) {
	c.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

// Quota consumes one unit of the caller's budget for class and rejects the
// request with 429 once it is spent. Must run after Actor.
func Quota(limiter *quotaApp.Limiter, class quotaDomain.RouteClass) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := ActorFrom(c)
		d := limiter.Allow(c.UserContext(), class, IdentityFrom(c), actor.Role)
		SetQuotaHeaders(c, d)

		if !d.Allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter(d)))
			return c.Status(fiber.StatusTooManyRequests).JSON(utils.ResponseData{
				Status:  fiber.StatusTooManyRequests,
				Code:    "TOO_MANY_REQUESTS",
				Message: "Request quota exceeded, retry after the window resets",
			})
		}
		return c.Next()
	}
}

func retryAfter(d quotaDomain.Decision) int {
	secs := int(time.Until(d.ResetAt).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}
