package middleware

import (
	"strings"

	accessDomain "github.com/AzielCF/az-admin/access/domain"
	"github.com/AzielCF/az-admin/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"

	actorKey = "admin_actor"
)

// Actor resolves who performs the request from the headers set by the
// upstream authenticator. Without X-Actor-ID the basic auth user is used;
// an unknown role is treated as a plain user. Anonymous requests get 401.
func Actor() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Get(HeaderActorID))
		if id == "" {
			if user, ok := c.Locals("username").(string); ok {
				id = user
			}
		}

		if id == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(utils.ResponseData{
				Status:  fiber.StatusUnauthorized,
				Code:    "UNAUTHORIZED",
				Message: "missing " + HeaderActorID + " header",
			})
		}

		requestID, _ := c.Locals("requestid").(string)
		c.Locals(actorKey, accessDomain.Actor{
			ID:        id,
			Role:      accessDomain.ParseRole(c.Get(HeaderActorRole)),
			IP:        c.IP(),
			UserAgent: c.Get(fiber.HeaderUserAgent),
			RequestID: requestID,
		})
		return c.Next()
	}
}

// ActorFrom returns the actor stored by Actor.
func ActorFrom(c *fiber.Ctx) accessDomain.Actor {
	actor, _ := c.Locals(actorKey).(accessDomain.Actor)
	return actor
}
