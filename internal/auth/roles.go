package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/flowbit/ticket-service/pkg/errorutil"
)

// RequireAdmin ensures the caller holds the Admin role. The check is
// independent of tenant scoping: a non-admin of the right tenant still
// gets a forbidden error, never a not-found.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return errorutil.NewUnauthorized("authentication required")
		}
		if !identity.IsAdmin() {
			return errorutil.NewForbidden("admin access required")
		}
		return c.Next()
	}
}
