package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fieldserve/ticket-engine/internal/domain"
	apperrors "github.com/fieldserve/ticket-engine/pkg/util"
)

// RequireRole guards a route group to the listed roles.
func RequireRole(roles ...domain.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.User == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		for _, role := range roles {
			if principal.User.Role == role {
				return c.Next()
			}
		}
		return apperrors.NewForbidden("insufficient role")
	}
}
