package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// Roles recognised by the SLA endpoints
const (
	RoleAdmin      = "admin"
	RoleSLAAdmin   = "sla_admin"
	RoleSupervisor = "supervisor"
	RoleOfficer    = "officer"
)

// RequireRole lets the request through when the caller holds any of roles
func RequireRole(skipAuth bool, roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if skipAuth {
			return c.Next()
		}

		claims := CurrentUser(c)
		if claims == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		if !claims.HasRole(RoleAdmin) && !claims.HasRole(roles...) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Forbidden: Insufficient permissions",
			})
		}

		return c.Next()
	}
}
