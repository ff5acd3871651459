package middleware

import (
	"go-cats/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

// DevUserID is the actor injected when auth is skipped
const DevUserID = "dev-admin-id"

// AuthMiddleware validates JWT tokens and injects user claims into context
func AuthMiddleware(skipAuth bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if skipAuth {
			setClaims(c, &utils.UserClaims{
				UserID: DevUserID,
				Roles:  []string{RoleAdmin},
			})
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization header required",
			})
		}

		// Extract token from "Bearer <token>"
		if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization header format",
			})
		}

		claims, err := utils.ValidateToken(authHeader[7:])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		setClaims(c, claims)
		return c.Next()
	}
}

func setClaims(c *fiber.Ctx, claims *utils.UserClaims) {
	c.Locals(utils.UserClaimsKey, claims)
	c.Locals("userID", claims.UserID)
	c.Locals("roles", claims.Roles)
}

// CurrentUser returns the claims set by AuthMiddleware, or nil
func CurrentUser(c *fiber.Ctx) *utils.UserClaims {
	claims, _ := c.Locals(utils.UserClaimsKey).(*utils.UserClaims)
	return claims
}
