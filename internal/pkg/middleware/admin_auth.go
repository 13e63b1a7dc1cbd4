package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/FlowPagesHQ/FlowPages/internal/pkg/env"
)

// AdminAuthMiddleware guards the ops surface with a static bearer token.
// The comparison is constant-time; a missing ADMIN_API_TOKEN disables the
// surface entirely rather than leaving it open.
func AdminAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		expected := env.GetEnv("ADMIN_API_TOKEN", "")
		if expected == "" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Admin API disabled"})
		}

		got := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		got = strings.TrimPrefix(got, "Bearer ")
		if got == "" {
			got = strings.TrimSpace(c.Get("X-Admin-Token"))
		}
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid admin token"})
		}
		return c.Next()
	}
}
