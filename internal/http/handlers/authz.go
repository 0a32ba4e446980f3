package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "storefront/internal/log"
	"storefront/internal/services"
)

func RequireAdmin(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := c.Cookies("sid")
		if sid == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(services.Result{Message: "Please log in"})
		}
		u, err := auth.CurrentUser(c.UserContext(), sid)
		if err != nil || u == nil || u.Role != "ADMIN" {
			applog.Security(c, "access.denied.admin", map[string]any{"sid": sid})
			return c.Status(fiber.StatusForbidden).JSON(services.Result{Message: "Access denied"})
		}
		c.Locals("user", u)
		return c.Next()
	}
}

// RequireUser enforces that a user is logged in.
func RequireUser(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := c.Cookies("sid")
		if sid == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(services.Result{Message: "Please log in"})
		}
		u, err := auth.CurrentUser(c.UserContext(), sid)
		if err != nil || u == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(services.Result{Message: "Please log in"})
		}
		c.Locals("user", u)
		return c.Next()
	}
}
