package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"storefront/internal/log"
	"storefront/internal/services"
	"storefront/internal/validate"
)

type AuthHandler struct {
	Auth         *services.AuthService
	CookieSecure bool
}

func (h *AuthHandler) ensureSID(c *fiber.Ctx) string {
	sid := c.Cookies("sid")
	if sid == "" {
		sid = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     "sid",
			Value:    sid,
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
			Secure:   h.CookieSecure,
		})
	}
	return sid
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	GuestID  string `json:"guestId"`
}

// POST /login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	sid := h.ensureSID(c)
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	fail := func(reason string) error {
		log.Security(c, "auth.login.fail", map[string]any{"email": req.Email, "reason": reason})
		return c.Status(fiber.StatusUnauthorized).JSON(services.Result{Message: "Invalid email or password"})
	}
	email, ok := validate.Email(req.Email)
	if !ok {
		return fail("bad_format")
	}
	if !validate.Password(req.Password) {
		return fail("bad_password_format")
	}
	guestID := ""
	if req.GuestID != "" {
		if guestID, ok = validate.ID(req.GuestID); !ok {
			return badRequest(c, "missing or invalid guestId")
		}
	}

	u, merge, err := h.Auth.Login(c.UserContext(), sid, email, req.Password, guestID)
	if errors.Is(err, services.ErrBadCreds) {
		return fail("bad_credentials")
	}
	if err != nil {
		return err
	}

	log.Audit(c, "auth.login.success", map[string]any{"email": email, "guest_id": guestID})
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged in",
		"user":    fiber.Map{"id": u.ID, "name": u.Name, "role": u.Role},
		"merge":   merge,
	})
}

// POST /logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sid := h.ensureSID(c)
	_ = h.Auth.Logout(c.UserContext(), sid)
	// Expire cookie
	c.Cookie(&fiber.Cookie{
		Name:     "sid",
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   h.CookieSecure,
		Expires:  time.Now().Add(-1 * time.Hour),
	})
	log.Audit(c, "auth.logout", map[string]any{"sid": sid})
	return c.JSON(services.Result{Success: true, Message: "Logged out"})
}
