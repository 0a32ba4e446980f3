package handlers

import (
	"github.com/gofiber/fiber/v2"

	"storefront/internal/domain"
	"storefront/internal/services"
	"storefront/internal/validate"
)

type CartHandler struct {
	Cart          *services.CartService
	DefaultLocale string
}

type lineRequest struct {
	GuestID   string `json:"guestId"`
	VariantID int64  `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

func (h *CartHandler) parseLine(c *fiber.Ctx, guest bool) (lineRequest, string, bool) {
	var req lineRequest
	if err := c.BodyParser(&req); err != nil {
		return req, "malformed request body", false
	}
	if !validate.VariantID(req.VariantID) {
		return req, "missing or invalid variantId", false
	}
	if guest {
		id, ok := validate.ID(req.GuestID)
		if !ok {
			return req, "missing or invalid guestId", false
		}
		req.GuestID = id
	}
	return req, "", true
}

func (h *CartHandler) locale(c *fiber.Ctx) (string, bool) {
	return validate.Locale(c.Params("locale"), h.DefaultLocale)
}

// GET /api/cart/user/:locale?
func (h *CartHandler) UserCart(c *fiber.Ctx) error {
	loc, ok := h.locale(c)
	if !ok {
		return badRequest(c, "invalid locale")
	}
	u := currentUser(c)
	res := h.Cart.GetCart(c.UserContext(), u.CartOwner(), loc)
	return reply(c, "cart.user.view", res.Result, res, map[string]any{"user_id": u.ID})
}

// GET /api/cart/guest/:locale/:guestId
func (h *CartHandler) GuestCart(c *fiber.Ctx) error {
	loc, ok := h.locale(c)
	if !ok {
		return badRequest(c, "invalid locale")
	}
	gid, ok := validate.ID(c.Params("guestId"))
	if !ok {
		return badRequest(c, "missing or invalid guestId")
	}
	res := h.Cart.GetCart(c.UserContext(), domain.GuestOwner(gid), loc)
	return reply(c, "cart.guest.view", res.Result, res, map[string]any{"guest_id": gid})
}

type lineOp func(h *CartHandler, c *fiber.Ctx, owner domain.Owner, req lineRequest) services.Result

func (h *CartHandler) user(action string, op lineOp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, msg, ok := h.parseLine(c, false)
		if !ok {
			return badRequest(c, msg)
		}
		u := currentUser(c)
		res := op(h, c, u.CartOwner(), req)
		return reply(c, action, res, res, map[string]any{"user_id": u.ID, "variant_id": req.VariantID})
	}
}

func (h *CartHandler) guest(action string, op lineOp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, msg, ok := h.parseLine(c, true)
		if !ok {
			return badRequest(c, msg)
		}
		res := op(h, c, domain.GuestOwner(req.GuestID), req)
		return reply(c, action, res, res, map[string]any{"guest_id": req.GuestID, "variant_id": req.VariantID})
	}
}

func add(h *CartHandler, c *fiber.Ctx, owner domain.Owner, req lineRequest) services.Result {
	return h.Cart.Add(c.UserContext(), owner, req.VariantID, validate.Qty(req.Quantity))
}

func increase(h *CartHandler, c *fiber.Ctx, owner domain.Owner, req lineRequest) services.Result {
	return h.Cart.Increase(c.UserContext(), owner, req.VariantID)
}

func decrease(h *CartHandler, c *fiber.Ctx, owner domain.Owner, req lineRequest) services.Result {
	return h.Cart.Decrease(c.UserContext(), owner, req.VariantID)
}

func remove(h *CartHandler, c *fiber.Ctx, owner domain.Owner, req lineRequest) services.Result {
	return h.Cart.Remove(c.UserContext(), owner, req.VariantID)
}

func (h *CartHandler) AddUser() fiber.Handler      { return h.user("cart.user.add", add) }
func (h *CartHandler) IncreaseUser() fiber.Handler { return h.user("cart.user.increase", increase) }
func (h *CartHandler) DecreaseUser() fiber.Handler { return h.user("cart.user.decrease", decrease) }
func (h *CartHandler) RemoveUser() fiber.Handler   { return h.user("cart.user.remove", remove) }

func (h *CartHandler) AddGuest() fiber.Handler      { return h.guest("cart.guest.add", add) }
func (h *CartHandler) IncreaseGuest() fiber.Handler { return h.guest("cart.guest.increase", increase) }
func (h *CartHandler) DecreaseGuest() fiber.Handler { return h.guest("cart.guest.decrease", decrease) }
func (h *CartHandler) RemoveGuest() fiber.Handler   { return h.guest("cart.guest.remove", remove) }

// POST /api/cart/user/clear
func (h *CartHandler) ClearUser(c *fiber.Ctx) error {
	u := currentUser(c)
	res := h.Cart.Clear(c.UserContext(), u.CartOwner())
	return reply(c, "cart.user.clear", res, res, map[string]any{"user_id": u.ID})
}

// POST /api/cart/merge
func (h *CartHandler) Merge(c *fiber.Ctx) error {
	var req struct {
		GuestID string `json:"guestId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	gid, ok := validate.ID(req.GuestID)
	if !ok {
		return badRequest(c, "missing or invalid guestId")
	}
	u := currentUser(c)
	res := h.Cart.Merge(c.UserContext(), u.ID, gid)
	return reply(c, "cart.merge", res.Result, res, map[string]any{"user_id": u.ID, "guest_id": gid, "merged": res.Merged})
}
