package handlers

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	applog "storefront/internal/log"
	"storefront/internal/services"
	"storefront/internal/validate"
)

type AdminHandler struct {
	Admin *services.AdminService
}

// GET /api/admin/inventory
func (h *AdminHandler) Inventory(c *fiber.Ctx) error {
	rows, err := h.Admin.Inventory(c.UserContext())
	if err != nil {
		applog.Error(c, "admin.inventory.list.fail", err, nil)
		return err
	}
	out := make([]fiber.Map, 0, len(rows))
	for _, v := range rows {
		out = append(out, fiber.Map{
			"variantId": v.ID, "productId": v.ProductID,
			"quantity": v.Quantity, "reserved": v.Reserved, "available": v.Available(),
		})
	}
	return c.JSON(fiber.Map{"success": true, "data": out})
}

// DELETE /api/admin/products/:id
func (h *AdminHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || !validate.VariantID(int64(id)) {
		return badRequest(c, "invalid product id")
	}
	if err := h.Admin.DeleteProduct(c.UserContext(), int64(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(services.Result{Message: "product not found!"})
		}
		applog.Error(c, "admin.products.delete.fail", err, map[string]any{"product_id": id})
		return err
	}
	applog.Audit(c, "admin.products.delete", map[string]any{"product_id": id})
	return c.JSON(services.Result{Success: true, Message: "Product deleted"})
}

// DELETE /api/admin/users/:id
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if _, ok := validate.ID(id); !ok {
		return badRequest(c, "invalid user id")
	}
	if u := currentUser(c); u != nil && u.ID == id {
		applog.Security(c, "admin.users.delete.self", map[string]any{"user_id": id})
		return badRequest(c, "cannot delete your own account")
	}
	if err := h.Admin.DeleteUser(c.UserContext(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(services.Result{Message: "user not found!"})
		}
		applog.Error(c, "admin.users.delete.fail", err, map[string]any{"user_id": id})
		return err
	}
	applog.Audit(c, "admin.users.delete", map[string]any{"user_id": id})
	return c.JSON(services.Result{Success: true, Message: "User deleted"})
}
