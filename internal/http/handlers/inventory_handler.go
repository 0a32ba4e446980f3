package handlers

import (
	"github.com/gofiber/fiber/v2"

	"storefront/internal/services"
	"storefront/internal/validate"
)

type InventoryHandler struct {
	Inv *services.InventoryService
}

// GET /api/v1/availability?variantId=
func (h *InventoryHandler) Check(c *fiber.Ctx) error {
	id := int64(c.QueryInt("variantId", 0))
	if !validate.VariantID(id) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing or invalid variantId",
		})
	}

	avail, err := h.Inv.CheckAvailability(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(avail)
}
