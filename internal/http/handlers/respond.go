package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"storefront/internal/domain"
	applog "storefront/internal/log"
	"storefront/internal/services"
)

// statusFor maps an operation outcome to an HTTP status.
func statusFor(res services.Result) int {
	if res.Success {
		return fiber.StatusOK
	}
	switch {
	case errors.Is(res.Err, domain.ErrNotFound), errors.Is(res.Err, domain.ErrLineNotFound):
		return fiber.StatusNotFound
	case errors.Is(res.Err, domain.ErrInsufficientStock):
		return fiber.StatusConflict
	case errors.Is(res.Err, domain.ErrInvalidQuantity):
		return fiber.StatusUnprocessableEntity
	case errors.Is(res.Err, domain.ErrGuestRetired):
		return fiber.StatusGone
	}
	return fiber.StatusInternalServerError
}

// reply writes body with the status derived from res and logs the outcome.
func reply(c *fiber.Ctx, action string, res services.Result, body any, fields map[string]any) error {
	code := statusFor(res)
	c.Status(code)
	switch {
	case res.Success:
		applog.Audit(c, action, fields)
	case code == fiber.StatusInternalServerError:
		applog.Error(c, action+".fail", res.Err, fields)
	default:
		applog.Info(c, action+".rejected", fields)
	}
	return c.JSON(body)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(services.Result{Success: false, Message: msg})
}

func currentUser(c *fiber.Ctx) *domain.User {
	u, _ := c.Locals("user").(*domain.User)
	return u
}

// ErrorHandler logs err and answers with a generic message; client errors keep
// their own text, server errors never leak details.
func ErrorHandler(c *fiber.Ctx, err error) error {
	applog.Error(c, "server.error", err, nil)
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		return c.Status(fe.Code).JSON(services.Result{Message: fe.Message})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(services.Result{Message: "Something went wrong. Please try again."})
}
