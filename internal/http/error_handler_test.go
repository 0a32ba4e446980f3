package handlers_test

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"storefront/internal/http/handlers"
)

func TestErrorHandlerFriendlyMessage(t *testing.T) {
	logs := captureLogs(t)
	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	app.Get("/err", func(c *fiber.Ctx) error {
		return errors.New("db timeout: secret trace")
	})
	app.Get("/teapot", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTeapot, "short and stout")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/err", nil))
	if err != nil {
		t.Fatalf("test request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	s := string(body)
	if !strings.Contains(s, "Something went wrong") {
		t.Fatalf("friendly message missing; body=%s", s)
	}
	if strings.Contains(s, "db timeout") || strings.Contains(s, "secret") {
		t.Fatalf("internal details leaked to user; body=%s", s)
	}
	if logs.FilterMessage("server.error").Len() != 1 {
		t.Fatalf("server error not logged")
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/teapot", nil))
	if err != nil {
		t.Fatalf("test request failed: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusTeapot || !strings.Contains(string(body), "short and stout") {
		t.Fatalf("client error: %d %s", resp.StatusCode, body)
	}
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	app, _ := newApp(t)
	resp, body := call(t, app, "GET", "/nowhere", nil, "")
	if resp.StatusCode != fiber.StatusNotFound || body["message"] != "Page not found" {
		t.Fatalf("unknown route: %d %v", resp.StatusCode, body)
	}
}
