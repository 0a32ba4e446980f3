package handlers_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestCartInputValidation(t *testing.T) {
	app, _ := newApp(t)
	cases := []struct {
		name string
		path string
		body map[string]any
	}{
		{"missing variant", "/api/cart/guest", map[string]any{"guestId": "g-1"}},
		{"negative variant", "/api/cart/guest", map[string]any{"guestId": "g-1", "variantId": -3}},
		{"missing guest", "/api/cart/guest", map[string]any{"variantId": 1}},
		{"guest id with spaces", "/api/cart/guest/increase", map[string]any{"guestId": "g 1", "variantId": 1}},
		{"guest id too long", "/api/cart/guest/remove", map[string]any{"guestId": strings.Repeat("g", 65), "variantId": 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, _ := call(t, app, "POST", tc.path, tc.body, "")
			if resp.StatusCode != fiber.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
		})
	}

	resp, _ := call(t, app, "GET", "/api/cart/guest/english/g-1", nil, "")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("bad locale: expected 400, got %d", resp.StatusCode)
	}

	req := httptest.NewRequest("POST", "/api/cart/guest", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	raw, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("malformed body: %v", err)
	}
	if raw.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("malformed body: expected 400, got %d", raw.StatusCode)
	}
}

func TestAvailabilityValidation(t *testing.T) {
	app, _ := newApp(t)
	for _, q := range []string{"", "?variantId=abc", "?variantId=0", "?variantId=-1"} {
		resp, _ := call(t, app, "GET", "/api/v1/availability"+q, nil, "")
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Fatalf("availability%s: expected 400, got %d", q, resp.StatusCode)
		}
	}

	resp, body := call(t, app, "GET", "/api/v1/availability?variantId=5", nil, "")
	if resp.StatusCode != fiber.StatusOK || body["status"] != "OUT_OF_STOCK" {
		t.Fatalf("sold-out variant: %d %v", resp.StatusCode, body)
	}
	resp, body = call(t, app, "GET", "/api/v1/availability?variantId=999", nil, "")
	if resp.StatusCode != fiber.StatusOK || body["status"] != "OUT_OF_STOCK" {
		t.Fatalf("unknown variant: %d %v", resp.StatusCode, body)
	}
}
