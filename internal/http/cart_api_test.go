package handlers_test

import (
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestGuestCartFlow(t *testing.T) {
	app, _ := newApp(t)
	line := func(variant, qty int) map[string]any {
		return map[string]any{"guestId": "guest-1", "variantId": variant, "quantity": qty}
	}

	resp, body := call(t, app, "GET", "/api/cart/guest/en/guest-1", nil, "")
	if resp.StatusCode != fiber.StatusOK || body["message"] != "Cart is empty or expired" {
		t.Fatalf("empty guest cart: %d %v", resp.StatusCode, body)
	}

	resp, body = call(t, app, "POST", "/api/cart/guest", line(1, 2), "")
	if resp.StatusCode != fiber.StatusOK || body["success"] != true {
		t.Fatalf("add: %d %v", resp.StatusCode, body)
	}
	if body["message"] != "Item added to cart successfully" {
		t.Fatalf("add message: %v", body["message"])
	}

	resp, _ = call(t, app, "POST", "/api/cart/guest/increase", line(1, 0), "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("increase: expected 200, got %d", resp.StatusCode)
	}

	resp, body = call(t, app, "GET", "/api/cart/guest/ar/guest-1", nil, "")
	got := items(body)
	if resp.StatusCode != fiber.StatusOK || len(got) != 1 {
		t.Fatalf("view: %d %v", resp.StatusCode, body)
	}
	if got[0]["quantity"] != float64(3) || got[0]["reserved"] != float64(3) {
		t.Fatalf("line after increase: %v", got[0])
	}
	if got[0]["name"] != "تيشيرت كلاسيك" || got[0]["expireAt"] == nil {
		t.Fatalf("line enrichment: %v", got[0])
	}

	resp, body = call(t, app, "POST", "/api/cart/guest", line(3, 4), "")
	if resp.StatusCode != fiber.StatusConflict || body["message"] != "No enough items!" {
		t.Fatalf("overshoot: %d %v", resp.StatusCode, body)
	}

	resp, body = call(t, app, "POST", "/api/cart/guest/increase", line(2, 0), "")
	if resp.StatusCode != fiber.StatusNotFound || body["message"] != "Cart item not found!" {
		t.Fatalf("increase missing line: %d %v", resp.StatusCode, body)
	}

	resp, _ = call(t, app, "POST", "/api/cart/guest", line(4, 1), "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("add variant 4: %d", resp.StatusCode)
	}
	resp, body = call(t, app, "POST", "/api/cart/guest/decrease", line(4, 0), "")
	if resp.StatusCode != fiber.StatusUnprocessableEntity || body["message"] != "can not decrease the amount!" {
		t.Fatalf("decrease at one: %d %v", resp.StatusCode, body)
	}

	resp, _ = call(t, app, "POST", "/api/cart/guest/remove", line(4, 0), "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("remove: %d", resp.StatusCode)
	}
	resp, _ = call(t, app, "POST", "/api/cart/guest/remove", line(4, 0), "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("remove twice: expected 404, got %d", resp.StatusCode)
	}

	resp, body = call(t, app, "GET", "/api/v1/availability?variantId=1", nil, "")
	if resp.StatusCode != fiber.StatusOK || body["qty"] != float64(7) {
		t.Fatalf("availability after reservations: %d %v", resp.StatusCode, body)
	}
}

func TestUserCartFlow(t *testing.T) {
	app, _ := newApp(t)
	sid, _ := login(t, app, "bob@storefront.test", "")

	resp, body := call(t, app, "GET", "/api/cart/user/en", nil, sid)
	if resp.StatusCode != fiber.StatusOK || body["message"] != "Cart is empty" {
		t.Fatalf("empty user cart: %d %v", resp.StatusCode, body)
	}

	resp, _ = call(t, app, "POST", "/api/cart/user", map[string]any{"variantId": 2, "quantity": 3}, sid)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("add: %d", resp.StatusCode)
	}
	resp, _ = call(t, app, "POST", "/api/cart/user/decrease", map[string]any{"variantId": 2}, sid)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("decrease: %d", resp.StatusCode)
	}

	_, body = call(t, app, "GET", "/api/cart/user/en", nil, sid)
	got := items(body)
	if len(got) != 1 || got[0]["quantity"] != float64(2) {
		t.Fatalf("user cart: %v", body)
	}
	if _, ok := got[0]["expireAt"]; ok {
		t.Fatalf("user lines never expire: %v", got[0])
	}

	resp, _ = call(t, app, "POST", "/api/cart/user/clear", nil, sid)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("clear: %d", resp.StatusCode)
	}
	_, body = call(t, app, "GET", "/api/cart/user/en", nil, sid)
	if len(items(body)) != 0 {
		t.Fatalf("cart after clear: %v", body)
	}
}

func TestLoginMergesGuestCartAndRetiresGuestID(t *testing.T) {
	app, _ := newApp(t)

	call(t, app, "POST", "/api/cart/guest", map[string]any{"guestId": "g-merge", "variantId": 1, "quantity": 2}, "")
	call(t, app, "POST", "/api/cart/guest", map[string]any{"guestId": "g-merge", "variantId": 4, "quantity": 1}, "")

	sid, body := login(t, app, "alice@storefront.test", "g-merge")
	merge, _ := body["merge"].(map[string]any)
	if merge["success"] != true || merge["merged"] != float64(2) {
		t.Fatalf("merge at login: %v", body["merge"])
	}

	_, body = call(t, app, "GET", "/api/cart/user/en", nil, sid)
	if len(items(body)) != 2 {
		t.Fatalf("user cart after merge: %v", body)
	}

	resp, body := call(t, app, "POST", "/api/cart/guest", map[string]any{"guestId": "g-merge", "variantId": 1}, "")
	if resp.StatusCode != fiber.StatusGone {
		t.Fatalf("retired guest add: expected 410, got %d %v", resp.StatusCode, body)
	}
	resp, body = call(t, app, "GET", "/api/cart/guest/en/g-merge", nil, "")
	if resp.StatusCode != fiber.StatusOK || len(items(body)) != 0 {
		t.Fatalf("retired guest view: %d %v", resp.StatusCode, body)
	}

	resp, body = call(t, app, "POST", "/api/cart/merge", map[string]any{"guestId": "g-merge"}, sid)
	if resp.StatusCode != fiber.StatusOK || body["message"] != "Guest cart is empty" {
		t.Fatalf("second merge: %d %v", resp.StatusCode, body)
	}
}
