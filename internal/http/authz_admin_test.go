package handlers_test

import (
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestAdminRoutesGuarded(t *testing.T) {
	app, _ := newApp(t)

	resp, _ := call(t, app, "GET", "/api/admin/inventory", nil, "")
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", resp.StatusCode)
	}

	userSID, _ := login(t, app, "alice@storefront.test", "")
	resp, _ = call(t, app, "GET", "/api/admin/inventory", nil, userSID)
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("non-admin: expected 403, got %d", resp.StatusCode)
	}
	resp, _ = call(t, app, "DELETE", "/api/admin/products/1", nil, userSID)
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("non-admin delete: expected 403, got %d", resp.StatusCode)
	}
}

func TestAdminInventoryAndDeletes(t *testing.T) {
	app, _ := newApp(t)
	userSID, _ := login(t, app, "alice@storefront.test", "")
	adminSID, _ := login(t, app, "admin@storefront.test", "")

	resp, _ := call(t, app, "POST", "/api/cart/user", map[string]any{"variantId": 4, "quantity": 2}, userSID)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("add: expected 200, got %d", resp.StatusCode)
	}

	resp, body := call(t, app, "GET", "/api/admin/inventory", nil, adminSID)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("inventory: expected 200, got %d", resp.StatusCode)
	}
	var seen bool
	for _, row := range items(body) {
		if row["variantId"] == float64(4) {
			seen = true
			if row["reserved"] != float64(2) || row["available"] != float64(3) {
				t.Fatalf("variant 4 ledger: %v", row)
			}
		}
	}
	if !seen {
		t.Fatal("variant 4 missing from inventory")
	}

	resp, _ = call(t, app, "DELETE", "/api/admin/products/2", nil, adminSID)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("delete product: expected 200, got %d", resp.StatusCode)
	}
	resp, _ = call(t, app, "DELETE", "/api/admin/products/2", nil, adminSID)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("delete product twice: expected 404, got %d", resp.StatusCode)
	}
	resp, _ = call(t, app, "POST", "/api/cart/guest", map[string]any{"guestId": "g-1", "variantId": 4}, "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("add deleted product: expected 404, got %d", resp.StatusCode)
	}

	resp, _ = call(t, app, "DELETE", "/api/admin/users/u-admin", nil, adminSID)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("self delete: expected 400, got %d", resp.StatusCode)
	}
	resp, _ = call(t, app, "DELETE", "/api/admin/users/u-alice", nil, adminSID)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("delete user: expected 200, got %d", resp.StatusCode)
	}
	resp, _ = call(t, app, "DELETE", "/api/admin/users/u-alice", nil, adminSID)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("delete user twice: expected 404, got %d", resp.StatusCode)
	}
}
