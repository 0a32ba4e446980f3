package log

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestHelpers(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	SetDefault(zap.New(core))
	t.Cleanup(func() { SetDefault(nil) })

	app := fiber.New()
	app.Get("/x", func(c *fiber.Ctx) error {
		c.Locals("requestid", "rid-1")
		Audit(c, "thing.done", map[string]any{"n": 1})
		Security(c, "thing.denied", nil)
		Error(c, "thing.failed", errors.New("boom"), nil)
		return c.SendStatus(fiber.StatusNoContent)
	})
	if _, err := app.Test(httptest.NewRequest("GET", "/x", nil)); err != nil {
		t.Fatal(err)
	}

	all := logs.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	audit := all[0].ContextMap()
	if audit["audit"] != true || audit["req_id"] != "rid-1" || audit["path"] != "/x" || audit["method"] != "GET" {
		t.Fatalf("audit fields: %v", audit)
	}
	if all[1].Level != zapcore.WarnLevel || all[1].ContextMap()["security"] != true {
		t.Fatalf("security entry: %v", all[1])
	}
	if all[2].Level != zapcore.ErrorLevel || all[2].ContextMap()["error"] != "boom" {
		t.Fatalf("error entry: %v", all[2].ContextMap())
	}
}

func TestNewFallsBackToInfo(t *testing.T) {
	l, err := New("chatty", "")
	if err != nil {
		t.Fatal(err)
	}
	if l.Core().Enabled(zapcore.DebugLevel) || !l.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("unknown level should fall back to info")
	}
}

func TestWithExportNilProviderIsIdentity(t *testing.T) {
	l := zap.NewNop()
	if WithExport(l, nil, "storefront") != l {
		t.Fatal("nil provider should return the logger unchanged")
	}
}
