package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"storefront/internal/config"
	"storefront/internal/http/handlers"
	applog "storefront/internal/log"
	"storefront/internal/repos"
)

func newApp(t *testing.T) (*fiber.App, *handlers.Deps) {
	t.Helper()
	db, err := repos.OpenDB("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{GuestCartTTL: 24 * time.Hour, DefaultLocale: "en"}
	deps := handlers.NewDeps(db, cfg, handlers.Infra{Log: zap.NewNop()})
	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	app.Use(requestid.New())
	deps.Register(app)
	return app, deps
}

// captureLogs routes the request loggers into an observer for the test.
func captureLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	prev := applog.L()
	applog.SetDefault(zap.New(core))
	t.Cleanup(func() { applog.SetDefault(prev) })
	return logs
}

// call sends body as JSON with the session cookie (when set) and decodes the reply.
func call(t *testing.T, app *fiber.App, method, path string, body any, sid string) (*http.Response, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

func extractCookie(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func login(t *testing.T, app *fiber.App, email, guestID string) (string, map[string]any) {
	t.Helper()
	resp, body := call(t, app, "POST", "/login", map[string]any{
		"email": email, "password": "Passw0rd!", "guestId": guestID,
	}, "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("login %s: status %d body=%v", email, resp.StatusCode, body)
	}
	sid := extractCookie(resp, "sid")
	if sid == "" {
		t.Fatal("sid cookie missing after login")
	}
	return sid, body
}

func items(body map[string]any) []map[string]any {
	raw, _ := body["data"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, it := range raw {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
