package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/events"
	applog "storefront/internal/log"
	"storefront/internal/repos"
	"storefront/internal/services"
)

// Infra carries the process-wide collaborators the services are built on.
// Zero values fall back to in-process defaults.
type Infra struct {
	Guests services.GuestRegistry
	Events events.Publisher
	Log    *zap.Logger
	Tracer trace.TracerProvider
	Now    func() time.Time
}

type Deps struct {
	Auth  *services.AuthService
	Cart  *services.CartService
	Inv   *services.InventoryService
	Admin *services.AdminService

	AuthHandler      *AuthHandler
	CartHandler      *CartHandler
	InventoryHandler *InventoryHandler
	AdminHandler     *AdminHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config, infra Infra) *Deps {
	if infra.Log == nil {
		infra.Log = applog.L()
	}
	if infra.Tracer == nil {
		infra.Tracer = otel.GetTracerProvider()
	}
	if infra.Now == nil {
		infra.Now = time.Now
	}

	invRepo := repos.NewInventoryRepo()
	cartRepo := repos.NewCartRepo(cfg.GuestCartTTL)
	opts := []services.CartOption{
		services.WithClock(infra.Now),
		services.WithLogger(infra.Log),
		services.WithTracerProvider(infra.Tracer),
	}
	if infra.Guests != nil {
		opts = append(opts, services.WithGuestRegistry(infra.Guests))
	}
	if infra.Events != nil {
		opts = append(opts, services.WithPublisher(infra.Events))
	}

	cartSvc := services.NewCartService(db, cartRepo, invRepo, repos.NewProductRepo(), repos.NewJournalRepo(), opts...)
	authSvc := &services.AuthService{Users: repos.NewUserRepo(db), Carts: cartSvc, Log: infra.Log}
	invSvc := services.NewInventoryService(db, invRepo)
	adminSvc := services.NewAdminService(db, invRepo, cartSvc)
	adminSvc.Now = infra.Now

	return &Deps{
		Auth:  authSvc,
		Cart:  cartSvc,
		Inv:   invSvc,
		Admin: adminSvc,

		AuthHandler:      &AuthHandler{Auth: authSvc, CookieSecure: cfg.CookieSecure},
		CartHandler:      &CartHandler{Cart: cartSvc, DefaultLocale: cfg.DefaultLocale},
		InventoryHandler: &InventoryHandler{Inv: invSvc},
		AdminHandler:     &AdminHandler{Admin: adminSvc},
	}
}

// Register mounts every route on app.
func (d *Deps) Register(app *fiber.App) {
	// API
	api := app.Group("/api/v1")
	availLimiter := limiter.New(limiter.Config{
		Max:        15,
		Expiration: 30 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|avail"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.availability.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	})
	api.Get("/availability", availLimiter, d.InventoryHandler.Check)

	// Cart
	cart := app.Group("/api/cart")
	user := cart.Group("/user", RequireUser(d.Auth))
	user.Get("/:locale?", d.CartHandler.UserCart)
	user.Post("/", d.CartHandler.AddUser())
	user.Post("/increase", d.CartHandler.IncreaseUser())
	user.Post("/decrease", d.CartHandler.DecreaseUser())
	user.Post("/remove", d.CartHandler.RemoveUser())
	user.Post("/clear", d.CartHandler.ClearUser)

	guest := cart.Group("/guest")
	guest.Get("/:locale/:guestId", d.CartHandler.GuestCart)
	guest.Post("/", d.CartHandler.AddGuest())
	guest.Post("/increase", d.CartHandler.IncreaseGuest())
	guest.Post("/decrease", d.CartHandler.DecreaseGuest())
	guest.Post("/remove", d.CartHandler.RemoveGuest())

	cart.Post("/merge", RequireUser(d.Auth), d.CartHandler.Merge)

	// Auth routes (login throttled)
	app.Post("/login", limiter.New(limiter.Config{
		Max:        5,
		Expiration: 10 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(services.Result{Message: "Too many attempts. Please try again later."})
		},
	}), d.AuthHandler.Login)
	app.Post("/logout", d.AuthHandler.Logout)

	// Admin
	admin := app.Group("/api/admin", RequireAdmin(d.Auth))
	admin.Get("/inventory", d.AdminHandler.Inventory)
	admin.Delete("/products/:id", d.AdminHandler.DeleteProduct)
	admin.Delete("/users/:id", d.AdminHandler.DeleteUser)

	// Health & 404
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(services.Result{Message: "Page not found"})
	})
}

// IsGuestAPI reports whether path belongs to the cookie-less guest cart API.
func IsGuestAPI(path string) bool {
	return strings.HasPrefix(path, "/api/cart/guest")
}
