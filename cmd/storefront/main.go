package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/events"
	"storefront/internal/http/handlers"
	applog "storefront/internal/log"
	"storefront/internal/observability"
	"storefront/internal/repos"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()

	zl, err := applog.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer func() { _ = zl.Sync() }()
	applog.SetDefault(zl)
	for _, w := range cfg.Warnings {
		zl.Warn("config value ignored", zap.String("detail", w))
	}
	zl.Info("config loaded",
		zap.String("port", cfg.Port),
		zap.String("db_driver", cfg.DBDriver),
		zap.Duration("guest_cart_ttl", cfg.GuestCartTTL),
		zap.Duration("sweep_interval", cfg.SweepInterval),
		zap.Bool("redis", cfg.RedisAddr != ""),
		zap.Strings("kafka_brokers", cfg.KafkaBrokers),
	)

	tp, shutdownTracing, err := observability.SetupTracing(ctx, cfg.OtelEndpoint, cfg.Version)
	if err != nil {
		zl.Fatal("tracing setup", zap.Error(err))
	}
	lp, shutdownLogs, err := observability.SetupLogging(ctx, cfg.OtelEndpoint, cfg.Version)
	if err != nil {
		zl.Fatal("log export setup", zap.Error(err))
	}
	zl = applog.WithExport(zl, lp, observability.ServiceName)
	applog.SetDefault(zl)

	db, err := repos.OpenDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		zl.Fatal("open database", zap.Error(err))
	}

	infra := handlers.Infra{Log: zl, Tracer: tp}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, PoolSize: 100})
		if err := rdb.Ping(ctx).Err(); err != nil {
			zl.Fatal("connect redis", zap.Error(err))
		}
		infra.Guests = repos.NewRedisGuestRegistry(rdb, cfg.GuestCartTTL)
		zl.Info("connected to redis")
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, tp)
		if err != nil {
			zl.Fatal("kafka publisher", zap.Error(err))
		}
		infra.Events = pub
	}

	deps := handlers.NewDeps(db, cfg, infra)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
	})
	// Global body size guard
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimitPerMin,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/healthz")
		},
	}))
	app.Use(csrf.New(csrf.Config{
		KeyLookup:      "header:X-Csrf-Token",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		CookieSecure:   cfg.CookieSecure,
		Next: func(c *fiber.Ctx) bool {
			// guest cart calls carry no session cookie
			return handlers.IsGuestAPI(c.Path())
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Security(c, "csrf.fail", nil)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"success": false, "message": "Security check failed. Please refresh and try again."})
		},
	}))

	deps.Register(app)

	var wg sync.WaitGroup
	if cfg.SweepInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			deps.Cart.RunSweeper(ctx, cfg.SweepInterval)
		}()
		zl.Info("expired guest line sweeper started", zap.Duration("interval", cfg.SweepInterval))
	}

	go func() {
		zl.Info("http server listening", zap.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			zl.Error("http server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("shutting down...")
	cancel()

	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		zl.Error("http shutdown", zap.Error(err))
	}
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := deps.Cart.Events.Close(); err != nil {
		zl.Error("close event publisher", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		zl.Error("shutdown tracing", zap.Error(err))
	}
	if err := shutdownLogs(shutdownCtx); err != nil {
		zl.Error("shutdown log export", zap.Error(err))
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	_ = db.Close()
	zl.Info("connections closed")
}
