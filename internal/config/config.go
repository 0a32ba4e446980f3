package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	DBDriver string
	DBDSN    string
	LogFile  string
	LogLevel string

	GuestCartTTL    time.Duration
	SweepInterval   time.Duration // 0 disables the expired-line sweeper
	DefaultLocale   string
	CookieSecure    bool
	RateLimitPerMin int

	RedisAddr    string
	KafkaBrokers []string
	KafkaTopic   string
	OtelEndpoint string
	Version      string

	// Warnings collects values that failed to parse and fell back to defaults.
	Warnings []string
}

// Load reads .env (if present) and the process environment.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port:            env("PORT", "8080"),
		DBDriver:        env("DB_DRIVER", "sqlite"),
		DBDSN:           env("DB_DSN", "storefront.db"), // sqlite file in project root
		LogFile:         os.Getenv("LOG_FILE"),
		LogLevel:        env("LOG_LEVEL", "info"),
		DefaultLocale:   env("DEFAULT_LOCALE", "en"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		KafkaTopic:      env("KAFKA_TOPIC", "cart-events"),
		OtelEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Version:         env("APP_VERSION", "dev"),
		GuestCartTTL:    24 * time.Hour,
		RateLimitPerMin: 120,
	}
	if b := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); b != "" {
		for _, s := range strings.Split(b, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, s)
			}
		}
	}

	cfg.GuestCartTTL = cfg.duration("GUEST_CART_TTL", cfg.GuestCartTTL)
	cfg.SweepInterval = cfg.duration("SWEEP_INTERVAL", 0)
	cfg.RateLimitPerMin = cfg.integer("RATE_LIMIT_PER_MIN", cfg.RateLimitPerMin)
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			cfg.Warnings = append(cfg.Warnings, "COOKIE_SECURE: "+err.Error())
		}
		cfg.CookieSecure = b
	}
	return cfg
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (c *Config) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		c.Warnings = append(c.Warnings, key+": invalid duration "+strconv.Quote(v))
		return def
	}
	return d
}

func (c *Config) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		c.Warnings = append(c.Warnings, key+": invalid integer "+strconv.Quote(v))
		return def
	}
	return n
}
