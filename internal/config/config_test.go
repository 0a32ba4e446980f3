package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_DRIVER", "GUEST_CART_TTL", "SWEEP_INTERVAL", "KAFKA_BROKERS", "COOKIE_SECURE", "RATE_LIMIT_PER_MIN"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 24*time.Hour, cfg.GuestCartTTL)
	assert.Zero(t, cfg.SweepInterval)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GUEST_CART_TTL", "90m")
	t.Setenv("SWEEP_INTERVAL", "30s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("COOKIE_SECURE", "true")
	t.Setenv("DB_DRIVER", "postgres")

	cfg := Load()
	assert.Equal(t, 90*time.Minute, cfg.GuestCartTTL)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, "postgres", cfg.DBDriver)
}

func TestLoadBadValuesFallBack(t *testing.T) {
	t.Setenv("GUEST_CART_TTL", "a day")
	t.Setenv("SWEEP_INTERVAL", "-5s")
	t.Setenv("RATE_LIMIT_PER_MIN", "many")

	cfg := Load()
	assert.Equal(t, 24*time.Hour, cfg.GuestCartTTL)
	assert.Zero(t, cfg.SweepInterval)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
	assert.Len(t, cfg.Warnings, 3)
}
