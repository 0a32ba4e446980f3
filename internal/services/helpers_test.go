package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"storefront/internal/events"
	"storefront/internal/repos"
	"storefront/internal/services"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []events.CartEvent
}

func (r *recorder) Publish(_ context.Context, evs ...events.CartEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evs...)
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type env struct {
	db    *sqlx.DB
	cart  *services.CartService
	clock *clock
	pub   *recorder
	logs  *observer.ObservedLogs
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := repos.OpenDB("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	core, logs := observer.New(zap.DebugLevel)
	clk := &clock{now: t0}
	pub := &recorder{}
	svc := services.NewCartService(db,
		repos.NewCartRepo(24*time.Hour),
		repos.NewInventoryRepo(),
		repos.NewProductRepo(),
		repos.NewJournalRepo(),
		services.WithClock(clk.Now),
		services.WithPublisher(pub),
		services.WithLogger(zap.New(core)),
	)
	return &env{db: db, cart: svc, clock: clk, pub: pub, logs: logs}
}

// variant inserts a variant of seeded product 1.
func (e *env) variant(t *testing.T, id int64, qty int) {
	t.Helper()
	_, err := e.db.Exec(`INSERT INTO variants(id, product_id, color_id, size_id, quantity, reserved) VALUES (?, 1, 1, 1, ?, 0)`, id, qty)
	require.NoError(t, err)
}

func (e *env) reserved(t *testing.T, id int64) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.Get(&n, `SELECT reserved FROM variants WHERE id = ?`, id))
	return n
}

// liveDemand sums the quantities of every live line that references id.
func (e *env) liveDemand(t *testing.T, id int64) int {
	t.Helper()
	var u, g int
	require.NoError(t, e.db.Get(&u, `SELECT COALESCE(SUM(quantity), 0) FROM user_carts WHERE variant_id = ?`, id))
	require.NoError(t, e.db.Get(&g, `SELECT COALESCE(SUM(quantity), 0) FROM guest_carts WHERE variant_id = ? AND expire_at > ?`, id, e.clock.Now()))
	return u + g
}

func (e *env) lineQty(t *testing.T, table, owner string, id int64) int {
	t.Helper()
	var n int
	err := e.db.Get(&n, `SELECT quantity FROM `+table+` WHERE owner_id = ? AND variant_id = ?`, owner, id)
	if err != nil {
		return 0
	}
	return n
}
