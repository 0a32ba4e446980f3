package repos

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const retiredGuestPrefix = "guest:retired:"

// RedisGuestRegistry remembers guest ids whose cart was merged into a user
// cart, so later writes under that id are refused.
type RedisGuestRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuestRegistry(client *redis.Client, ttl time.Duration) *RedisGuestRegistry {
	return &RedisGuestRegistry{client: client, ttl: ttl}
}

// Retire marks the guest id. Retiring twice is not an error.
func (r *RedisGuestRegistry) Retire(ctx context.Context, guestID string) error {
	_, err := r.client.SetNX(ctx, retiredGuestPrefix+guestID, 1, r.ttl).Result()
	return err
}

func (r *RedisGuestRegistry) Retired(ctx context.Context, guestID string) (bool, error) {
	n, err := r.client.Exists(ctx, retiredGuestPrefix+guestID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemoryGuestRegistry is the single-process fallback used when no Redis is configured.
type MemoryGuestRegistry struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	until map[string]time.Time
}

func NewMemoryGuestRegistry(ttl time.Duration, now func() time.Time) *MemoryGuestRegistry {
	if now == nil {
		now = time.Now
	}
	return &MemoryGuestRegistry{ttl: ttl, now: now, until: map[string]time.Time{}}
}

func (m *MemoryGuestRegistry) Retire(_ context.Context, guestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if exp, ok := m.until[guestID]; ok && exp.After(now) {
		return nil
	}
	m.until[guestID] = now.Add(m.ttl)
	// drop stale entries so the map does not grow without bound
	for id, exp := range m.until {
		if !exp.After(now) {
			delete(m.until, id)
		}
	}
	return nil
}

func (m *MemoryGuestRegistry) Retired(_ context.Context, guestID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.until[guestID]
	return ok && exp.After(m.now()), nil
}
