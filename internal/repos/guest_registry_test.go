package repos_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/repos"
)

func TestMemoryGuestRegistry(t *testing.T) {
	ctx := context.Background()
	now := t0
	reg := repos.NewMemoryGuestRegistry(time.Hour, func() time.Time { return now })

	retired, err := reg.Retired(ctx, "g-1")
	require.NoError(t, err)
	assert.False(t, retired)

	require.NoError(t, reg.Retire(ctx, "g-1"))
	require.NoError(t, reg.Retire(ctx, "g-1"))
	retired, _ = reg.Retired(ctx, "g-1")
	assert.True(t, retired)

	now = now.Add(61 * time.Minute)
	retired, _ = reg.Retired(ctx, "g-1")
	assert.False(t, retired, "retirement lapses with the guest TTL")
}

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestRedisGuestRegistry(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	reg := repos.NewRedisGuestRegistry(client, time.Minute)
	id := "test-" + uuid.NewString()
	defer client.Del(ctx, "guest:retired:"+id)

	retired, err := reg.Retired(ctx, id)
	require.NoError(t, err)
	assert.False(t, retired)

	require.NoError(t, reg.Retire(ctx, id))
	require.NoError(t, reg.Retire(ctx, id))
	retired, err = reg.Retired(ctx, id)
	require.NoError(t, err)
	assert.True(t, retired)

	ttl, err := client.TTL(ctx, "guest:retired:"+id).Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= time.Minute)
}
