package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alxgalache/kuadrat-backend/pkg/config"
)

func newMiniClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return NewFromRaw(raw), mr
}

func TestHitOpensWindowOnFirstRequest(t *testing.T) {
	ctx := context.Background()
	client, mr := newMiniClient(t)
	key := client.RateLimitKey("orders", "1.2.3.4")

	count, ttl, err := client.Hit(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, time.Minute, ttl)

	mr.FastForward(30 * time.Second)
	count, ttl, err = client.Hit(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, 30*time.Second, ttl)
	assert.Equal(t, 30*time.Second, mr.TTL(key))

	mr.FastForward(31 * time.Second)
	count, _, err = client.Hit(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSetNXAndGet(t *testing.T) {
	ctx := context.Background()
	client, _ := newMiniClient(t)
	key := client.IdempotencyKey("orders.create", "abc")

	ok, err := client.SetNX(ctx, key, "first", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.SetNX(ctx, key, "second", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	value, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "first", value)

	_, err = client.Get(ctx, client.IdempotencyKey("orders.create", "missing"))
	assert.ErrorIs(t, err, redis.Nil)
}

func TestReleaseIfOwner(t *testing.T) {
	ctx := context.Background()
	client, mr := newMiniClient(t)
	key := client.LockKey("payment-sweep")

	ok, err := client.SetNX(ctx, key, "me", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	released, err := client.ReleaseIfOwner(ctx, key, "someone-else")
	require.NoError(t, err)
	assert.False(t, released)
	assert.True(t, mr.Exists(key))

	released, err = client.ReleaseIfOwner(ctx, key, "me")
	require.NoError(t, err)
	assert.True(t, released)
	assert.False(t, mr.Exists(key))

	released, err = client.ReleaseIfOwner(ctx, key, "me")
	require.NoError(t, err)
	assert.False(t, released)
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	ctx := context.Background()
	assert.ErrorIs(t, client.Ping(ctx), errNotInitialized)
	_, _, err := client.Hit(ctx, "k", time.Second)
	assert.ErrorIs(t, err, errNotInitialized)
	_, err = client.ReleaseIfOwner(ctx, "k", "v")
	assert.ErrorIs(t, err, errNotInitialized)
	assert.NoError(t, client.Close())
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "kd:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	assert.Equal(t, "kd:rate_limit:orders:ip", client.RateLimitKey("orders", "ip"))
	assert.Equal(t, "kd:lock:payment_sweep", client.LockKey("payment_sweep"))
	assert.Equal(t, "kd:idempotency:id", client.IdempotencyKey(" ", "id"))
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://:pw@localhost:6380/2", PoolSize: 7, DB: 5})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 3, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, time.Second, opts.DialTimeout)
}
