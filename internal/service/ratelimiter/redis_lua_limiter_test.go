package ratelimiter

import (
	"context"
	"math"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisLuaLimiter(t *testing.T) (*RedisLuaLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLuaLimiter(rdb, nil), mr
}

func TestNewBucketConfigFromPerHour(t *testing.T) {
	cfg := NewBucketConfigFromPerHour(3600)
	assert.Equal(t, int64(3600), cfg.Capacity)
	assert.Equal(t, 1.0, cfg.RefillRate)
	assert.Equal(t, BucketConfig{}, NewBucketConfigFromPerHour(0))
}

func TestAllow_NilLimiter_FailOpen(t *testing.T) {
	var limiter *RedisLuaLimiter
	allowed, retryAfter, err := limiter.Allow(context.Background(), "invite:a1", 1)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Zero(t, retryAfter)

	ok, err := limiter.Gate().Allow(context.Background(), "invite:a1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewRedisLuaLimiter_NilClient(t *testing.T) {
	assert.Nil(t, NewRedisLuaLimiter(nil, nil))
}

func TestAllow_NoBucketConfig_FailOpen(t *testing.T) {
	limiter, _ := newTestRedisLuaLimiter(t)
	allowed, retryAfter, err := limiter.Allow(context.Background(), "unknown:x", 1)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Zero(t, retryAfter)
}

func TestAllow_PerSenderBuckets(t *testing.T) {
	limiter, _ := newTestRedisLuaLimiter(t)
	limiter.SetBucketConfig("invite", BucketConfig{Capacity: 3, RefillRate: 0.000001})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, retryAfter, err := limiter.Allow(ctx, "invite:a1", 1)
		require.NoError(t, err, "call %d", i)
		assert.True(t, allowed, "call %d", i)
		assert.Zero(t, retryAfter)
	}
	allowed, retryAfter, err := limiter.Allow(ctx, "invite:a1", 1)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))

	// another sender has its own bucket
	ok, err := limiter.Gate().Allow(ctx, "invite:a2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAllow_RefillsOverTime(t *testing.T) {
	limiter, _ := newTestRedisLuaLimiter(t)
	limiter.SetBucketConfig("invite", BucketConfig{Capacity: 1, RefillRate: 1})
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _, err := limiter.Allow(ctx, "invite:a1", 1)
	require.NoError(t, err)
	require.True(t, ok)
	ok, _, err = limiter.Allow(ctx, "invite:a1", 1)
	require.NoError(t, err)
	require.False(t, ok)

	now = now.Add(2 * time.Second)
	ok, _, err = limiter.Allow(ctx, "invite:a1", 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAllow_BucketKeyExpires(t *testing.T) {
	limiter, mr := newTestRedisLuaLimiter(t)
	limiter.SetBucketConfig("invite", NewBucketConfigFromPerHour(10))
	_, _, err := limiter.Allow(context.Background(), "invite:a1", 1)
	require.NoError(t, err)
	require.True(t, mr.Exists("rate:invite:a1"))
	ttl := mr.TTL("rate:invite:a1")
	assert.Greater(t, ttl, 59*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour+time.Second)
}

func TestAllow_RedisDown_FailsOpenWithError(t *testing.T) {
	limiter, mr := newTestRedisLuaLimiter(t)
	limiter.SetBucketConfig("invite", BucketConfig{Capacity: 1, RefillRate: 1})
	mr.Close()

	ok, err := limiter.Gate().Allow(context.Background(), "invite:a1")
	assert.Error(t, err)
	assert.True(t, ok)
}

func TestSetBucketConfig_NilSafe(_ *testing.T) {
	var limiter *RedisLuaLimiter
	limiter.SetBucketConfig("invite", BucketConfig{Capacity: 1, RefillRate: 1})
}

func TestToInt64AndToFloat64(t *testing.T) {
	assert.Equal(t, int64(5), toInt64(int64(5)))
	assert.Equal(t, int64(3), toInt64(3))
	assert.Equal(t, int64(7), toInt64(7.9))
	assert.Equal(t, int64(0), toInt64("x"))

	assert.Equal(t, 1.5, toFloat64(1.5))
	assert.Equal(t, 2.0, toFloat64(int64(2)))
	assert.Equal(t, 0.25, toFloat64("0.25"))
	assert.True(t, math.IsNaN(toFloat64("nan-ish")))
	assert.True(t, math.IsNaN(toFloat64(nil)))
}
