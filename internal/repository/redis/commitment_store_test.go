package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"

	"creator-auth/internal/client"
	"creator-auth/internal/config"
	"creator-auth/internal/model"
)

func newRedisClient(t *testing.T) *client.RedisClient {
	t.Helper()
	if testing.Short() {
		t.Skip("redis container tests skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	uri, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)

	rc, err := client.NewRedisClient(&config.Config{Redis: config.RedisConfig{URL: uri, PoolSize: 4}}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })
	return rc
}

func TestRedisCommitmentStore(t *testing.T) {
	rc := newRedisClient(t)
	store := NewCommitmentStore(rc)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	first := &model.OTPCommitment{
		EmailNormalized: "user@example.com",
		CodeDigest:      "aaaa",
		ExpiresAt:       now.Add(10 * time.Minute),
		LastSentAt:      now,
	}
	require.NoError(t, store.Upsert(ctx, first))

	got, err := store.Get(ctx, "User@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "aaaa", got.CodeDigest)
	assert.True(t, got.ExpiresAt.Equal(first.ExpiresAt))
	assert.True(t, got.LastSentAt.Equal(now))

	second := *first
	second.CodeDigest = "bbbb"
	second.LastSentAt = now.Add(time.Minute)
	require.NoError(t, store.Upsert(ctx, &second))

	got, err = store.Get(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "bbbb", got.CodeDigest)

	ttl, err := rc.Client.PTTL(ctx, commitmentPrefix+"user@example.com").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, store.Delete(ctx, "user@example.com"))
	_, err = store.Get(ctx, "user@example.com")
	assert.ErrorIs(t, err, model.ErrCommitmentNotFound)

	require.NoError(t, store.HealthCheck(ctx))
}

func TestRedisAttemptLimiter(t *testing.T) {
	rc := newRedisClient(t)
	limiter := NewAttemptLimiter(rc)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		n, err := limiter.Increment(ctx, "user@example.com", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	require.NoError(t, limiter.Reset(ctx, "user@example.com"))
	n, err := limiter.Increment(ctx, "user@example.com", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
