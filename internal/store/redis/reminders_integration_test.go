//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func startRedis(t *testing.T) *goredis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start redis container")

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := NewClient(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRemindersMarkSentOnce(t *testing.T) {
	ctx := context.Background()
	client := startRedis(t)

	r := NewReminders(client)
	require.NoError(t, r.Ping(ctx))

	first, err := r.MarkSent(ctx, "payment-reminder:p1:2026-04-03", time.Second)
	require.NoError(t, err)
	assert.True(t, first)

	first, err = r.MarkSent(ctx, "payment-reminder:p1:2026-04-03", time.Second)
	require.NoError(t, err)
	assert.False(t, first)

	ttl, err := client.TTL(ctx, keyPrefix+"payment-reminder:p1:2026-04-03").Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)

	require.Eventually(t, func() bool {
		first, err := r.MarkSent(ctx, "payment-reminder:p1:2026-04-03", time.Second)
		return err == nil && first
	}, 5*time.Second, 100*time.Millisecond, "key expires with its ttl")
}

func TestRateLimiterSharedWindow(t *testing.T) {
	ctx := context.Background()
	client := startRedis(t)

	now := time.Date(2026, time.April, 3, 8, 30, 10, 0, time.UTC)
	a := NewRateLimiter(client, 2, time.Minute)
	b := NewRateLimiter(client, 2, time.Minute)
	a.now = func() time.Time { return now }
	b.now = a.now

	for _, l := range []*RateLimiter{a, b} {
		allowed, err := l.Allow(ctx, "192.0.2.7")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, err := a.Allow(ctx, "192.0.2.7")
	require.NoError(t, err)
	assert.False(t, allowed, "replicas share one budget")

	now = now.Add(time.Minute)
	allowed, err = b.Allow(ctx, "192.0.2.7")
	require.NoError(t, err)
	assert.True(t, allowed, "next window starts fresh")
}
