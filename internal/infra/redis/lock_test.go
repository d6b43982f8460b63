//go:build integration

package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"activation-service/internal/config"
	"activation-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	c, err := NewClient(context.Background(), &config.RedisConfig{URL: url})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()
	locker := NewLocker(newTestClient(t))
	key := "activation:lock:TEST" + time.Now().Format("150405.000")

	token, err := locker.TryLock(ctx, key, 2*time.Second)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, err = locker.TryLock(ctx, key, 2*time.Second)
	assert.True(t, errors.Is(err, domain.ErrLockNotAcquired), "second holder must be refused, got %v", err)

	// A stale token must not release someone else's lock.
	require.NoError(t, locker.Unlock(ctx, key, "not-the-token"))
	_, err = locker.TryLock(ctx, key, 2*time.Second)
	assert.Error(t, err)

	require.NoError(t, locker.Unlock(ctx, key, token))
	token2, err := locker.TryLock(ctx, key, 2*time.Second)
	require.NoError(t, err)
	require.NoError(t, locker.Unlock(ctx, key, token2))
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	require.NoError(t, c.Set(ctx, "activation:test:k", "v", time.Second))
	v, err := c.Get(ctx, "activation:test:k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	require.NoError(t, c.Del(ctx, "activation:test:k"))
}
