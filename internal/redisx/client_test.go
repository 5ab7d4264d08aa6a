package redisx

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilCacheIsEmpty(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	var out map[string]string
	hit, err := c.GetJSON(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	first, err := c.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	require.NoError(t, c.SetJSON(ctx, "k", out, time.Minute))
	require.NoError(t, c.Del(ctx, "k"))
}

// Runs against a live Redis when REDIS_TEST_ADDR is set.
func TestCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := New(addr)
	t.Cleanup(func() { _ = rdb.Close() })
	c := NewCache(rdb)
	ctx := context.Background()

	key := fmt.Sprintf(KeyOrderStatus, uuid.NewString())
	t.Cleanup(func() { _ = c.Del(ctx, key) })

	require.NoError(t, c.SetJSON(ctx, key, map[string]string{"status": "CONFIRMED"}, time.Minute))
	var got map[string]string
	hit, err := c.GetJSON(ctx, key, &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "CONFIRMED", got["status"])

	dedup := fmt.Sprintf(KeyDedup, "test", uuid.NewString())
	t.Cleanup(func() { _ = c.Del(ctx, dedup) })
	first, err := c.Claim(ctx, dedup, time.Minute)
	require.NoError(t, err)
	assert.True(t, first)
	again, err := c.Claim(ctx, dedup, time.Minute)
	require.NoError(t, err)
	assert.False(t, again)
}
