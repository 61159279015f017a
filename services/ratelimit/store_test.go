package ratelimit

import (
	"testing"
	"time"

	"github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
)

func TestNewRedisClient_NoAddress(t *testing.T) {
	client, err := NewRedisClient(core.NewTestConfig())
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewStore_MemoryFallback(t *testing.T) {
	store := NewStore(nil, 3)
	_, ok := store.(*middleware.RateLimiterMemoryStore)
	require.True(t, ok)

	for i := 0; i < 3; i++ {
		allowed, err := store.Allow("10.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed, "hit %d", i+1)
	}
	allowed, _ := store.Allow("10.0.0.1")
	assert.False(t, allowed)

	allowed, _ = store.Allow("10.0.0.2")
	assert.True(t, allowed)
}

func TestRedisStore_KeyWindow(t *testing.T) {
	store := NewRedisStore(nil, 5, time.Minute)
	base := time.Date(2024, 3, 1, 10, 0, 5, 0, time.UTC)

	store.nowFunc = func() time.Time { return base }
	k1 := store.key("10.0.0.1")
	store.nowFunc = func() time.Time { return base.Add(30 * time.Second) }
	k2 := store.key("10.0.0.1")
	store.nowFunc = func() time.Time { return base.Add(time.Minute) }
	k3 := store.key("10.0.0.1")

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Contains(t, k1, keyPrefix+"10.0.0.1:")
}
