package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b3-tracker/internal/config"
	apperrors "b3-tracker/internal/errors"
)

func TestMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)
	defer c.Close()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, apperrors.ErrCacheMiss)
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)

	require.NoError(t, c.Set(ctx, "short", []byte("x"), 10*time.Millisecond))
	require.NoError(t, c.Set(ctx, "forever", []byte("y"), 0))
	time.Sleep(30 * time.Millisecond)

	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, apperrors.ErrCacheMiss)
	_, err = c.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(0)

	type quote struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price"`
	}

	key := Key("quote", "PETR4.SA")
	assert.Equal(t, "b3tracker:quote:PETR4.SA", key)

	require.NoError(t, SetJSON(ctx, c, key, quote{"PETR4.SA", 37.5}, time.Minute))
	got, err := GetJSON[quote](ctx, c, key)
	require.NoError(t, err)
	assert.Equal(t, 37.5, got.Price)

	_, err = GetJSON[quote](ctx, c, Key("quote", "NONE"))
	assert.ErrorIs(t, err, apperrors.ErrCacheMiss)
}

func TestNew(t *testing.T) {
	c, err := New(config.CacheConfig{Backend: config.CacheMemory})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	_, err = New(config.CacheConfig{Backend: "memcached"})
	assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)

	// nothing listens on port 1
	_, err = New(config.CacheConfig{Backend: config.CacheRedis, RedisAddr: "127.0.0.1:1"})
	assert.Error(t, err)
}
