// Package cache provides the TTL cache used in front of the quote and
// fundamentals providers.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"b3-tracker/internal/config"
	apperrors "b3-tracker/internal/errors"
)

const keyPrefix = "b3tracker"

// Cache stores opaque values with a time-to-live. Get returns
// apperrors.ErrCacheMiss for absent or expired keys.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// New builds the cache backend selected by cfg.
func New(cfg config.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "", config.CacheMemory:
		return NewMemory(cfg.CleanupInterval), nil
	case config.CacheRedis:
		return NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, apperrors.NewValidationError("cache.backend", cfg.Backend, "unknown cache backend")
	}
}

// Key joins parts into a namespaced cache key.
func Key(parts ...string) string {
	return keyPrefix + ":" + strings.Join(parts, ":")
}

// GetJSON reads and decodes a cached value.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, error) {
	var v T
	data, err := c.Get(ctx, key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return v, nil
}

// SetJSON encodes and stores a value.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.Set(ctx, key, data, ttl)
}
