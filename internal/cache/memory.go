package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	apperrors "b3-tracker/internal/errors"
)

// Memory is an in-process cache.
type Memory struct {
	c *gocache.Cache
}

// NewMemory creates an in-process cache. Expired entries are purged every
// cleanup interval.
func NewMemory(cleanup time.Duration) *Memory {
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	return &Memory{c: gocache.New(gocache.NoExpiration, cleanup)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, apperrors.ErrCacheMiss
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, apperrors.ErrCacheMiss
	}
	return data, nil
}

// Set stores value. A ttl of zero or less never expires.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m.c.Set(key, cp, ttl)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

// Len returns the number of stored entries, including expired ones not yet
// purged.
func (m *Memory) Len() int {
	return m.c.ItemCount()
}

func (m *Memory) Close() error {
	m.c.Flush()
	return nil
}
