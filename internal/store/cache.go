package store

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is the shared TTL key-value contract used by rate limiting, category
// caching and the config snapshot.
type Cache interface {
	// Get returns the stored value and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
	// Increment atomically increments a counter key, creating it with the TTL
	// when absent, and returns the new count.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// MemoryCache is an in-process Cache backend.
type MemoryCache struct {
	inner *gocache.Cache
}

// NewMemoryCache constructs a MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{inner: gocache.New(gocache.NoExpiration, 5*time.Minute)}
}

// Get returns the stored value and whether the key was present.
func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	raw, found := m.inner.Get(key)
	if !found {
		return nil, false, nil
	}
	value, ok := raw.([]byte)
	if !ok {
		return nil, false, nil
	}
	return value, true, nil
}

// Set stores a value with the given TTL.
func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.inner.Set(key, value, ttl)
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (m *MemoryCache) DeletePrefix(_ context.Context, prefix string) error {
	for key := range m.inner.Items() {
		if strings.HasPrefix(key, prefix) {
			m.inner.Delete(key)
		}
	}
	return nil
}

// Increment atomically increments a counter key, creating it when absent.
func (m *MemoryCache) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	if errAdd := m.inner.Add(key, int64(1), ttl); errAdd == nil {
		return 1, nil
	}
	count, errIncr := m.inner.IncrementInt64(key, 1)
	if errIncr != nil {
		// Entry expired between Add and Increment; recreate it.
		m.inner.Set(key, int64(1), ttl)
		return 1, nil
	}
	return count, nil
}
