package store

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const redisBreakerDuration = 30 * time.Second

// FallbackCache prefers a shared Redis backend and falls back to the
// in-process memory backend while Redis is unavailable. A short breaker stops
// every request from paying the Redis timeout during an outage.
type FallbackCache struct {
	primary  Cache
	fallback Cache
	nowFn    func() time.Time

	mu           sync.Mutex
	breakerUntil time.Time
}

// NewFallbackCache constructs a FallbackCache. primary may be nil, in which
// case the fallback backend serves everything.
func NewFallbackCache(primary, fallback Cache, nowFn func() time.Time) *FallbackCache {
	if fallback == nil {
		fallback = NewMemoryCache()
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &FallbackCache{primary: primary, fallback: fallback, nowFn: nowFn}
}

// Get returns the stored value and whether the key was present.
func (f *FallbackCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if backend := f.active(); backend != f.fallback {
		value, found, errGet := backend.Get(ctx, key)
		if errGet == nil {
			return value, found, nil
		}
		f.tripBreaker(errGet)
	}
	return f.fallback.Get(ctx, key)
}

// Set stores a value with the given TTL.
func (f *FallbackCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if backend := f.active(); backend != f.fallback {
		if errSet := backend.Set(ctx, key, value, ttl); errSet == nil {
			return nil
		} else {
			f.tripBreaker(errSet)
		}
	}
	return f.fallback.Set(ctx, key, value, ttl)
}

// DeletePrefix removes every key starting with prefix from both backends.
func (f *FallbackCache) DeletePrefix(ctx context.Context, prefix string) error {
	var errPrimary error
	if f.primary != nil {
		errPrimary = f.primary.DeletePrefix(ctx, prefix)
		if errPrimary != nil {
			f.tripBreaker(errPrimary)
		}
	}
	if errFallback := f.fallback.DeletePrefix(ctx, prefix); errFallback != nil {
		return errFallback
	}
	return errPrimary
}

// Increment atomically increments a counter key, creating it when absent.
func (f *FallbackCache) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if backend := f.active(); backend != f.fallback {
		count, errIncr := backend.Increment(ctx, key, ttl)
		if errIncr == nil {
			return count, nil
		}
		f.tripBreaker(errIncr)
	}
	return f.fallback.Increment(ctx, key, ttl)
}

// active returns the backend to use for the current call.
func (f *FallbackCache) active() Cache {
	if f.primary == nil {
		return f.fallback
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.breakerUntil.IsZero() {
		if f.nowFn().Before(f.breakerUntil) {
			return f.fallback
		}
		f.breakerUntil = time.Time{}
	}
	return f.primary
}

func (f *FallbackCache) tripBreaker(err error) {
	if err == nil {
		return
	}
	now := f.nowFn()
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.breakerUntil.IsZero() && now.Before(f.breakerUntil) {
		return
	}
	f.breakerUntil = now.Add(redisBreakerDuration)
	log.WithError(err).Warn("cache: redis unavailable, falling back to memory")
}
