package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a Redis-backed Cache shared by all gateway processes.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache constructs a RedisCache and verifies connectivity.
func NewRedisCache(ctx context.Context, opts *redis.Options, prefix string) (*RedisCache, error) {
	client := redis.NewClient(opts)
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, fmt.Errorf("store: redis ping: %w", errPing)
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = "boxhub"
	}
	return &RedisCache{client: client, prefix: prefix}, nil
}

func (r *RedisCache) key(key string) string {
	return r.prefix + ":" + key
}

// Get returns the stored value and whether the key was present.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, errGet := r.client.Get(ctx, r.key(key)).Bytes()
	if errGet != nil {
		if errors.Is(errGet, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("store: redis get: %w", errGet)
	}
	return value, true, nil
}

// Set stores a value with the given TTL.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if errSet := r.client.Set(ctx, r.key(key), value, ttl).Err(); errSet != nil {
		return fmt.Errorf("store: redis set: %w", errSet)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (r *RedisCache) DeletePrefix(ctx context.Context, prefix string) error {
	iter := r.client.Scan(ctx, 0, r.key(prefix)+"*", 256).Iterator()
	for iter.Next(ctx) {
		if errDel := r.client.Del(ctx, iter.Val()).Err(); errDel != nil {
			return fmt.Errorf("store: redis delete: %w", errDel)
		}
	}
	if errIter := iter.Err(); errIter != nil {
		return fmt.Errorf("store: redis scan: %w", errIter)
	}
	return nil
}

// Increment atomically increments a counter key, creating it when absent.
func (r *RedisCache) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	full := r.key(key)
	count, errIncr := r.client.Incr(ctx, full).Result()
	if errIncr != nil {
		return 0, fmt.Errorf("store: redis incr: %w", errIncr)
	}
	if count == 1 {
		if errExpire := r.client.Expire(ctx, full, ttl).Err(); errExpire != nil {
			return count, fmt.Errorf("store: redis expire: %w", errExpire)
		}
	}
	return count, nil
}

// Close releases the underlying client.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
