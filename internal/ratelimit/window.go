package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/open-tvbox/boxhub/internal/store"
	log "github.com/sirupsen/logrus"
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Window enforces a fixed-window per-client-IP limit on the shared cache.
// Window keys rotate with the aligned window start, so counters reset by key
// rotation and expire via TTL rather than explicit deletes.
type Window struct {
	cache store.Cache
	nowFn func() time.Time
}

// NewWindow constructs a Window with default dependencies when nil.
func NewWindow(cache store.Cache, nowFn func() time.Time) *Window {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Window{cache: cache, nowFn: nowFn}
}

// Allow checks whether the client IP is under its limit for the current
// window and counts the request. Cache failures are fail-open: availability
// is preferred over strict enforcement for this check.
func (w *Window) Allow(ctx context.Context, clientIP string, limit int, window time.Duration) Result {
	if limit <= 0 || clientIP == "" || window <= 0 {
		return Result{Allowed: true, Remaining: limit}
	}

	now := w.nowFn()
	windowStart := now.UnixMilli() / window.Milliseconds() * window.Milliseconds()
	reset := time.UnixMilli(windowStart + window.Milliseconds())

	// TTL is the window length rounded up to whole seconds.
	ttl := time.Duration((window.Milliseconds()+999)/1000) * time.Second

	key := fmt.Sprintf("rl:%s:%d", clientIP, windowStart)
	count, errIncr := w.cache.Increment(ctx, key, ttl)
	if errIncr != nil {
		log.WithError(errIncr).Warn("ratelimit: counter unavailable, allowing request")
		return Result{Allowed: true, Remaining: limit, Reset: reset}
	}
	if count > int64(limit) {
		return Result{Allowed: false, Remaining: 0, Reset: reset}
	}
	return Result{Allowed: true, Remaining: limit - int(count), Reset: reset}
}
