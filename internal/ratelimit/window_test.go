package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/open-tvbox/boxhub/internal/store"
)

func TestAllow_LimitExceededWithinWindow(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	w := NewWindow(store.NewMemoryCache(), func() time.Time { return now })

	for i := 0; i < 60; i++ {
		result := w.Allow(context.Background(), "1.2.3.4", 60, time.Minute)
		if !result.Allowed {
			t.Fatalf("request %d: expected allowed", i+1)
		}
	}

	result := w.Allow(context.Background(), "1.2.3.4", 60, time.Minute)
	if result.Allowed {
		t.Fatal("61st request: expected denied")
	}
	if result.Remaining != 0 {
		t.Fatalf("expected remaining=0, got %d", result.Remaining)
	}
}

func TestAllow_WindowRollover(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	w := NewWindow(store.NewMemoryCache(), func() time.Time { return now })

	for i := 0; i < 61; i++ {
		w.Allow(context.Background(), "1.2.3.4", 60, time.Minute)
	}

	now = now.Add(time.Minute)
	result := w.Allow(context.Background(), "1.2.3.4", 60, time.Minute)
	if !result.Allowed {
		t.Fatal("first request after rollover: expected allowed")
	}
	if result.Remaining != 59 {
		t.Fatalf("expected remaining=59, got %d", result.Remaining)
	}
}

func TestAllow_IndependentClients(t *testing.T) {
	w := NewWindow(store.NewMemoryCache(), nil)

	for i := 0; i < 5; i++ {
		w.Allow(context.Background(), "1.1.1.1", 5, time.Minute)
	}
	if result := w.Allow(context.Background(), "1.1.1.1", 5, time.Minute); result.Allowed {
		t.Fatal("expected first client over limit")
	}
	if result := w.Allow(context.Background(), "2.2.2.2", 5, time.Minute); !result.Allowed {
		t.Fatal("expected second client under limit")
	}
}

// failingCache always errors to exercise the fail-open path.
type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("down")
}

func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("down")
}

func (failingCache) DeletePrefix(context.Context, string) error {
	return errors.New("down")
}

func (failingCache) Increment(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("down")
}

func TestAllow_FailOpenOnCacheError(t *testing.T) {
	w := NewWindow(failingCache{}, nil)
	if result := w.Allow(context.Background(), "1.2.3.4", 1, time.Minute); !result.Allowed {
		t.Fatal("expected fail-open on cache error")
	}
}

func TestAllow_ZeroLimitDisabled(t *testing.T) {
	w := NewWindow(store.NewMemoryCache(), nil)
	if result := w.Allow(context.Background(), "1.2.3.4", 0, time.Minute); !result.Allowed {
		t.Fatal("expected zero limit to disable the check")
	}
}
