package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, cfg), mr
}

func TestLimiterBlocksAfterBudget(t *testing.T) {
	l, _ := newTestLimiter(t, Config{MaxAttempts: 3, Window: time.Minute, Prefix: "t:"})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Check(ctx, "ana@x.com", ""); err != nil {
			t.Fatalf("attempt %d: unexpected %v", i, err)
		}
		if err := l.Fail(ctx, "ana@x.com", ""); err != nil {
			t.Fatalf("fail %d: %v", i, err)
		}
	}
	if err := l.Check(ctx, "ANA@x.com", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited for case-folded email, got %v", err)
	}
	if err := l.Check(ctx, "bia@x.com", ""); err != nil {
		t.Fatalf("other email must not be throttled: %v", err)
	}
}

func TestLimiterWindowExpires(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxAttempts: 1, Window: time.Minute})
	ctx := context.Background()

	if err := l.Fail(ctx, "ana@x.com", ""); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if err := l.Check(ctx, "ana@x.com", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	mr.FastForward(61 * time.Second)
	if err := l.Check(ctx, "ana@x.com", ""); err != nil {
		t.Fatalf("expected window to reset, got %v", err)
	}
}

func TestLimiterPerIPAndReset(t *testing.T) {
	l, _ := newTestLimiter(t, Config{MaxAttempts: 2, Window: time.Minute, PerIP: true})
	ctx := context.Background()

	_ = l.Fail(ctx, "a@x.com", "10.0.0.1")
	_ = l.Fail(ctx, "b@x.com", "10.0.0.1")
	if err := l.Check(ctx, "c@x.com", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP budget exhausted, got %v", err)
	}

	n, err := l.Attempts(ctx, "a@x.com")
	if err != nil || n != 1 {
		t.Fatalf("attempts = %d, %v; want 1", n, err)
	}
	if err := l.Reset(ctx, "c@x.com", "10.0.0.1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := l.Check(ctx, "c@x.com", "10.0.0.1"); err != nil {
		t.Fatalf("expected reset to clear IP counter, got %v", err)
	}
}

func TestLimiterRedisDown(t *testing.T) {
	l, mr := newTestLimiter(t, Config{MaxAttempts: 1, Window: time.Minute})
	mr.Close()

	if err := l.Check(context.Background(), "ana@x.com", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
