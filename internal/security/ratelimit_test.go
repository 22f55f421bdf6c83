package security

import (
	"context"
	"testing"
	"time"
)

func TestLimiterExactQuota(t *testing.T) {
	l := NewLimiter(NewMemoryRateLimitStore(), true)
	ctx := context.Background()

	// Exactly max requests succeed.
	for i := 0; i < 5; i++ {
		res, err := l.Check(ctx, "key", 5, time.Minute)
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d rejected, want allowed", i+1)
		}
		if res.Remaining != 5-(i+1) {
			t.Errorf("request %d: Remaining = %d, want %d", i+1, res.Remaining, 5-(i+1))
		}
	}

	// The next one fails.
	res, err := l.Check(ctx, "key", 5, time.Minute)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Allowed {
		t.Fatal("request 6 allowed, want rejected")
	}
	if res.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", res.Remaining)
	}
	if res.ResetTime.IsZero() {
		t.Error("ResetTime must be set on rejection")
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := NewLimiter(NewMemoryRateLimitStore(), true)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		l.Check(ctx, "a", 3, time.Minute)
	}
	if res, _ := l.Check(ctx, "a", 3, time.Minute); res.Allowed {
		t.Fatal("key a should be exhausted")
	}
	if res, _ := l.Check(ctx, "b", 3, time.Minute); !res.Allowed {
		t.Fatal("key b should be unaffected")
	}
}

func TestLimiterWindowReset(t *testing.T) {
	l := NewLimiter(NewMemoryRateLimitStore(), true)
	ctx := context.Background()

	window := 20 * time.Millisecond
	for i := 0; i < 2; i++ {
		l.Check(ctx, "key", 2, window)
	}
	if res, _ := l.Check(ctx, "key", 2, window); res.Allowed {
		t.Fatal("quota should be exhausted")
	}

	time.Sleep(window + 10*time.Millisecond)

	if res, _ := l.Check(ctx, "key", 2, window); !res.Allowed {
		t.Fatal("a fresh window should allow requests again")
	}
}

func TestLimiterForgive(t *testing.T) {
	l := NewLimiter(NewMemoryRateLimitStore(), true)
	ctx := context.Background()

	// Count then forgive: the slot is returned to the window.
	for i := 0; i < 3; i++ {
		l.Check(ctx, "key", 3, time.Minute)
		l.Forgive(ctx, "key")
	}
	if res, _ := l.Check(ctx, "key", 3, time.Minute); !res.Allowed {
		t.Fatal("forgiven requests must not consume quota")
	}
}

func TestLimiterDisabled(t *testing.T) {
	l := NewLimiter(NewMemoryRateLimitStore(), false)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		res, err := l.Check(ctx, "key", 1, time.Minute)
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if !res.Allowed {
			t.Fatal("a disabled limiter must allow everything")
		}
	}
}
