package usage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/raaihank/confidenceboost/internal/config"
	"go.uber.org/zap"
)

func testUsageConfig() config.UsageConfig {
	return config.UsageConfig{
		Enabled:    true,
		Backend:    "memory",
		DailyLimit: 10,
		Window:     24 * time.Hour,
		KeyPrefix:  "test",
	}
}

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	newLimiter := func() *MemoryLimiter {
		l := NewMemoryLimiter(testUsageConfig())
		l.now = func() time.Time { return clock }
		return l
	}

	t.Run("DailyLimit", func(t *testing.T) {
		l := newLimiter()
		for i := 1; i <= 10; i++ {
			d, err := l.Allow(ctx, "alice")
			if err != nil {
				t.Fatalf("Allow failed: %v", err)
			}
			if !d.Allowed {
				t.Fatalf("Request %d should be allowed", i)
			}
			if d.Used != i || d.Remaining != 10-i {
				t.Errorf("Request %d: unexpected decision %+v", i, d)
			}
		}

		d, _ := l.Allow(ctx, "alice")
		if d.Allowed {
			t.Error("11th request should be denied")
		}
		if d.RetryAfter <= 0 {
			t.Errorf("Expected positive retry-after, got %s", d.RetryAfter)
		}
	})

	t.Run("ClientsAreIndependent", func(t *testing.T) {
		l := newLimiter()
		for i := 0; i < 10; i++ {
			l.Allow(ctx, "alice")
		}
		d, _ := l.Allow(ctx, "bob")
		if !d.Allowed || d.Remaining != 9 {
			t.Errorf("Bob should have his own quota: %+v", d)
		}
	})

	t.Run("Refill", func(t *testing.T) {
		l := newLimiter()
		now := clock
		l.now = func() time.Time { return now }
		for i := 0; i < 10; i++ {
			l.Allow(ctx, "alice")
		}

		now = now.Add(24 * time.Hour)
		d, _ := l.Allow(ctx, "alice")
		if !d.Allowed {
			t.Error("Quota should refill after a full window")
		}
	})

	t.Run("PeekDoesNotConsume", func(t *testing.T) {
		l := newLimiter()
		d, _ := l.Peek(ctx, "carol")
		if !d.Allowed || d.Remaining != 10 {
			t.Errorf("Unexpected peek for new client: %+v", d)
		}

		l.Allow(ctx, "carol")
		l.Peek(ctx, "carol")
		d, _ = l.Peek(ctx, "carol")
		if d.Remaining != 9 {
			t.Errorf("Peek consumed quota: %+v", d)
		}
	})

	t.Run("Cleanup", func(t *testing.T) {
		l := newLimiter()
		now := clock
		l.now = func() time.Time { return now }
		l.Allow(ctx, "dave")

		now = now.Add(25 * time.Hour)
		if removed := l.CleanupOldBuckets(); removed != 1 {
			t.Errorf("Expected 1 bucket removed, got %d", removed)
		}
	})
}

func TestNewLimiter(t *testing.T) {
	logger := zap.NewNop()

	t.Run("Disabled", func(t *testing.T) {
		cfg := testUsageConfig()
		cfg.Enabled = false
		l, err := New(cfg, logger)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		d, _ := l.Allow(context.Background(), "anyone")
		if !d.Allowed {
			t.Error("Disabled limiter must allow everything")
		}
	})

	t.Run("Memory", func(t *testing.T) {
		l, err := New(testUsageConfig(), logger)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer l.Close()
		if _, ok := l.(*MemoryLimiter); !ok {
			t.Errorf("Expected memory limiter, got %T", l)
		}
	})

	t.Run("UnknownBackend", func(t *testing.T) {
		cfg := testUsageConfig()
		cfg.Backend = "etcd"
		if _, err := New(cfg, logger); err == nil {
			t.Error("Expected error for unknown backend")
		}
	})
}

func TestRedisWindowKey(t *testing.T) {
	r := newRedisLimiter(nil, testUsageConfig(), zap.NewNop())
	now := time.Date(2026, 10, 16, 15, 30, 0, 0, time.UTC)

	key, resetAt := r.windowKey("alice", now)
	if !strings.HasPrefix(key, "test:usage:alice:") {
		t.Errorf("Unexpected key %q", key)
	}
	if !resetAt.Equal(time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Window should end at UTC midnight, got %s", resetAt)
	}

	later, _ := r.windowKey("alice", now.Add(time.Hour))
	if later != key {
		t.Error("Same window must share a key")
	}
	tomorrow, _ := r.windowKey("alice", now.Add(12*time.Hour))
	if tomorrow == key {
		t.Error("Next window must use a new key")
	}

	d := r.decision(11, now, resetAt)
	if d.Allowed || d.Remaining != 0 || d.RetryAfter != 8*time.Hour+30*time.Minute {
		t.Errorf("Unexpected over-limit decision %+v", d)
	}
}
