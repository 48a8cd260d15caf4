package usage

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/raaihank/confidenceboost/internal/config"
	"golang.org/x/time/rate"
)

// MemoryLimiter keeps one token bucket per client. A full bucket holds the
// daily limit and refills evenly across the window.
type MemoryLimiter struct {
	limit   int
	window  time.Duration
	buckets map[string]*bucket
	mu      sync.RWMutex
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	mu       sync.Mutex
}

// NewMemoryLimiter creates an in-process limiter
func NewMemoryLimiter(cfg config.UsageConfig) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   cfg.DailyLimit,
		window:  cfg.Window,
		buckets: make(map[string]*bucket),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
}

// Allow consumes one rewrite for the client
func (m *MemoryLimiter) Allow(_ context.Context, clientID string) (Decision, error) {
	now := m.now()
	b := m.getBucket(clientID, now)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastSeen = now

	if b.limiter.AllowN(now, 1) {
		return m.decision(b, now, true), nil
	}
	return m.decision(b, now, false), nil
}

// Peek reports quota without consuming it
func (m *MemoryLimiter) Peek(_ context.Context, clientID string) (Decision, error) {
	now := m.now()

	m.mu.RLock()
	b, exists := m.buckets[clientID]
	m.mu.RUnlock()

	if !exists {
		return Decision{Allowed: true, Limit: m.limit, Remaining: m.limit}, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	d := m.decision(b, now, true)
	d.Allowed = d.Remaining > 0
	return d, nil
}

func (m *MemoryLimiter) decision(b *bucket, now time.Time, allowed bool) Decision {
	remaining := int(math.Floor(b.limiter.TokensAt(now)))
	if remaining < 0 {
		remaining = 0
	}

	d := Decision{
		Allowed:   allowed,
		Limit:     m.limit,
		Remaining: remaining,
		Used:      m.limit - remaining,
	}
	if !allowed {
		r := b.limiter.ReserveN(now, 1)
		d.RetryAfter = r.DelayFrom(now)
		r.CancelAt(now)
	}
	return d
}

// getBucket gets or creates the bucket for a client
func (m *MemoryLimiter) getBucket(clientID string, now time.Time) *bucket {
	m.mu.RLock()
	b, exists := m.buckets[clientID]
	m.mu.RUnlock()

	if exists {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if b, exists := m.buckets[clientID]; exists {
		return b
	}

	b = &bucket{
		limiter:  rate.NewLimiter(rate.Every(m.window/time.Duration(m.limit)), m.limit),
		lastSeen: now,
	}
	m.buckets[clientID] = b
	return b
}

// CleanupOldBuckets drops buckets idle for a full window; they would be full again anyway
func (m *MemoryLimiter) CleanupOldBuckets() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.window)
	removed := 0
	for id, b := range m.buckets {
		b.mu.Lock()
		if b.lastSeen.Before(cutoff) {
			delete(m.buckets, id)
			removed++
		}
		b.mu.Unlock()
	}
	return removed
}

// StartCleanupRoutine starts a background routine to clean up old buckets
func (m *MemoryLimiter) StartCleanupRoutine(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.CleanupOldBuckets()
			case <-m.stop:
				return
			}
		}
	}()
}

// Close stops the cleanup routine
func (m *MemoryLimiter) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}
