package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raaihank/confidenceboost/internal/config"
	"go.uber.org/zap"
)

// ErrLimitExceeded is returned by callers once a client has used its quota
var ErrLimitExceeded = errors.New("daily rewrite limit reached")

// Decision describes a client's quota after an Allow or Peek call
type Decision struct {
	Allowed    bool          `json:"allowed"`
	Used       int           `json:"used"`
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Limiter enforces the per-client rewrite quota
type Limiter interface {
	// Allow consumes one rewrite for the client if quota remains
	Allow(ctx context.Context, clientID string) (Decision, error)
	// Peek reports the client's quota without consuming it
	Peek(ctx context.Context, clientID string) (Decision, error)
	Close() error
}

// New creates the limiter selected by configuration
func New(cfg config.UsageConfig, logger *zap.Logger) (Limiter, error) {
	if !cfg.Enabled {
		return Unlimited{}, nil
	}

	switch cfg.Backend {
	case "memory":
		limiter := NewMemoryLimiter(cfg)
		limiter.StartCleanupRoutine(30 * time.Minute)
		logger.Info("Usage limiter initialized",
			zap.String("backend", "memory"),
			zap.Int("daily_limit", cfg.DailyLimit),
			zap.Duration("window", cfg.Window))
		return limiter, nil
	case "redis":
		limiter, err := NewRedisLimiter(cfg, logger)
		if err != nil {
			return nil, err
		}
		return limiter, nil
	default:
		return nil, fmt.Errorf("unknown usage backend: %s", cfg.Backend)
	}
}

// Unlimited allows every request
type Unlimited struct{}

// Allow always succeeds
func (Unlimited) Allow(context.Context, string) (Decision, error) {
	return Decision{Allowed: true, Remaining: -1, Limit: -1}, nil
}

// Peek always reports unlimited quota
func (Unlimited) Peek(context.Context, string) (Decision, error) {
	return Decision{Allowed: true, Remaining: -1, Limit: -1}, nil
}

// Close is a no-op
func (Unlimited) Close() error { return nil }
