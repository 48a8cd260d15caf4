package usage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/raaihank/confidenceboost/internal/config"
	"go.uber.org/zap"
)

// RedisLimiter counts rewrites per client in fixed windows aligned to UTC,
// so several service instances share one quota
type RedisLimiter struct {
	client    *redis.Client
	limit     int
	window    time.Duration
	keyPrefix string
	logger    *zap.Logger
	now       func() time.Time
}

// NewRedisLimiter connects to Redis and returns a shared limiter
func NewRedisLimiter(cfg config.UsageConfig, logger *zap.Logger) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Usage limiter initialized",
		zap.String("backend", "redis"),
		zap.Int("daily_limit", cfg.DailyLimit),
		zap.Duration("window", cfg.Window))

	return newRedisLimiter(client, cfg, logger), nil
}

func newRedisLimiter(client *redis.Client, cfg config.UsageConfig, logger *zap.Logger) *RedisLimiter {
	return &RedisLimiter{
		client:    client,
		limit:     cfg.DailyLimit,
		window:    cfg.Window,
		keyPrefix: cfg.KeyPrefix,
		logger:    logger,
		now:       time.Now,
	}
}

// Allow increments the client's counter for the current window
func (r *RedisLimiter) Allow(ctx context.Context, clientID string) (Decision, error) {
	now := r.now()
	key, resetAt := r.windowKey(clientID, now)

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireAt(ctx, key, resetAt)
		return nil
	})
	if err != nil {
		r.logger.Error("Usage counter update failed", zap.String("key", key), zap.Error(err))
		return Decision{}, fmt.Errorf("failed to update usage counter: %w", err)
	}

	return r.decision(int(incr.Val()), now, resetAt), nil
}

// Peek reads the client's counter without incrementing it
func (r *RedisLimiter) Peek(ctx context.Context, clientID string) (Decision, error) {
	now := r.now()
	key, resetAt := r.windowKey(clientID, now)

	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return r.decision(0, now, resetAt), nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read usage counter: %w", err)
	}

	used, err := strconv.Atoi(value)
	if err != nil {
		return Decision{}, fmt.Errorf("corrupt usage counter %s: %w", key, err)
	}

	d := r.decision(used, now, resetAt)
	d.Allowed = used < r.limit
	return d, nil
}

func (r *RedisLimiter) decision(used int, now, resetAt time.Time) Decision {
	d := Decision{
		Allowed:   used <= r.limit,
		Used:      min(used, r.limit),
		Limit:     r.limit,
		Remaining: max(r.limit-used, 0),
	}
	if !d.Allowed {
		d.RetryAfter = resetAt.Sub(now)
	}
	return d
}

// windowKey returns the counter key for the window containing now and the
// instant that window ends
func (r *RedisLimiter) windowKey(clientID string, now time.Time) (string, time.Time) {
	start := now.UTC().Truncate(r.window)
	return fmt.Sprintf("%s:usage:%s:%d", r.keyPrefix, clientID, start.Unix()), start.Add(r.window)
}

// Close closes the Redis connection
func (r *RedisLimiter) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
