package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/raaihank/confidenceboost/internal/config"
	"go.uber.org/zap"
)

// RewriteCache stores hosted-model rewrites in Redis so repeated messages
// do not trigger another upstream call
type RewriteCache struct {
	client *redis.Client
	config config.CacheConfig
	logger *zap.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// NewRewriteCache creates a new Redis-based rewrite cache
func NewRewriteCache(cfg config.CacheConfig, logger *zap.Logger) (*RewriteCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = cfg.MaxConnections
	opts.MinIdleConns = cfg.MinIdleConns

	cache := &RewriteCache{
		client: redis.NewClient(opts),
		config: cfg,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cache.client.Ping(ctx).Err(); err != nil {
		cache.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Rewrite cache initialized successfully",
		zap.String("redis_url", maskRedisURL(cfg.RedisURL)),
		zap.Int("max_connections", cfg.MaxConnections),
		zap.Duration("default_ttl", cfg.DefaultTTL))

	return cache, nil
}

// Lookup returns the cached rewrite for a message, if any.
// Redis failures are logged and reported as a miss.
func (c *RewriteCache) Lookup(ctx context.Context, rewriteContext, text string) (*CachedRewrite, bool) {
	key := c.generateKey(rewriteContext, text)

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		c.logger.Debug("Cache miss", zap.String("key", key))
		return nil, false
	} else if err != nil {
		c.misses.Add(1)
		c.logger.Error("Cache lookup failed", zap.Error(err))
		return nil, false
	}

	var cached CachedRewrite
	if err := json.Unmarshal(data, &cached); err != nil {
		c.misses.Add(1)
		c.logger.Error("Failed to unmarshal cached rewrite", zap.Error(err))
		// Delete corrupted cache entry
		c.client.Del(ctx, key)
		return nil, false
	}

	c.hits.Add(1)
	c.logger.Debug("Cache hit", zap.String("key", key))
	return &cached, true
}

// Store caches a rewrite under the message and context it was produced for
func (c *RewriteCache) Store(ctx context.Context, text string, rewrite *CachedRewrite) error {
	key := c.generateKey(rewrite.Context, text)

	rewrite.CachedAt = time.Now()
	rewrite.TTL = int64(c.config.DefaultTTL.Seconds())

	data, err := json.Marshal(rewrite)
	if err != nil {
		return fmt.Errorf("failed to marshal rewrite for caching: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.config.DefaultTTL).Err(); err != nil {
		c.logger.Error("Failed to cache rewrite", zap.Error(err))
		return fmt.Errorf("failed to cache rewrite: %w", err)
	}

	c.logger.Debug("Rewrite cached", zap.String("key", key), zap.String("strategy", rewrite.Strategy))
	return nil
}

// GetStats returns cache performance statistics
func (c *RewriteCache) GetStats(ctx context.Context) (*CacheStats, error) {
	info, err := c.client.Info(ctx, "memory").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis info: %w", err)
	}

	stats := &CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}

	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	for _, line := range strings.Split(info, "\r\n") {
		if memStr, ok := strings.CutPrefix(line, "used_memory:"); ok {
			if mem, err := strconv.ParseInt(memStr, 10, 64); err == nil {
				stats.MemoryUsage = mem
			}
		}
	}

	if keys, err := c.client.DBSize(ctx).Result(); err == nil {
		stats.TotalKeys = keys
	}

	return stats, nil
}

// Clear removes all cached rewrites
func (c *RewriteCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.config.KeyPrefix+":rw:*", 0).Iterator()
	var keys []string

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	const batchSize = 100
	for i := 0; i < len(keys); i += batchSize {
		end := min(i+batchSize, len(keys))
		if err := c.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			c.logger.Error("Failed to delete cache keys", zap.Error(err))
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	c.logger.Info("Cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Close closes the Redis connection
func (c *RewriteCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// generateKey derives a cache key from the context and the trimmed message
func (c *RewriteCache) generateKey(rewriteContext, text string) string {
	hasher := sha256.New()
	hasher.Write([]byte(rewriteContext))
	hasher.Write([]byte{0})
	hasher.Write([]byte(strings.TrimSpace(text)))

	hash := hex.EncodeToString(hasher.Sum(nil))
	return fmt.Sprintf("%s:rw:%s", c.config.KeyPrefix, hash[:32])
}

// maskRedisURL masks the password in a Redis URL for logging
func maskRedisURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	userPart := url[:at]
	colon := strings.LastIndex(userPart, ":")
	scheme := strings.Index(userPart, "://")
	if colon <= scheme+2 {
		return url
	}
	return userPart[:colon+1] + "***" + url[at:]
}
