package cache

import "time"

// CachedRewrite is a stored rewrite of one message in one context
type CachedRewrite struct {
	Text     string    `json:"text"`
	Context  string    `json:"context"`
	Strategy string    `json:"strategy"`
	Changed  bool      `json:"changed"`
	CachedAt time.Time `json:"cached_at"`
	TTL      int64     `json:"ttl"`
}

// CacheStats represents cache performance statistics
type CacheStats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
	TotalKeys   int64   `json:"total_keys"`
	MemoryUsage int64   `json:"memory_usage_bytes"`
}
