package process

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/srinivasgumdelli/moat/config"
)

// EmbeddingCache stores embedding vectors in Redis keyed by content
// fingerprint, so unchanged articles are not re-embedded across runs.
// All operations are best-effort: cache failures are logged and treated as
// misses, never surfaced to the caller.
type EmbeddingCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewEmbeddingCache returns nil when the cache is disabled, which callers
// treat as "no cache".
func NewEmbeddingCache(cfg config.EmbeddingCacheConfig, logger *log.Logger) *EmbeddingCache {
	if !cfg.Enabled || cfg.Addr == "" {
		return nil
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &EmbeddingCache{
		client: redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		ttl:    ttl,
		logger: logger,
	}
}

func cacheKey(fingerprint string) string { return "moat:embedding:" + fingerprint }

// Get fetches a cached vector, reporting whether one was found.
func (c *EmbeddingCache) Get(ctx context.Context, fingerprint string) ([]float32, bool) {
	if c == nil || fingerprint == "" {
		return nil, false
	}
	raw, err := c.client.Get(ctx, cacheKey(fingerprint)).Bytes()
	if err != nil {
		if err != redis.Nil && c.logger != nil {
			c.logger.Printf("embedding cache get failed: %v", err)
		}
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, false
	}
	return vec, true
}

// Put stores a vector under the article fingerprint.
func (c *EmbeddingCache) Put(ctx context.Context, fingerprint string, vec []float32) {
	if c == nil || fingerprint == "" || len(vec) == 0 {
		return
	}
	raw, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(fingerprint), raw, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.Printf("embedding cache put failed: %v", err)
	}
}

// Close releases the underlying Redis connection.
func (c *EmbeddingCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
