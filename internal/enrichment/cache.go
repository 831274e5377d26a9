package enrichment

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"eventscout/internal/logger"
)

// cacheKeyPrefix namespaces description cache entries in Redis.
const cacheKeyPrefix = "eventscout:desc:"

// CachedSummarizer serves repeated prompts from Redis. Cache errors are
// treated as misses and never fail a summarization.
type CachedSummarizer struct {
	next   Summarizer
	rdb    *redis.Client
	logger *logger.Logger
	ttl    time.Duration
}

// NewCachedSummarizer wraps next with a Redis cache.
func NewCachedSummarizer(next Summarizer, rdb *redis.Client, ttl time.Duration, log *logger.Logger) *CachedSummarizer {
	return &CachedSummarizer{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: log.Component("enrichment").With("cache", "redis"),
	}
}

// CacheKey returns the Redis key for a prompt and its length bounds.
func CacheKey(prompt string, minWords, maxWords int) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%d:%d:%s", minWords, maxWords, prompt)))

	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// Summarize implements Summarizer.
func (c *CachedSummarizer) Summarize(ctx context.Context, prompt string, minWords, maxWords int) (string, error) {
	key := CacheKey(prompt, minWords, maxWords)

	cached, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil && cached != "":
		return cached, nil
	case err != nil && !errors.Is(err, redis.Nil):
		c.logger.Debug("Cache read failed", "key", key, "error", err)
	}

	text, err := c.next.Summarize(ctx, prompt, minWords, maxWords)
	if err != nil {
		return "", err
	}

	if err := c.rdb.Set(ctx, key, text, c.ttl).Err(); err != nil {
		c.logger.Debug("Cache write failed", "key", key, "error", err)
	}

	return text, nil
}
