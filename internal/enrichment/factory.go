package enrichment

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"eventscout/internal/config"
	"eventscout/internal/logger"
)

// NewFromConfig builds the enrichment service described by cfg. The returned
// close function releases the cache connection, if any.
//
// With enrichment disabled, descriptions are left as the placeholder and
// keywords come from the local frequency extractor.
func NewFromConfig(cfg config.EnrichmentConfig, log *logger.Logger) (*Service, func() error, error) {
	noop := func() error { return nil }
	opts := Options{MinLength: cfg.MinLength, MaxLength: cfg.MaxLength, TopN: cfg.TopN}

	if !cfg.Enabled {
		return NewService(nil, NewFrequencyExtractor(), opts, log), noop, nil
	}

	client, err := NewLLMClient(cfg.Provider, cfg.Endpoint, cfg.Model, cfg.APIKey, cfg.Timeout())
	if err != nil {
		return nil, noop, fmt.Errorf("failed to create LLM client: %w", err)
	}

	var summarizer Summarizer = NewLLMSummarizer(client)

	closeFn := noop

	if cfg.Cache.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			return nil, noop, fmt.Errorf("invalid redis URL: %w", err)
		}

		rdb := redis.NewClient(redisOpts)
		summarizer = NewCachedSummarizer(summarizer, rdb, cfg.Cache.TTL(), log)
		closeFn = rdb.Close
	}

	var extractor KeywordExtractor = NewFrequencyExtractor()

	if cfg.KeywordEndpoint != "" {
		kwClient, err := NewLLMClient(cfg.Provider, cfg.KeywordEndpoint, cfg.Model, cfg.APIKey, cfg.Timeout())
		if err != nil {
			_ = closeFn()

			return nil, noop, fmt.Errorf("failed to create keyword client: %w", err)
		}

		extractor = NewLLMKeywordExtractor(kwClient)
	}

	return NewService(summarizer, extractor, opts, log), closeFn, nil
}
