// Package planner enumerates queries and drives each one through fetch,
// normalization, deduplication and enrichment into an aggregator.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"eventscout/internal/aggregator"
	"eventscout/internal/config"
	"eventscout/internal/crawler"
	"eventscout/internal/dedup"
	"eventscout/internal/enrichment"
	"eventscout/internal/logger"
	"eventscout/internal/metrics"
	"eventscout/internal/models"
	"eventscout/internal/normalizer"
	"eventscout/pkg/utils"
)

// Options bounds the run.
type Options struct {
	Workers      int
	MaxInFlight  int
	MaxResults   int
	QueryTimeout time.Duration
	ShowProgress bool
}

// OptionsFromConfig extracts planner options from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Workers:      cfg.Planner.Workers,
		MaxInFlight:  cfg.Planner.MaxInFlight,
		MaxResults:   cfg.Source.MaxResults,
		QueryTimeout: cfg.Planner.QueryTimeout(),
		ShowProgress: cfg.Logging.ShowProgress,
	}
}

// Plan returns the cities × genres product, cities outermost. Blank entries
// are skipped and names are title-cased.
func Plan(cities, genres []string) []models.Query {
	strs := utils.NewStringHelper()
	queries := make([]models.Query, 0, len(cities)*len(genres))

	for _, city := range cities {
		city = strs.TitleCase(city)
		if city == "" {
			continue
		}

		for _, genre := range genres {
			genre = strs.TitleCase(genre)
			if genre == "" {
				continue
			}

			queries = append(queries, models.Query{City: city, Genre: genre})
		}
	}

	return queries
}

// Single builds one query from user input.
func Single(city, genre string) models.Query {
	strs := utils.NewStringHelper()

	return models.Query{City: strs.TitleCase(city), Genre: strs.TitleCase(genre)}
}

// Summary counts query and event outcomes for one run.
type Summary struct {
	Queries            int
	Succeeded          int
	Empty              int
	TimedOut           int
	Failed             int
	Events             int
	Duplicates         int
	EnrichmentFailures int
	Duration           time.Duration
}

// String implements fmt.Stringer.
func (s Summary) String() string {
	return fmt.Sprintf("Queries: %d total, %d ok, %d empty, %d timed out, %d failed | Events: %d (%d duplicates dropped, %d enrichment fallbacks)",
		s.Queries, s.Succeeded, s.Empty, s.TimedOut, s.Failed, s.Events, s.Duplicates, s.EnrichmentFailures)
}

// result is the outcome of one query.
type result struct {
	events         []models.EnrichedEvent
	err            error
	outcome        string
	duplicates     int
	enrichFailures int
}

// keep reports whether the query produces a dataset. Unavailable sources
// are skipped, empty and timed out queries produce an empty dataset.
func (r result) keep() bool {
	switch r.outcome {
	case metrics.OutcomeOK, metrics.OutcomeEmpty, metrics.OutcomeTimeout:
		return true
	default:
		return false
	}
}

// Planner runs queries against one source.
type Planner struct {
	source     crawler.Source
	normalizer *normalizer.Normalizer
	enricher   *enrichment.Service
	dedup      *dedup.Deduplicator
	metrics    *metrics.Metrics
	admission  *semaphore.Weighted
	logger     *logger.Logger
	opts       Options
}

// New creates a planner. m may be nil.
func New(source crawler.Source, norm *normalizer.Normalizer, enricher *enrichment.Service, m *metrics.Metrics, opts Options, log *logger.Logger) *Planner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	if opts.MaxInFlight < 1 {
		opts.MaxInFlight = 1
	}

	if opts.MaxResults < 1 {
		opts.MaxResults = 10
	}

	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 2 * time.Minute
	}

	return &Planner{
		source:     source,
		normalizer: norm,
		enricher:   enricher,
		dedup:      dedup.NewDeduplicator(log),
		metrics:    m,
		admission:  semaphore.NewWeighted(int64(opts.MaxInFlight)),
		logger:     log.Component("planner"),
		opts:       opts,
	}
}

// Run processes queries with a bounded worker pool and returns the populated
// aggregator. Datasets are added in query order once all workers finish. A
// cancelled ctx stops scheduling; the partial aggregator is returned along
// with ctx's error.
func (p *Planner) Run(ctx context.Context, queries []models.Query) (*aggregator.Aggregator, Summary, error) {
	start := time.Now()
	results := make([]result, len(queries))

	g := new(errgroup.Group)
	g.SetLimit(p.opts.Workers)

	p.logger.Info("🚀 Starting run", "queries", len(queries), "source", p.source.Name(),
		"workers", p.opts.Workers, "max_in_flight", p.opts.MaxInFlight)

	for i, q := range queries {
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if p.opts.ShowProgress {
				p.logger.Info(fmt.Sprintf("🔎 [%d/%d] %s", i+1, len(queries), q))
			}

			results[i] = p.runQuery(ctx, q)

			return nil
		})
	}

	_ = g.Wait()

	agg := aggregator.New()
	summary := Summary{Queries: len(queries)}

	for i, r := range results {
		if r.outcome == "" {
			continue
		}

		switch r.outcome {
		case metrics.OutcomeOK:
			summary.Succeeded++
		case metrics.OutcomeEmpty:
			summary.Empty++
		case metrics.OutcomeTimeout:
			summary.TimedOut++
		default:
			summary.Failed++
		}

		summary.Duplicates += r.duplicates
		summary.EnrichmentFailures += r.enrichFailures

		if r.keep() {
			agg.AddGroup(queries[i], r.events)
		}
	}

	summary.Events = agg.TotalEvents()
	summary.Duration = time.Since(start)

	p.logger.Debug("📦 Datasets ready", "sheets", agg.Keys(), "events", summary.Events)

	return agg, summary, ctx.Err()
}

// RunOne processes a single query.
func (p *Planner) RunOne(ctx context.Context, q models.Query) (models.Dataset, error) {
	r := p.runQuery(ctx, q)
	if !r.keep() {
		return models.Dataset{}, r.err
	}

	return models.Dataset{Key: q.Key(), Query: q, Events: r.events}, nil
}

func (p *Planner) runQuery(parent context.Context, q models.Query) (r result) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(parent, p.opts.QueryTimeout)
	defer cancel()

	defer func() {
		p.metrics.ObserveQuery(r.outcome, time.Since(start))
	}()

	batch, err := p.fetch(ctx, q)
	if err != nil {
		return p.failed(parent, ctx, q, err)
	}

	p.metrics.AddFetched(len(batch.Records))

	if len(batch.Records) == 0 {
		p.logger.Info("📭 No events", "query", q.String())

		return result{outcome: metrics.OutcomeEmpty}
	}

	events := p.normalizer.NormalizeAll(batch.Records, batch.Kind)

	unique, stats := p.dedup.Events(q.Key(), events)
	p.metrics.AddDuplicates(stats.DuplicateCount)

	enriched := make([]models.EnrichedEvent, 0, len(unique))
	failures := 0

	for _, ev := range unique {
		out, outcome := p.enricher.Enrich(ctx, ev)
		if outcome.DescriptionFailed {
			failures++

			p.metrics.EnrichmentFailed(metrics.KindDescription)
		}

		if outcome.KeywordsFailed {
			failures++

			p.metrics.EnrichmentFailed(metrics.KindKeywords)
		}

		enriched = append(enriched, out)
	}

	if ctx.Err() != nil {
		return p.failed(parent, ctx, q, ctx.Err())
	}

	p.logger.Info(fmt.Sprintf("✅ %s: %d events in %v", q, len(enriched), time.Since(start).Round(time.Millisecond)),
		"source", batch.Source, "duplicates", stats.DuplicateCount)

	return result{
		outcome:        metrics.OutcomeOK,
		events:         enriched,
		duplicates:     stats.DuplicateCount,
		enrichFailures: failures,
	}
}

// fetch holds one admission slot for the duration of the source call.
func (p *Planner) fetch(ctx context.Context, q models.Query) (crawler.Batch, error) {
	if err := p.admission.Acquire(ctx, 1); err != nil {
		return crawler.Batch{}, err
	}
	defer p.admission.Release(1)

	return p.source.Fetch(ctx, q, p.opts.MaxResults)
}

// failed classifies a query error. A query whose own deadline expired is
// abandoned as an empty result.
func (p *Planner) failed(parent, ctx context.Context, q models.Query, err error) result {
	switch {
	case parent.Err() != nil:
		p.logger.Warn("⚠️  Query cancelled", "query", q.String())

		return result{outcome: metrics.OutcomeError, err: parent.Err()}
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		p.logger.Warn("⚠️  Query timed out, treating as empty", "query", q.String(), "timeout", p.opts.QueryTimeout)

		return result{outcome: metrics.OutcomeTimeout, err: err}
	case errors.Is(err, crawler.ErrSourceUnavailable):
		p.logger.Error("❌ Source unavailable, skipping query", "query", q.String(), "error", err)

		return result{outcome: metrics.OutcomeUnavailable, err: err}
	default:
		p.logger.Error("❌ Query failed", "query", q.String(), "error", err)

		return result{outcome: metrics.OutcomeError, err: err}
	}
}
