package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"eventscout/internal/logger"
	"eventscout/internal/models"
)

// AttemptResult records the result of one fetch against one source.
type AttemptResult struct {
	Timestamp time.Time
	Source    string
	Query     string
	Error     string
	Duration  time.Duration
	Records   int
	Success   bool
}

// AttemptStats contains statistics about fetch attempts.
type AttemptStats struct {
	SourceAttempts     map[string]int
	TotalAttempts      int
	SuccessfulAttempts int
	FailedAttempts     int
	Fallbacks          int
}

// String returns a string representation of attempt stats.
func (s AttemptStats) String() string {
	return fmt.Sprintf(
		"Attempts: %d total, %d success, %d failed | Fallbacks: %d",
		s.TotalAttempts,
		s.SuccessfulAttempts,
		s.FailedAttempts,
		s.Fallbacks,
	)
}

// FallbackSource consults Secondary only when Primary is unavailable.
// Zero results from Primary are returned as-is.
type FallbackSource struct {
	Primary    Source
	Secondary  Source
	logger     *logger.Logger
	attemptLog []AttemptResult
	fallbacks  int
	mu         sync.Mutex
}

// NewFallbackSource creates a source that falls back from primary to secondary.
func NewFallbackSource(primary, secondary Source, log *logger.Logger) *FallbackSource {
	return &FallbackSource{
		Primary:   primary,
		Secondary: secondary,
		logger:    log.Component("crawler"),
	}
}

// Name implements Source.
func (f *FallbackSource) Name() string {
	return f.Primary.Name() + "+" + f.Secondary.Name()
}

// Close releases both sources.
func (f *FallbackSource) Close() error {
	return errors.Join(Close(f.Primary), Close(f.Secondary))
}

// Fetch implements Source.
func (f *FallbackSource) Fetch(ctx context.Context, q models.Query, maxResults int) (Batch, error) {
	batch, err := f.attempt(ctx, f.Primary, q, maxResults)
	if err == nil || !errors.Is(err, ErrSourceUnavailable) || ctx.Err() != nil {
		return batch, err
	}

	f.mu.Lock()
	f.fallbacks++
	f.mu.Unlock()

	f.logger.Warn("⚠️  Primary source unavailable, falling back",
		"query", q.Key(), "primary", f.Primary.Name(), "secondary", f.Secondary.Name(), "error", err)

	return f.attempt(ctx, f.Secondary, q, maxResults)
}

func (f *FallbackSource) attempt(ctx context.Context, src Source, q models.Query, maxResults int) (Batch, error) {
	start := time.Now()
	batch, err := src.Fetch(ctx, q, maxResults)

	result := AttemptResult{
		Timestamp: start,
		Source:    src.Name(),
		Query:     q.Key(),
		Duration:  time.Since(start),
		Records:   len(batch.Records),
		Success:   err == nil,
	}
	if err != nil {
		result.Error = err.Error()
	}

	f.mu.Lock()
	f.attemptLog = append(f.attemptLog, result)
	f.mu.Unlock()

	return batch, err
}

// Attempts returns a copy of the attempt log in recording order.
func (f *FallbackSource) Attempts() []AttemptResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]AttemptResult(nil), f.attemptLog...)
}

// GetAttemptStats returns statistics about fetch attempts.
func (f *FallbackSource) GetAttemptStats() AttemptStats {
	f.mu.Lock()
	defer f.mu.Unlock()

	stats := AttemptStats{
		SourceAttempts: make(map[string]int),
		TotalAttempts:  len(f.attemptLog),
		Fallbacks:      f.fallbacks,
	}

	for _, result := range f.attemptLog {
		stats.SourceAttempts[result.Source]++

		if result.Success {
			stats.SuccessfulAttempts++
		} else {
			stats.FailedAttempts++
		}
	}

	return stats
}

// LogAttemptSummary logs a summary of fetch attempts using the provided logger.
func (f *FallbackSource) LogAttemptSummary(l *logger.Logger) {
	l.Info("📊 Fetch Attempt Summary:")

	for i, result := range f.Attempts() {
		statusStr := fmt.Sprintf("✅ %d records", result.Records)
		if !result.Success {
			statusStr = fmt.Sprintf("❌ Failed: %s", result.Error)
		}

		l.Info(fmt.Sprintf("%d. %s via %s: %s (%.2fs)", i+1, result.Query, result.Source, statusStr, result.Duration.Seconds()))
	}

	l.Info(fmt.Sprintf("Overall: %s", f.GetAttemptStats()))
}
