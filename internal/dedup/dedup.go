// Package dedup removes repeated events within a dataset.
//
// Two events are the same when their case-folded (name, date, venue) triple
// matches. The first occurrence is kept and relative order is preserved, so
// Dedupe is idempotent.
package dedup

import (
	"fmt"

	"eventscout/internal/logger"
	"eventscout/internal/models"
)

// Keyed is anything carrying a dedup key. Both normalized and enriched
// events satisfy it.
type Keyed interface {
	Key() models.DedupKey
}

// Stats contains statistics about one deduplication pass.
type Stats struct {
	OriginalCount  int
	UniqueCount    int
	DuplicateCount int
}

// String returns a string representation of dedup stats.
func (s Stats) String() string {
	return fmt.Sprintf("%d original, %d unique, %d duplicates removed",
		s.OriginalCount, s.UniqueCount, s.DuplicateCount)
}

// Dedupe returns events with later duplicates dropped.
func Dedupe[T Keyed](events []T) []T {
	out, _ := DedupeWithStats(events)

	return out
}

// DedupeWithStats returns deduplicated events along with statistics.
func DedupeWithStats[T Keyed](events []T) ([]T, Stats) {
	stats := Stats{OriginalCount: len(events)}

	if len(events) == 0 {
		return events, stats
	}

	seen := make(map[models.DedupKey]struct{}, len(events))
	out := make([]T, 0, len(events))

	for _, ev := range events {
		key := ev.Key()
		if _, dup := seen[key]; dup {
			stats.DuplicateCount++

			continue
		}

		seen[key] = struct{}{}
		out = append(out, ev)
	}

	stats.UniqueCount = len(out)

	return out, stats
}

// Deduplicator wraps Dedupe with logging.
type Deduplicator struct {
	logger *logger.Logger
}

// NewDeduplicator creates a new deduplicator instance.
func NewDeduplicator(log *logger.Logger) *Deduplicator {
	return &Deduplicator{logger: log.Component("dedup")}
}

// Events deduplicates one query's normalized events and logs what was dropped.
func (d *Deduplicator) Events(dataset string, events []models.NormalizedEvent) ([]models.NormalizedEvent, Stats) {
	out, stats := DedupeWithStats(events)

	if stats.DuplicateCount > 0 {
		d.logger.Debug("Deduplication completed", "dataset", dataset,
			"original_count", stats.OriginalCount,
			"unique_count", stats.UniqueCount,
			"duplicates_removed", stats.DuplicateCount)
	}

	return out, stats
}
