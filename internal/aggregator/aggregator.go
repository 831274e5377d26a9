// Package aggregator collects per-query event groups into named datasets.
package aggregator

import (
	"sync"

	"eventscout/internal/dedup"
	"eventscout/internal/models"
)

// Aggregator maps dataset keys ("{city}_{genre}") to event rows. It is safe
// for concurrent use; keys are reported in first-insertion order.
type Aggregator struct {
	groups map[string]models.Dataset
	order  []string
	mu     sync.Mutex
}

// New creates an empty aggregator.
func New() *Aggregator {
	return &Aggregator{groups: make(map[string]models.Dataset)}
}

// AddGroup inserts or replaces the dataset for q. A replaced key keeps its
// original position.
func (a *Aggregator) AddGroup(q models.Query, events []models.EnrichedEvent) {
	key := q.Key()
	rows := append([]models.EnrichedEvent(nil), events...)

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.groups[key]; !ok {
		a.order = append(a.order, key)
	}

	a.groups[key] = models.Dataset{Key: key, Query: q, Events: rows}
}

// Get returns the dataset stored under key.
func (a *Aggregator) Get(key string) (models.Dataset, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ds, ok := a.groups[key]
	if !ok {
		return models.Dataset{}, false
	}

	ds.Events = append([]models.EnrichedEvent(nil), ds.Events...)

	return ds, true
}

// Datasets returns a snapshot of all datasets in key insertion order.
func (a *Aggregator) Datasets() []models.Dataset {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]models.Dataset, 0, len(a.order))
	for _, key := range a.order {
		ds := a.groups[key]
		ds.Events = append([]models.EnrichedEvent(nil), ds.Events...)
		out = append(out, ds)
	}

	return out
}

// Keys returns dataset keys in insertion order.
func (a *Aggregator) Keys() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]string(nil), a.order...)
}

// Len returns the number of datasets.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.order)
}

// TotalEvents returns the number of rows across all datasets.
func (a *Aggregator) TotalEvents() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	total := 0
	for _, ds := range a.groups {
		total += len(ds.Events)
	}

	return total
}

// DedupeAcross drops events already present in an earlier dataset, walking
// datasets in order. Datasets emptied this way are kept. Returns the number
// of rows removed.
func DedupeAcross(datasets []models.Dataset) ([]models.Dataset, int) {
	seen := make(map[models.DedupKey]struct{})
	out := make([]models.Dataset, 0, len(datasets))
	removed := 0

	for _, ds := range datasets {
		rows := make([]models.EnrichedEvent, 0, len(ds.Events))

		for _, ev := range dedup.Dedupe(ds.Events) {
			key := ev.Key()
			if _, dup := seen[key]; dup {
				continue
			}

			seen[key] = struct{}{}
			rows = append(rows, ev)
		}

		removed += len(ds.Events) - len(rows)
		ds.Events = rows
		out = append(out, ds)
	}

	return out, removed
}
