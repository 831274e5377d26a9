package crawler

import "strings"

// DefaultSegments maps human genre names to discovery API segment identifiers.
var DefaultSegments = map[string]string{
	"Music":          "KZFzniwnSyZfZ7v7nJ",
	"Sports":         "KZFzniwnSyZfZ7v7nE",
	"Arts & Theater": "KZFzniwnSyZfZ7v7na",
	"Family":         "KZFzniwnSyZfZ7v7n1",
	"Comedy":         "KZFzniwnSyZfZ7v7nA",
	"Miscellaneous":  "KZFzniwnSyZfZ7v7n7",
	"Education":      "KZFzniwnSyZfZ7v7nI",
}

// SegmentTable is a case-insensitive genre to segment lookup.
type SegmentTable struct {
	ids map[string]string
}

// NewSegmentTable builds a table from DefaultSegments overlaid with overrides.
func NewSegmentTable(overrides map[string]string) SegmentTable {
	ids := make(map[string]string, len(DefaultSegments)+len(overrides))

	for genre, id := range DefaultSegments {
		ids[foldGenre(genre)] = id
	}

	for genre, id := range overrides {
		ids[foldGenre(genre)] = id
	}

	return SegmentTable{ids: ids}
}

// Lookup returns the segment identifier for genre, if known.
func (t SegmentTable) Lookup(genre string) (string, bool) {
	id, ok := t.ids[foldGenre(genre)]

	return id, ok && id != ""
}

func foldGenre(genre string) string {
	return strings.ToLower(strings.Join(strings.Fields(genre), " "))
}
