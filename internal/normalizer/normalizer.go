// Package normalizer maps raw source records onto the canonical event shape.
package normalizer

import (
	"eventscout/internal/models"
)

// Options toggles optional canonical fields. A disabled field is always its sentinel.
type Options struct {
	IncludeImageURL  bool
	IncludeOrganizer bool
}

// DefaultOptions resolves every field.
func DefaultOptions() Options {
	return Options{IncludeImageURL: true, IncludeOrganizer: true}
}

// field is one canonical field resolved from an API record.
type field struct {
	dst      func(e *models.NormalizedEvent) *string
	sentinel string
	path     []Step
}

// apiFields is the dig-then-default table for discovery API records.
var apiFields = []field{
	{func(e *models.NormalizedEvent) *string { return &e.Name }, models.NoName, Path("name")},
	{func(e *models.NormalizedEvent) *string { return &e.Date }, models.NoDate, Path("dates.start.localDate")},
	{func(e *models.NormalizedEvent) *string { return &e.VenueName }, models.NoVenue, Path("_embedded.venues.0.name")},
	{func(e *models.NormalizedEvent) *string { return &e.Address }, models.NoAddress, Path("_embedded.venues.0.address.line1")},
	{func(e *models.NormalizedEvent) *string { return &e.PostalCode }, models.NoPostalCode, Path("_embedded.venues.0.postalCode")},
	{func(e *models.NormalizedEvent) *string { return &e.Genre }, models.NoGenre, Path("classifications.0.segment.name")},
	{func(e *models.NormalizedEvent) *string { return &e.Organizer }, models.NoOrganizer, Path("promoter.name")},
	{func(e *models.NormalizedEvent) *string { return &e.TicketURL }, models.NoTicketURL, Path("url")},
	{func(e *models.NormalizedEvent) *string { return &e.ImageURL }, models.NoImageURL, Path("images.0.url")},
}

// Normalizer converts raw records. It holds no state beyond its options.
type Normalizer struct {
	opts Options
}

// NewNormalizer creates a normalizer with the given options.
func NewNormalizer(opts Options) *Normalizer {
	return &Normalizer{opts: opts}
}

// Normalize maps one raw record to a NormalizedEvent. It never fails: absent
// data becomes the field's sentinel.
func (n *Normalizer) Normalize(raw models.RawRecord, kind models.SourceKind) models.NormalizedEvent {
	var ev models.NormalizedEvent

	switch kind {
	case models.SourceBrowser:
		ev = normalizeCard(raw)
	default:
		ev = normalizeAPI(raw)
	}

	if !n.opts.IncludeImageURL {
		ev.ImageURL = models.NoImageURL
	}

	if !n.opts.IncludeOrganizer {
		ev.Organizer = models.NoOrganizer
	}

	return ev
}

// NormalizeAll normalizes a batch, preserving order.
func (n *Normalizer) NormalizeAll(raws []models.RawRecord, kind models.SourceKind) []models.NormalizedEvent {
	out := make([]models.NormalizedEvent, 0, len(raws))
	for _, raw := range raws {
		out = append(out, n.Normalize(raw, kind))
	}

	return out
}

func normalizeAPI(raw models.RawRecord) models.NormalizedEvent {
	var ev models.NormalizedEvent

	for _, f := range apiFields {
		*f.dst(&ev) = Dig(raw, f.sentinel, f.path...)
	}

	return ev
}

// normalizeCard maps the text fragments of one listing card. The card carries a
// single location line, used for both venue and address.
func normalizeCard(raw models.RawRecord) models.NormalizedEvent {
	return models.NormalizedEvent{
		Name:       Dig(raw, models.NoName, Key(models.CardName)),
		Date:       Dig(raw, models.NoDate, Key(models.CardDate)),
		VenueName:  Dig(raw, models.NoVenue, Key(models.CardLocation)),
		Address:    Dig(raw, models.NoAddress, Key(models.CardLocation)),
		PostalCode: models.NoPostalCode,
		Genre:      models.NoGenre,
		Organizer:  models.NoOrganizer,
		TicketURL:  Dig(raw, models.NoTicketURL, Key(models.CardLink)),
		ImageURL:   models.NoImageURL,
	}
}
