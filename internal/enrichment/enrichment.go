// Package enrichment derives a short description and ranked keywords for each
// normalized event.
//
// Backends are pluggable through the Summarizer and KeywordExtractor
// interfaces. Backend failures are returned to the caller as errors wrapping
// ErrEnrichment; Service.Enrich is the single place where fallbacks are
// substituted.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"eventscout/internal/logger"
	"eventscout/internal/models"
	"eventscout/pkg/utils"
)

// ErrEnrichment marks a summarizer or keyword extractor failure.
var ErrEnrichment = errors.New("enrichment failed")

// MaxKeywords is the hard cap on keywords per event.
const MaxKeywords = 5

// Summarizer generates text for a prompt within word-length bounds.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string, minWords, maxWords int) (string, error)
}

// KeywordExtractor returns up to topN ranked one or two word phrases.
type KeywordExtractor interface {
	Extract(ctx context.Context, text string, topN int) ([]string, error)
}

// Options bounds generated output.
type Options struct {
	MinLength int
	MaxLength int
	TopN      int
}

// DefaultOptions returns the stock length and keyword bounds.
func DefaultOptions() Options {
	return Options{MinLength: 10, MaxLength: 50, TopN: MaxKeywords}
}

// Outcome reports which enrichment steps fell back for one event.
type Outcome struct {
	DescriptionFailed bool
	KeywordsFailed    bool
}

// Failed reports whether any step fell back.
func (o Outcome) Failed() bool {
	return o.DescriptionFailed || o.KeywordsFailed
}

// Service enriches events. A nil summarizer or extractor disables that step
// without counting it as a failure.
type Service struct {
	summarizer Summarizer
	extractor  KeywordExtractor
	logger     *logger.Logger
	opts       Options
}

// NewService creates an enrichment service.
func NewService(summarizer Summarizer, extractor KeywordExtractor, opts Options, log *logger.Logger) *Service {
	if opts.TopN <= 0 || opts.TopN > MaxKeywords {
		opts.TopN = MaxKeywords
	}

	return &Service{
		summarizer: summarizer,
		extractor:  extractor,
		logger:     log.Component("enrichment"),
		opts:       opts,
	}
}

var (
	strs       = utils.NewStringHelper()
	listMarker = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)
)

// Prompt renders the description prompt for an event.
func Prompt(e models.NormalizedEvent) string {
	return fmt.Sprintf(
		"Event: %s\nDate: %s\nVenue: %s\nAddress: %s, ZIP Code: %s\nGenre: %s\nOrganizer: %s\n"+
			"Generate a short and engaging 2-sentence event description.",
		e.Name, e.Date, e.VenueName, e.Address, e.PostalCode, e.Genre, e.Organizer,
	)
}

// KeywordText is the text keywords are drawn from: name, date, genre and
// venue, skipping fields that carry a placeholder.
func KeywordText(e models.NormalizedEvent) string {
	fields := []struct {
		value    string
		sentinel string
	}{
		{e.Name, models.NoName},
		{e.Date, models.NoDate},
		{e.Genre, models.NoGenre},
		{e.VenueName, models.NoVenue},
	}

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.value != "" && f.value != f.sentinel {
			parts = append(parts, f.value)
		}
	}

	return strings.Join(parts, ". ")
}

// Describe generates a description for e.
func (s *Service) Describe(ctx context.Context, e models.NormalizedEvent) (string, error) {
	if s.summarizer == nil {
		return models.NoDescription, nil
	}

	text, err := s.summarizer.Summarize(ctx, Prompt(e), s.opts.MinLength, s.opts.MaxLength)
	if err != nil {
		return "", wrap(err)
	}

	text = cleanDescription(text, s.opts.MaxLength)
	if text == "" {
		return "", fmt.Errorf("%w: empty description", ErrEnrichment)
	}

	return text, nil
}

// ExtractKeywords returns up to TopN keywords for text.
func (s *Service) ExtractKeywords(ctx context.Context, text string) ([]string, error) {
	if s.extractor == nil || strings.TrimSpace(text) == "" {
		return nil, nil
	}

	keywords, err := s.extractor.Extract(ctx, text, s.opts.TopN)
	if err != nil {
		return nil, wrap(err)
	}

	return CleanKeywords(keywords, s.opts.TopN), nil
}

// Enrich attaches a description and keywords to e. Failures are logged and
// replaced by the description placeholder or an empty keyword list.
func (s *Service) Enrich(ctx context.Context, e models.NormalizedEvent) (models.EnrichedEvent, Outcome) {
	var outcome Outcome

	out := models.EnrichedEvent{NormalizedEvent: e}

	desc, err := s.Describe(ctx, e)
	if err != nil {
		outcome.DescriptionFailed = true
		desc = models.NoDescription

		s.logger.Warn("⚠️  Description generation failed", "event", e.Name, "error", err)
	}

	out.Description = desc

	keywords, err := s.ExtractKeywords(ctx, KeywordText(e))
	if err != nil {
		outcome.KeywordsFailed = true
		keywords = nil

		s.logger.Warn("⚠️  Keyword extraction failed", "event", e.Name, "error", err)
	}

	out.Keywords = keywords

	return out, outcome
}

func wrap(err error) error {
	if errors.Is(err, ErrEnrichment) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrEnrichment, err)
}

// cleanDescription collapses whitespace, strips wrapping quotes and caps the
// word count.
func cleanDescription(text string, maxWords int) string {
	text = strs.NormalizeWhitespace(text)
	text = strings.Trim(text, "\"'“”")
	text = strings.TrimSpace(text)

	return strs.TruncateWords(text, maxWords)
}

// CleanKeywords trims list markers and quotes, caps each phrase at two words,
// drops case-insensitive repeats and keeps at most topN in rank order.
func CleanKeywords(raw []string, topN int) []string {
	if topN <= 0 || topN > MaxKeywords {
		topN = MaxKeywords
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, topN)

	for _, kw := range raw {
		kw = listMarker.ReplaceAllString(kw, "")
		kw = strings.Trim(kw, "\"'“”`.")
		kw = strs.TruncateWords(kw, 2)

		if kw == "" {
			continue
		}

		fold := strings.ToLower(kw)
		if _, dup := seen[fold]; dup {
			continue
		}

		seen[fold] = struct{}{}
		out = append(out, kw)

		if len(out) == topN {
			break
		}
	}

	return out
}
