// Package crawler fetches raw event records from the discovery API and the
// browser-rendered listings page.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"

	"eventscout/internal/config"
	"eventscout/internal/logger"
	"eventscout/internal/models"
)

// Source errors.
var (
	// ErrSourceUnavailable marks transport, HTTP, or browser launch failures.
	// The query is skipped; the run continues.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrExtraction marks one malformed record inside an otherwise good batch.
	ErrExtraction = errors.New("record extraction failed")
	// ErrUnexpectedStatusCode indicates an HTTP response with unexpected status.
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
)

// Batch is the outcome of one fetch. An empty Records slice is a normal result.
type Batch struct {
	Source  string
	Kind    models.SourceKind
	Records []models.RawRecord
}

// Source fetches raw records for one query.
type Source interface {
	Name() string
	Fetch(ctx context.Context, q models.Query, maxResults int) (Batch, error)
}

// New builds the source selected by cfg.Source.Kind.
func New(cfg *config.Config, log *logger.Logger) (Source, error) {
	switch cfg.Source.Kind {
	case config.SourceREST:
		return NewRESTAdapter(RESTOptionsFromConfig(cfg), log), nil
	case config.SourceBrowser:
		return NewBrowserAdapter(BrowserOptionsFromConfig(cfg), log), nil
	case config.SourceFallback:
		return NewFallbackSource(
			NewRESTAdapter(RESTOptionsFromConfig(cfg), log),
			NewBrowserAdapter(BrowserOptionsFromConfig(cfg), log),
			log,
		), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidSourceKind, cfg.Source.Kind)
	}
}

// Close releases s when it holds resources past a single Fetch, such as a
// browser session abandoned by an expired context.
func Close(s Source) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}

	return nil
}
