package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"eventscout/internal/config"
	"eventscout/internal/logger"
	"eventscout/internal/models"
	"eventscout/pkg/utils"
)

// eventsPath is the discovery API search endpoint, relative to the base URL.
const eventsPath = "/discovery/v2/events.json"

// RESTOptions parameterizes the discovery API adapter.
type RESTOptions struct {
	Segments         map[string]string
	BaseURL          string
	APIKey           string
	Locale           string
	Retry            config.RetryPolicy
	UseSegmentLookup bool
}

// RESTOptionsFromConfig extracts adapter options from the run configuration.
func RESTOptionsFromConfig(cfg *config.Config) RESTOptions {
	return RESTOptions{
		BaseURL:          cfg.Source.BaseURL,
		APIKey:           cfg.Source.APIKey,
		Locale:           cfg.Source.Locale,
		UseSegmentLookup: cfg.Source.UseSegmentLookup,
		Segments:         cfg.Source.Segments,
		Retry:            cfg.Retry,
	}
}

// RESTAdapter issues one limited search request per query against the discovery API.
type RESTAdapter struct {
	client   *resty.Client
	logger   *logger.Logger
	segments SegmentTable
	opts     RESTOptions
}

// discoveryResponse is the part of the search response the adapter relies on.
// Everything below an event is kept untyped for the normalizer.
type discoveryResponse struct {
	Embedded *struct {
		Events []json.RawMessage `json:"events"`
	} `json:"_embedded"`
}

// NewRESTAdapter creates an adapter with config-driven retry behavior.
func NewRESTAdapter(opts RESTOptions, log *logger.Logger) *RESTAdapter {
	retry := opts.Retry
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(retry.GetTimeout()).
		SetRetryCount(retry.MaxAttempts - 1).
		SetRetryWaitTime(time.Duration(retry.InitialDelayMs) * time.Millisecond).
		SetRetryMaxWaitTime(time.Duration(retry.MaxDelayMs) * time.Millisecond).
		SetRetryAfter(retryAfter(retry)).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return resp != nil && isRetryableStatus(resp.StatusCode())
		})

	for name, values := range utils.NewHTTPHelper().BuildHeaders(nil) {
		client.SetHeader(name, strings.Join(values, ", "))
	}

	return &RESTAdapter{
		client:   client,
		logger:   log.Component("crawler").With("source", "rest"),
		segments: NewSegmentTable(opts.Segments),
		opts:     opts,
	}
}

// Name implements Source.
func (a *RESTAdapter) Name() string {
	return "rest"
}

// Params builds the search query parameters for q. Known genres are requested
// by segment identifier when segment lookup is enabled; others by free-text
// classification name.
func (a *RESTAdapter) Params(q models.Query, maxResults int) map[string]string {
	params := map[string]string{
		"apikey": a.opts.APIKey,
		"city":   q.City,
		"size":   strconv.Itoa(maxResults),
	}

	if a.opts.Locale != "" {
		params["locale"] = a.opts.Locale
	}

	if id, ok := a.segments.Lookup(q.Genre); a.opts.UseSegmentLookup && ok {
		params["segmentId"] = id
	} else {
		params["classificationName"] = q.Genre
	}

	return params
}

// Fetch implements Source. A well-formed response without an embedded event
// collection yields an empty batch, not an error.
func (a *RESTAdapter) Fetch(ctx context.Context, q models.Query, maxResults int) (Batch, error) {
	batch := Batch{Source: a.Name(), Kind: models.SourceAPI}
	start := time.Now()

	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(a.Params(q, maxResults)).
		Get(eventsPath)
	if err != nil {
		return batch, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, q.Key(), err)
	}

	if !resp.IsSuccess() {
		return batch, fmt.Errorf("%w: %s: %w: %d", ErrSourceUnavailable, q.Key(), ErrUnexpectedStatusCode, resp.StatusCode())
	}

	var body discoveryResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return batch, fmt.Errorf("%w: %s: malformed response: %w", ErrSourceUnavailable, q.Key(), err)
	}

	if body.Embedded == nil || len(body.Embedded.Events) == 0 {
		a.logger.Info("❌ No events found", "query", q.Key(), "duration", time.Since(start))

		return batch, nil
	}

	events := make([]models.RawRecord, 0, len(body.Embedded.Events))

	for i, raw := range body.Embedded.Events {
		if maxResults > 0 && len(events) >= maxResults {
			break
		}

		record, err := decodeEvent(raw)
		if err != nil {
			a.logger.Warn("⚠️  Skipping event", "query", q.Key(), "index", i,
				"error", fmt.Errorf("%w: %w", ErrExtraction, err))

			continue
		}

		events = append(events, record)
	}

	batch.Records = events

	a.logger.Debug("✅ Fetched events", "query", q.Key(), "count", len(events), "duration", time.Since(start))

	return batch, nil
}

// decodeEvent reads one element of the embedded event collection. Anything
// that is not a JSON object is rejected.
func decodeEvent(raw json.RawMessage) (models.RawRecord, error) {
	var record models.RawRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, err
	}

	if record == nil {
		return nil, fmt.Errorf("event is %s", raw)
	}

	return record, nil
}

// retryAfter spaces retries by the policy's exponential backoff. resty counts
// attempts from 1, so the wait before attempt n+1 is GetRetryDelay(n+1).
func retryAfter(policy config.RetryPolicy) resty.RetryAfterFunc {
	return func(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
		attempt := 1
		if resp != nil && resp.Request != nil {
			attempt = resp.Request.Attempt
		}

		return policy.GetRetryDelay(attempt + 1), nil
	}
}

// isRetryableStatus determines if we should retry based on HTTP status code.
func isRetryableStatus(statusCode int) bool {
	// Retry on temporary failures
	switch statusCode {
	case http.StatusServiceUnavailable: // 503
		return true
	case http.StatusGatewayTimeout: // 504
		return true
	case http.StatusTooManyRequests: // 429
		return true
	case http.StatusRequestTimeout: // 408
		return true
	}

	return false
}
