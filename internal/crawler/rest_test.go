package crawler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"

	"eventscout/internal/config"
	"eventscout/internal/logger"
	"eventscout/internal/models"
)

func testRetry() config.RetryPolicy {
	return config.RetryPolicy{
		MaxAttempts:       3,
		InitialDelayMs:    1,
		MaxDelayMs:        5,
		BackoffMultiplier: 2.0,
		TimeoutSec:        5,
	}
}

func newTestREST(t *testing.T, handler http.HandlerFunc) (*RESTAdapter, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	a := NewRESTAdapter(RESTOptions{
		BaseURL:          srv.URL,
		APIKey:           "test-key",
		Locale:           "en-us",
		UseSegmentLookup: true,
		Retry:            testRetry(),
	}, logger.NewNop())

	return a, srv
}

func TestRESTAdapter_Fetch(t *testing.T) {
	var gotQuery map[string]string

	a, _ := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != eventsPath {
			t.Errorf("path = %q", r.URL.Path)
		}

		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"_embedded": {"events": [
			{"name": "Jazz Night", "dates": {"start": {"localDate": "2024-05-01"}}},
			{"name": "Rock Show"},
			{"name": "Folk Fest"}
		]}}`))
	})

	batch, err := a.Fetch(context.Background(), models.Query{City: "Chicago", Genre: "Music"}, 2)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if batch.Kind != models.SourceAPI || batch.Source != "rest" {
		t.Errorf("batch tagged %s/%s", batch.Source, batch.Kind)
	}

	if len(batch.Records) != 2 {
		t.Fatalf("got %d records, want 2 (limit)", len(batch.Records))
	}

	if batch.Records[0]["name"] != "Jazz Night" {
		t.Errorf("first record = %v", batch.Records[0])
	}

	want := map[string]string{
		"apikey":    "test-key",
		"city":      "Chicago",
		"size":      "2",
		"locale":    "en-us",
		"segmentId": "KZFzniwnSyZfZ7v7nJ",
	}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}

	if _, ok := gotQuery["classificationName"]; ok {
		t.Error("classificationName should not be sent for a known segment")
	}
}

func TestRESTAdapter_ZeroResults(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no embedded", `{"page": {"totalElements": 0}}`},
		{"empty events", `{"_embedded": {"events": []}}`},
		{"embedded without events", `{"_embedded": {}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestREST(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})

			batch, err := a.Fetch(context.Background(), models.Query{City: "Austin", Genre: "Music"}, 10)
			if err != nil {
				t.Fatalf("zero results must not be an error: %v", err)
			}

			if len(batch.Records) != 0 {
				t.Errorf("got %d records", len(batch.Records))
			}
		})
	}
}

func TestRESTAdapter_SkipsMalformedEvents(t *testing.T) {
	tests := []struct {
		name       string
		events     string
		maxResults int
		want       []string
	}{
		{"string element", `[{"name": "Jazz Night"}, "garbage", {"name": "Blues"}]`, 10, []string{"Jazz Night", "Blues"}},
		{"null and number", `[null, {"name": "Jazz Night"}, 42]`, 10, []string{"Jazz Night"}},
		{"limit counts kept events", `["garbage", {"name": "A"}, [], {"name": "B"}, {"name": "C"}]`, 2, []string{"A", "B"}},
		{"nothing usable", `["garbage", true]`, 10, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			a, _ := newTestREST(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"_embedded": {"events": ` + tt.events + `}}`))
			})
			a.logger = logger.New(&buf, "info", "text")

			batch, err := a.Fetch(context.Background(), models.Query{City: "Chicago", Genre: "Jazz"}, tt.maxResults)
			if err != nil {
				t.Fatalf("a bad element must not fail the query: %v", err)
			}

			if len(batch.Records) != len(tt.want) {
				t.Fatalf("got %d records, want %d", len(batch.Records), len(tt.want))
			}

			for i, name := range tt.want {
				if batch.Records[i]["name"] != name {
					t.Errorf("record %d = %v, want %s", i, batch.Records[i], name)
				}
			}

			if !strings.Contains(buf.String(), "Skipping event") || !strings.Contains(buf.String(), ErrExtraction.Error()) {
				t.Errorf("expected a warning for the skipped element, got:\n%s", buf.String())
			}
		})
	}
}

func TestRESTAdapter_Unavailable(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCalls int32
	}{
		{"server error not retried", http.StatusInternalServerError, `{}`, 1},
		{"unauthorized", http.StatusUnauthorized, `{"fault": "bad key"}`, 1},
		{"503 retried to exhaustion", http.StatusServiceUnavailable, `{}`, 3},
		{"malformed json", http.StatusOK, `{"_embedded": [`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32

			a, _ := newTestREST(t, func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := a.Fetch(context.Background(), models.Query{City: "Boston", Genre: "Sports"}, 10)
			if !errors.Is(err, ErrSourceUnavailable) {
				t.Fatalf("error = %v, want ErrSourceUnavailable", err)
			}

			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("server hit %d times, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestRESTAdapter_RetryRecovers(t *testing.T) {
	var calls atomic.Int32

	a, _ := newTestREST(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)

			return
		}

		_, _ = w.Write([]byte(`{"_embedded": {"events": [{"name": "Derby"}]}}`))
	})

	batch, err := a.Fetch(context.Background(), models.Query{City: "Dallas", Genre: "Sports"}, 10)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(batch.Records) != 1 || calls.Load() != 2 {
		t.Errorf("records = %d, calls = %d", len(batch.Records), calls.Load())
	}
}

func TestRetryAfter(t *testing.T) {
	policy := config.RetryPolicy{InitialDelayMs: 100, MaxDelayMs: 500, BackoffMultiplier: 2.0}
	wait := retryAfter(policy)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 500 * time.Millisecond},
	}

	for _, tt := range tests {
		got, err := wait(nil, &resty.Response{Request: &resty.Request{Attempt: tt.attempt}})
		if err != nil {
			t.Fatal(err)
		}

		if got != tt.want {
			t.Errorf("wait after attempt %d = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRESTAdapter_RetryBacksOff(t *testing.T) {
	var (
		calls atomic.Int32
		stamp [3]time.Time
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := calls.Add(1)
		if n <= 3 {
			stamp[n-1] = time.Now()
		}

		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	retry := config.RetryPolicy{MaxAttempts: 3, InitialDelayMs: 20, MaxDelayMs: 1000, BackoffMultiplier: 3.0, TimeoutSec: 5}
	a := NewRESTAdapter(RESTOptions{BaseURL: srv.URL, Retry: retry}, logger.NewNop())

	if _, err := a.Fetch(context.Background(), models.Query{City: "Denver", Genre: "Music"}, 10); !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("error = %v, want ErrSourceUnavailable", err)
	}

	if calls.Load() != 3 {
		t.Fatalf("server hit %d times, want 3", calls.Load())
	}

	first, second := stamp[1].Sub(stamp[0]), stamp[2].Sub(stamp[1])

	if first < retry.GetRetryDelay(2) || second < retry.GetRetryDelay(3) {
		t.Errorf("waits %v, %v shorter than backoff %v, %v", first, second, retry.GetRetryDelay(2), retry.GetRetryDelay(3))
	}
}

func TestRESTAdapter_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	retry := testRetry()
	retry.MaxAttempts = 1

	a := NewRESTAdapter(RESTOptions{BaseURL: url, Retry: retry}, logger.NewNop())

	_, err := a.Fetch(context.Background(), models.Query{City: "Miami", Genre: "Music"}, 10)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("error = %v, want ErrSourceUnavailable", err)
	}
}

func TestRESTAdapter_Params(t *testing.T) {
	a := NewRESTAdapter(RESTOptions{
		APIKey:           "k",
		UseSegmentLookup: true,
		Segments:         map[string]string{"seminar": "SEG-SEMINAR"},
		Retry:            testRetry(),
	}, logger.NewNop())

	tests := []struct {
		genre   string
		wantKey string
		wantVal string
	}{
		{"music", "segmentId", "KZFzniwnSyZfZ7v7nJ"},
		{"Arts  & theater", "segmentId", "KZFzniwnSyZfZ7v7na"},
		{"Seminar", "segmentId", "SEG-SEMINAR"},
		{"Jazz", "classificationName", "Jazz"},
	}

	for _, tt := range tests {
		t.Run(tt.genre, func(t *testing.T) {
			params := a.Params(models.Query{City: "Houston", Genre: tt.genre}, 10)
			if params[tt.wantKey] != tt.wantVal {
				t.Errorf("params[%s] = %q, want %q (all: %v)", tt.wantKey, params[tt.wantKey], tt.wantVal, params)
			}

			if _, ok := params["locale"]; ok {
				t.Error("empty locale should be omitted")
			}
		})
	}

	a.opts.UseSegmentLookup = false

	params := a.Params(models.Query{City: "Houston", Genre: "Music"}, 10)
	if params["classificationName"] != "Music" || params["segmentId"] != "" {
		t.Errorf("lookup disabled should send classificationName: %v", params)
	}
}

func TestIsRetryableStatus(t *testing.T) {
	for status, want := range map[int]bool{
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
		http.StatusTooManyRequests:     true,
		http.StatusRequestTimeout:      true,
		http.StatusInternalServerError: false,
		http.StatusNotFound:            false,
		http.StatusOK:                  false,
	} {
		if got := isRetryableStatus(status); got != want {
			t.Errorf("isRetryableStatus(%d) = %v, want %v", status, got, want)
		}
	}
}
