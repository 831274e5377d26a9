package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"eventscout/internal/app"
	"eventscout/internal/config"
	"eventscout/internal/exporter"
	"eventscout/internal/logger"
	"eventscout/internal/models"
)

// discoveryServer serves the fixture for Chicago, an empty page for Austin and
// a server error for Boston.
func discoveryServer(t *testing.T) *httptest.Server {
	t.Helper()

	fixture, err := os.ReadFile(filepath.Join("..", "fixtures", "discovery_events.json"))
	if err != nil {
		t.Fatalf("Failed to read fixture: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apikey") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Query().Get("city") {
		case "Chicago":
			_, _ = w.Write(fixture)
		case "Austin":
			_, _ = w.Write([]byte(`{"page": {"size": 10, "totalElements": 0}}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(srv.Close)

	return srv
}

// modelServer answers Ollama-style generate requests and fails for Rock Show.
func modelServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)

			return
		}

		w.Header().Set("Content-Type", "application/json")

		if strings.Contains(req.Prompt, "Event: Rock Show\n") {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error": "model overloaded"}`))

			return
		}

		_, _ = w.Write([]byte(`{"response": "An intimate evening of live jazz. Doors open early."}`))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func testConfig(t *testing.T, discoveryURL, modelURL string) *config.Config {
	t.Helper()

	dir := t.TempDir()

	cfg := config.Default()
	cfg.Source.BaseURL = discoveryURL
	cfg.Source.APIKey = "test-key"
	cfg.Retry.MaxAttempts = 1
	cfg.Retry.TimeoutSec = 5
	cfg.Planner.Cities = []string{"Chicago", "Austin", "Boston"}
	cfg.Planner.Genres = []string{"Music"}
	cfg.Planner.QueryTimeoutSec = 10
	cfg.Enrichment.Endpoint = modelURL
	cfg.Enrichment.TimeoutSec = 5
	cfg.Output.Path = filepath.Join(dir, "All_Events_Details.xlsx")
	cfg.Output.ArchivePath = filepath.Join(dir, "events.db")
	cfg.Metrics.TextfilePath = filepath.Join(dir, "eventscout.prom")
	cfg.Logging.ShowProgress = false

	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid test config: %v", err)
	}

	return cfg
}

func TestPipeline_BatchRun(t *testing.T) {
	cfg := testConfig(t, discoveryServer(t).URL, modelServer(t).URL)

	a, err := app.New(cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("app.New failed: %v", err)
	}

	// 1. Collection
	datasets, summary, err := a.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if summary.Succeeded != 1 || summary.Empty != 1 || summary.Failed != 1 {
		t.Errorf("Unexpected summary: %s", summary)
	}

	if summary.Duplicates != 1 || summary.Events != 2 {
		t.Errorf("Expected 2 events after 1 duplicate, got %s", summary)
	}

	// 2. Export
	if err := a.Export(datasets); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// 3. Verification
	f, err := excelize.OpenFile(cfg.Output.Path)
	if err != nil {
		t.Fatalf("Failed to open workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	if got := f.GetSheetList(); len(got) != 2 || got[0] != "Chicago_Music" || got[1] != "Austin_Music" {
		t.Fatalf("Expected sheets [Chicago_Music Austin_Music], got %v", got)
	}

	rows, err := f.GetRows("Chicago_Music")
	if err != nil {
		t.Fatal(err)
	}

	if len(rows) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d", len(rows))
	}

	if strings.Join(rows[0], ",") != strings.Join(models.Columns, ",") {
		t.Errorf("Unexpected header: %v", rows[0])
	}

	jazz, rock := rows[1], rows[2]

	if jazz[0] != "Jazz Night" || jazz[7] != "https://www.ticketmaster.com/event/first" {
		t.Errorf("Expected first-seen Jazz Night, got %v", jazz)
	}

	if jazz[9] != "An intimate evening of live jazz. Doors open early." {
		t.Errorf("Expected generated description, got %q", jazz[9])
	}

	if len(jazz) < len(models.Columns) || jazz[10] == "" {
		t.Error("Expected keywords for Jazz Night")
	}

	if rock[3] != models.NoAddress || rock[2] != models.NoVenue || rock[1] != "2024-05-02" {
		t.Errorf("Expected sentinel venue/address for Rock Show, got %v", rock)
	}

	if rock[9] != models.NoDescription {
		t.Errorf("Expected description fallback for Rock Show, got %q", rock[9])
	}

	austin, err := f.GetRows("Austin_Music")
	if err != nil || len(austin) != 1 {
		t.Errorf("Expected header-only Austin sheet, got %v (%v)", austin, err)
	}

	// Archive and metrics side outputs
	archive, err := exporter.OpenSQLiteArchive(cfg.Output.ArchivePath, "verify", logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = archive.Close() }()

	if n, err := archive.Count(""); err != nil || n != 2 {
		t.Errorf("Expected 2 archived events, got %d (%v)", n, err)
	}

	prom, err := os.ReadFile(cfg.Metrics.TextfilePath)
	if err != nil {
		t.Fatalf("Expected metrics textfile: %v", err)
	}

	if !strings.Contains(string(prom), "eventscout_events_exported_total 2") {
		t.Errorf("Unexpected metrics:\n%s", prom)
	}
}

func TestPipeline_UnwritableOutput(t *testing.T) {
	cfg := testConfig(t, discoveryServer(t).URL, modelServer(t).URL)

	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg.Output.Path = filepath.Join(blocker, "out.xlsx")
	cfg.Output.ArchivePath = ""

	a, err := app.New(cfg, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	datasets, _, err := a.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if err := a.Export(datasets); err == nil {
		t.Fatal("Expected export error for unwritable destination")
	}
}

func TestPipeline_CrossGroupDedup(t *testing.T) {
	cfg := testConfig(t, discoveryServer(t).URL, modelServer(t).URL)
	cfg.Planner.Cities = []string{"Chicago"}
	cfg.Planner.Genres = []string{"Music", "Jazz"}
	cfg.Output.CrossGroupDedup = true
	cfg.Enrichment.Enabled = false

	a, err := app.New(cfg, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	datasets, summary, err := a.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(datasets) != 2 || len(datasets[0].Events) != 2 || len(datasets[1].Events) != 0 {
		t.Errorf("Expected second genre emptied by cross-group dedup, got %+v", datasets)
	}

	if summary.Events != 2 || summary.Duplicates != 4 {
		t.Errorf("Unexpected summary: %s", summary)
	}

	for _, ev := range datasets[0].Events {
		if ev.Description != models.NoDescription {
			t.Errorf("Expected placeholder description with enrichment disabled, got %q", ev.Description)
		}
	}
}
