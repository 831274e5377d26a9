// Package config provides configuration management for the event aggregator.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"eventscout/pkg/utils"
)

// Configuration validation errors.
var (
	ErrInvalidSourceKind        = errors.New("source.kind must be one of: rest, browser, fallback")
	ErrMissingBaseURL           = errors.New("source.base_url is required for the rest source")
	ErrInvalidBaseURL           = errors.New("source.base_url must be an absolute http(s) URL")
	ErrMissingListingURL        = errors.New("source.browser.listing_url is required for the browser source")
	ErrMissingCardSelector      = errors.New("source.browser.card_selector is required for the browser source")
	ErrInvalidMaxResults        = errors.New("source.max_results must be at least 1")
	ErrInvalidMaxAttempts       = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay      = errors.New("retry.initial_delay_ms must be non-negative")
	ErrInvalidBackoffMultiplier = errors.New("retry.backoff_multiplier must be >= 1.0")
	ErrInvalidTimeout           = errors.New("retry.timeout_sec must be at least 1")
	ErrNoCities                 = errors.New("planner.cities must not be empty")
	ErrNoGenres                 = errors.New("planner.genres must not be empty")
	ErrInvalidWorkers           = errors.New("planner.workers must be at least 1")
	ErrInvalidMaxInFlight       = errors.New("planner.max_in_flight must be at least 1")
	ErrInvalidQueryTimeout      = errors.New("planner.query_timeout_sec must be at least 1")
	ErrInvalidEnrichProvider    = errors.New("enrichment.provider must be one of: ollama, openai")
	ErrInvalidLengthBounds      = errors.New("enrichment.min_length must be >= 0 and <= enrichment.max_length")
	ErrInvalidTopN              = errors.New("enrichment.top_n must be between 1 and 5")
	ErrMissingOutputPath        = errors.New("output.path is required")
	ErrInvalidLogLevel          = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat         = errors.New("logging.format must be 'text' or 'json'")
)

// Source kinds.
const (
	SourceREST     = "rest"
	SourceBrowser  = "browser"
	SourceFallback = "fallback"
)

// DefaultPath is the configuration file used when EVENTSCOUT_CONFIG is not set.
const DefaultPath = "configs/eventscout.yaml"

// Config represents the complete aggregator configuration.
type Config struct {
	Source     SourceConfig     `yaml:"source"`
	Retry      RetryPolicy      `yaml:"retry"`
	Planner    PlannerConfig    `yaml:"planner"`
	Normalize  NormalizeConfig  `yaml:"normalize"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Notify     NotifyConfig     `yaml:"notify"`
}

// SourceConfig selects and parameterizes the event source.
type SourceConfig struct {
	Segments         map[string]string `yaml:"segments"`
	Kind             string            `yaml:"kind"`
	BaseURL          string            `yaml:"base_url"`
	APIKey           string            `yaml:"api_key"`
	Locale           string            `yaml:"locale"`
	Browser          BrowserConfig     `yaml:"browser"`
	MaxResults       int               `yaml:"max_results"`
	UseSegmentLookup bool              `yaml:"use_segment_lookup"`
}

// BrowserConfig parameterizes the browser-rendered listings source.
type BrowserConfig struct {
	ListingURL     string `yaml:"listing_url"`
	CardSelector   string `yaml:"card_selector"`
	TitleSelector  string `yaml:"title_selector"`
	DateSelector   string `yaml:"date_selector"`
	PlaceSelector  string `yaml:"place_selector"`
	ExecutablePath string `yaml:"executable_path"`
	WaitMs         int    `yaml:"wait_ms"`
}

// RetryPolicy defines retry behavior.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// PlannerConfig defines the query space and the worker pool.
type PlannerConfig struct {
	Cities          []string `yaml:"cities"`
	Genres          []string `yaml:"genres"`
	Workers         int      `yaml:"workers"`
	MaxInFlight     int      `yaml:"max_in_flight"`
	QueryTimeoutSec int      `yaml:"query_timeout_sec"`
}

// NormalizeConfig toggles optional canonical fields.
type NormalizeConfig struct {
	IncludeImageURL  bool `yaml:"include_image_url"`
	IncludeOrganizer bool `yaml:"include_organizer"`
}

// EnrichmentConfig defines the text generation and keyword extraction backends.
type EnrichmentConfig struct {
	Provider        string      `yaml:"provider"`
	Endpoint        string      `yaml:"endpoint"`
	Model           string      `yaml:"model"`
	APIKey          string      `yaml:"api_key"`
	KeywordEndpoint string      `yaml:"keyword_endpoint"`
	Cache           CacheConfig `yaml:"cache"`
	TimeoutSec      int         `yaml:"timeout_sec"`
	MinLength       int         `yaml:"min_length"`
	MaxLength       int         `yaml:"max_length"`
	TopN            int         `yaml:"top_n"`
	Enabled         bool        `yaml:"enabled"`
}

// CacheConfig configures the optional Redis description cache.
type CacheConfig struct {
	RedisURL string `yaml:"redis_url"`
	TTLSec   int    `yaml:"ttl_sec"`
}

// OutputConfig defines output behavior.
type OutputConfig struct {
	Path            string `yaml:"path"`
	ArchivePath     string `yaml:"archive_path"`
	CreateBackup    bool   `yaml:"create_backup"`
	CrossGroupDedup bool   `yaml:"cross_group_dedup"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	SampleEvents int    `yaml:"sample_events"`
	ShowProgress bool   `yaml:"show_progress"`
}

// MetricsConfig defines where run metrics are written.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path"`
}

// NotifyConfig configures NATS publication of exported datasets.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// Default returns the built-in configuration reproducing the batch defaults.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Kind:             SourceREST,
			BaseURL:          "https://app.ticketmaster.com",
			Locale:           "en-us",
			MaxResults:       10,
			UseSegmentLookup: true,
			Browser: BrowserConfig{
				ListingURL:    "https://www.eventbrite.com/d/united-states--texas/education/",
				CardSelector:  ".eds-event-card-content__content",
				TitleSelector: ".eds-event-card-content__title",
				DateSelector:  ".eds-event-card-content__sub-title",
				PlaceSelector: ".card-text--truncated__one",
				WaitMs:        3000,
			},
		},
		Retry: RetryPolicy{
			MaxAttempts:       3,
			InitialDelayMs:    500,
			MaxDelayMs:        30000,
			BackoffMultiplier: 2.0,
			TimeoutSec:        30,
		},
		Planner: PlannerConfig{
			Cities:          []string{"Chicago", "New York", "Austin", "Boston", "Houston", "Dallas", "Miami"},
			Genres:          []string{"Miscellaneous", "Seminar", "Sports", "Music", "Family"},
			Workers:         1,
			MaxInFlight:     1,
			QueryTimeoutSec: 120,
		},
		Normalize: NormalizeConfig{
			IncludeImageURL:  true,
			IncludeOrganizer: true,
		},
		Enrichment: EnrichmentConfig{
			Enabled:    true,
			Provider:   "ollama",
			Endpoint:   "http://localhost:11434/api/generate",
			Model:      "llama3.1",
			TimeoutSec: 60,
			MinLength:  10,
			MaxLength:  50,
			TopN:       5,
			Cache: CacheConfig{
				TTLSec: 86400,
			},
		},
		Output: OutputConfig{
			Path:         "All_Events_Details.xlsx",
			CreateBackup: true,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "text",
			ShowProgress: true,
			SampleEvents: 3,
		},
		Notify: NotifyConfig{
			Subject: "eventscout.datasets",
		},
	}
}

// LoadConfig loads configuration from a YAML file layered over Default.
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.ApplyEnv()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Load resolves the configuration for a command: .env is loaded first, then the
// file named by EVENTSCOUT_CONFIG (or DefaultPath). A missing default file falls
// back to Default with environment overrides applied.
func Load() (*Config, string, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	path := os.Getenv("EVENTSCOUT_CONFIG")
	explicit := path != ""

	if !explicit {
		path = DefaultPath
	}

	if _, err := os.Stat(path); err != nil {
		if explicit {
			return nil, path, fmt.Errorf("failed to read config file: %w", err)
		}

		cfg := Default()
		cfg.ApplyEnv()

		if err := cfg.Validate(); err != nil {
			return nil, "", fmt.Errorf("configuration validation failed: %w", err)
		}

		return cfg, "", nil
	}

	cfg, err := LoadConfig(path)

	return cfg, path, err
}

// ApplyEnv overrides secrets and endpoints from the environment.
func (c *Config) ApplyEnv() {
	setString(&c.Source.APIKey, "TICKETMASTER_API_KEY")
	setString(&c.Source.Browser.ExecutablePath, "PLAYWRIGHT_EXECUTABLE_PATH")
	setString(&c.Enrichment.Provider, "LLM_PROVIDER")
	setString(&c.Enrichment.Endpoint, "LLM_ENDPOINT")
	setString(&c.Enrichment.Model, "LLM_MODEL")
	setString(&c.Enrichment.APIKey, "LLM_API_KEY")
	setString(&c.Enrichment.Cache.RedisURL, "REDIS_URL")
	setString(&c.Notify.NATSURL, "NATS_URL")
	setString(&c.Output.Path, "EVENTSCOUT_OUTPUT")

	if v := os.Getenv("EVENTSCOUT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Planner.Workers = n
		}
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.validateSource(); err != nil {
		return err
	}

	// Validate retry policy
	if c.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if c.Retry.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}

	if c.Retry.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}

	if c.Retry.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	// Validate planner
	if len(c.Planner.Cities) == 0 {
		return ErrNoCities
	}

	if len(c.Planner.Genres) == 0 {
		return ErrNoGenres
	}

	if c.Planner.Workers < 1 {
		return ErrInvalidWorkers
	}

	if c.Planner.MaxInFlight < 1 {
		return ErrInvalidMaxInFlight
	}

	if c.Planner.QueryTimeoutSec < 1 {
		return ErrInvalidQueryTimeout
	}

	// Validate enrichment
	if c.Enrichment.Enabled {
		if c.Enrichment.Provider != "ollama" && c.Enrichment.Provider != "openai" {
			return ErrInvalidEnrichProvider
		}

		if c.Enrichment.MinLength < 0 || c.Enrichment.MinLength > c.Enrichment.MaxLength {
			return ErrInvalidLengthBounds
		}

		if c.Enrichment.TopN < 1 || c.Enrichment.TopN > 5 {
			return ErrInvalidTopN
		}
	}

	// Validate output config
	if strings.TrimSpace(c.Output.Path) == "" {
		return ErrMissingOutputPath
	}

	// Validate logging config
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if c.Logging.Format != "" && c.Logging.Format != "text" && c.Logging.Format != "json" {
		return ErrInvalidLogFormat
	}

	return nil
}

func (c *Config) validateSource() error {
	kind := c.Source.Kind
	if kind != SourceREST && kind != SourceBrowser && kind != SourceFallback {
		return ErrInvalidSourceKind
	}

	if c.Source.MaxResults < 1 {
		return ErrInvalidMaxResults
	}

	if kind != SourceBrowser {
		if strings.TrimSpace(c.Source.BaseURL) == "" {
			return ErrMissingBaseURL
		}

		if !utils.NewHTTPHelper().IsValidURL(c.Source.BaseURL) {
			return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.Source.BaseURL)
		}
	}

	if kind != SourceREST {
		if strings.TrimSpace(c.Source.Browser.ListingURL) == "" {
			return ErrMissingListingURL
		}

		if strings.TrimSpace(c.Source.Browser.CardSelector) == "" {
			return ErrMissingCardSelector
		}
	}

	return nil
}

// GetRetryDelay calculates exponential backoff delay for attempt number.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delayMs := float64(rp.InitialDelayMs)
	for i := 1; i < attempt; i++ {
		delayMs *= rp.BackoffMultiplier
	}

	// Cap at max delay
	if int(delayMs) > rp.MaxDelayMs {
		delayMs = float64(rp.MaxDelayMs)
	}

	return time.Duration(int(delayMs)) * time.Millisecond
}

// GetTimeout returns the timeout duration.
func (rp *RetryPolicy) GetTimeout() time.Duration {
	return time.Duration(rp.TimeoutSec) * time.Second
}

// QueryTimeout returns the per-query deadline.
func (p *PlannerConfig) QueryTimeout() time.Duration {
	return time.Duration(p.QueryTimeoutSec) * time.Second
}

// Timeout returns the per-call model timeout.
func (e *EnrichmentConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSec) * time.Second
}

// TTL returns the cache entry lifetime.
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSec) * time.Second
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Source: %s, Queries: %dx%d, Workers: %d, Output: %s}",
		c.Source.Kind,
		len(c.Planner.Cities),
		len(c.Planner.Genres),
		c.Planner.Workers,
		c.Output.Path,
	)
}
