// Package app wires a loaded configuration into a runnable pipeline shared by
// the batch and interactive commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventscout/internal/aggregator"
	"eventscout/internal/config"
	"eventscout/internal/crawler"
	"eventscout/internal/enrichment"
	"eventscout/internal/exporter"
	"eventscout/internal/logger"
	"eventscout/internal/metrics"
	"eventscout/internal/models"
	"eventscout/internal/normalizer"
	"eventscout/internal/notify"
	"eventscout/internal/planner"
)

// App holds the components for one run.
type App struct {
	cfg     *config.Config
	source  crawler.Source
	planner *planner.Planner
	metrics *metrics.Metrics
	logger  *logger.Logger
	closers []func() error
	runID   string
}

// New builds every component described by cfg.
func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	source, err := crawler.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create source: %w", err)
	}

	svc, closeEnrichment, err := enrichment.NewFromConfig(cfg.Enrichment, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create enrichment: %w", err)
	}

	m := metrics.New()
	norm := normalizer.NewNormalizer(normalizer.Options{
		IncludeImageURL:  cfg.Normalize.IncludeImageURL,
		IncludeOrganizer: cfg.Normalize.IncludeOrganizer,
	})

	return &App{
		cfg:     cfg,
		source:  source,
		planner: planner.New(source, norm, svc, m, planner.OptionsFromConfig(cfg), log),
		metrics: m,
		logger:  log,
		closers: []func() error{
			func() error { return crawler.Close(source) },
			closeEnrichment,
		},
		runID:   notify.NewRunID(),
	}, nil
}

// RunID identifies this run in the archive and in announcements.
func (a *App) RunID() string {
	return a.runID
}

// Planner exposes the configured planner.
func (a *App) Planner() *planner.Planner {
	return a.planner
}

// Collect runs every configured (city, genre) query and returns the datasets
// to export, applying cross-group dedup when enabled.
func (a *App) Collect(ctx context.Context) ([]models.Dataset, planner.Summary, error) {
	queries := planner.Plan(a.cfg.Planner.Cities, a.cfg.Planner.Genres)

	agg, summary, err := a.planner.Run(ctx, queries)

	if fb, ok := a.source.(*crawler.FallbackSource); ok {
		fb.LogAttemptSummary(a.logger)
	}

	datasets := agg.Datasets()

	if a.cfg.Output.CrossGroupDedup {
		var removed int

		datasets, removed = aggregator.DedupeAcross(datasets)
		summary.Duplicates += removed
		summary.Events -= removed
		a.metrics.AddDuplicates(removed)

		a.logger.Info("🧹 Cross-group dedup", "removed", removed)
	}

	return datasets, summary, err
}

// Export writes datasets to the workbook and, when configured, the archive,
// then announces them. Only a failed workbook or archive write is returned;
// announcement and metrics failures are logged.
func (a *App) Export(datasets []models.Dataset) error {
	exporters := exporter.Multi{
		exporter.NewXLSXExporter(a.cfg.Output.Path, a.cfg.Output.CreateBackup, a.logger),
	}

	if a.cfg.Output.ArchivePath != "" {
		archive, err := exporter.OpenSQLiteArchive(a.cfg.Output.ArchivePath, a.runID, a.logger)
		if err != nil {
			return err
		}

		defer func() { _ = archive.Close() }()

		exporters = append(exporters, archive)
	}

	if err := exporters.Export(datasets); err != nil {
		return err
	}

	rows := 0
	for _, ds := range datasets {
		rows += len(ds.Events)
	}

	a.metrics.AddExported(rows)
	a.announce(datasets)

	return nil
}

func (a *App) announce(datasets []models.Dataset) {
	if a.cfg.Notify.NATSURL == "" {
		return
	}

	n, err := notify.Connect(a.cfg.Notify.NATSURL, a.cfg.Notify.Subject, a.logger)
	if err != nil {
		a.logger.Warn("⚠️  Skipping dataset announcements", "error", err)

		return
	}

	defer func() { _ = n.Close() }()

	if err := n.Announce(a.runID, a.cfg.Output.Path, datasets); err != nil {
		a.logger.Warn("⚠️  Dataset announcement failed", "error", err)
	}
}

// Close records run completion, writes the metrics textfile and releases
// held connections.
func (a *App) Close() error {
	a.metrics.MarkRunCompleted(time.Now())

	if err := a.metrics.WriteTextfile(a.cfg.Metrics.TextfilePath); err != nil {
		a.logger.Warn("⚠️  Failed to write metrics", "path", a.cfg.Metrics.TextfilePath, "error", err)
	}

	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}

	return errors.Join(errs...)
}
