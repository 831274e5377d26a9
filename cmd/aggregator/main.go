// Package main provides the batch command that aggregates events for every
// configured city and genre into one workbook.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventscout/internal/app"
	"eventscout/internal/config"
	"eventscout/internal/formatter"
	"eventscout/internal/logger"
)

func main() {
	cfg, cfgPath, err := config.Load()
	if err != nil {
		logger.NewLogger("info").Error(fmt.Sprintf("❌ Failed to load configuration: %v", err))
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg, cfgPath, log); err != nil {
		log.Error(fmt.Sprintf("❌ %v", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, cfgPath string, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startTime := time.Now()

	log.Info("🚀 Starting event aggregation")

	if cfgPath != "" {
		log.Info(fmt.Sprintf("📄 Config: %s", cfgPath))
	}

	log.Info(fmt.Sprintf("📍 Cities: %v", cfg.Planner.Cities))
	log.Info(fmt.Sprintf("🎭 Genres: %v", cfg.Planner.Genres))
	log.Info(fmt.Sprintf("🎯 Output: %s", cfg.Output.Path))

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}

	defer func() {
		if err := a.Close(); err != nil {
			log.Warn(fmt.Sprintf("⚠️  Cleanup failed: %v", err))
		}
	}()

	// 1. Collection
	// -------------
	log.Info("Phase 1: Collection (Fetch, Normalize, Enrich)...")

	datasets, summary, err := a.Collect(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			return err
		}

		log.Warn("⚠️  Interrupted, exporting partial results")
	}

	log.Info(fmt.Sprintf("✅ %s", summary))

	// 2. Export
	// ---------
	log.Info("Phase 2: Export...")

	if err := a.Export(datasets); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	log.Info(fmt.Sprintf("💾 Saved %d datasets to %s", len(datasets), cfg.Output.Path))

	// 3. Final Report
	// ---------------
	log.Info("✨ Aggregation Complete!")
	fmt.Println("\n------------------------------------------------")
	fmt.Printf("📊 Summary Report (run %s)\n", a.RunID())
	fmt.Println("------------------------------------------------")
	fmt.Print(formatter.Summary(datasets))

	if cfg.Logging.SampleEvents > 0 {
		for _, ds := range datasets {
			if len(ds.Events) == 0 {
				continue
			}

			fmt.Printf("\n%s\n", ds.Key)
			fmt.Print(formatter.Preview(ds, cfg.Logging.SampleEvents, 40))
		}
	}

	fmt.Printf("\nTotal Duration: %v\n", time.Since(startTime).Round(time.Millisecond))
	fmt.Println("------------------------------------------------")

	return nil
}
