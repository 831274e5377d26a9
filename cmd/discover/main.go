// Package main provides the interactive command that looks up events for a
// single city and genre and saves them to the workbook.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"eventscout/internal/app"
	"eventscout/internal/config"
	"eventscout/internal/formatter"
	"eventscout/internal/logger"
	"eventscout/internal/models"
	"eventscout/internal/planner"
)

func main() {
	cfg, _, err := config.Load()
	if err != nil {
		logger.NewLogger("info").Error(fmt.Sprintf("❌ Failed to load configuration: %v", err))
		os.Exit(1)
	}

	log := logger.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg, os.Stdin, os.Stdout, log); err != nil {
		log.Error(fmt.Sprintf("❌ %v", err))
		os.Exit(1)
	}
}

// prompt prints label and reads one non-empty line.
func prompt(r *bufio.Reader, w io.Writer, label string) (string, error) {
	for {
		fmt.Fprint(w, label)

		line, err := r.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}

		if err != nil {
			return "", fmt.Errorf("no input for %q: %w", strings.TrimSuffix(label, ": "), err)
		}
	}
}

func run(cfg *config.Config, in io.Reader, out io.Writer, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader := bufio.NewReader(in)

	city, err := prompt(reader, out, "Enter the city: ")
	if err != nil {
		return err
	}

	genre, err := prompt(reader, out, "Enter the genre: ")
	if err != nil {
		return err
	}

	q := planner.Single(city, genre)

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}

	defer func() {
		if err := a.Close(); err != nil {
			log.Warn(fmt.Sprintf("⚠️  Cleanup failed: %v", err))
		}
	}()

	log.Info(fmt.Sprintf("🔎 Searching %s", q))

	ds, err := a.Planner().RunOne(ctx, q)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(ds.Events) == 0 {
		fmt.Fprintf(out, "\nNo events found for %s.\n", q)
	}

	for i, ev := range ds.Events {
		fmt.Fprintf(out, "\nEvent %d\n", i+1)
		fmt.Fprint(out, formatter.EventDetails(ev))
	}

	if err := a.Export([]models.Dataset{ds}); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Fprintf(out, "\n💾 Saved %d events to %s (sheet %s)\n", len(ds.Events), cfg.Output.Path, ds.Key)

	return nil
}
