package exporter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"eventscout/internal/logger"
	"eventscout/internal/models"
)

// XLSXExporter writes all datasets to a single workbook.
type XLSXExporter struct {
	logger       *logger.Logger
	path         string
	createBackup bool
}

// NewXLSXExporter creates an exporter writing to path. With createBackup, an
// existing file is kept as path + ".bak".
func NewXLSXExporter(path string, createBackup bool, log *logger.Logger) *XLSXExporter {
	return &XLSXExporter{
		path:         path,
		createBackup: createBackup,
		logger:       log.Component("exporter"),
	}
}

// Path returns the workbook location.
func (x *XLSXExporter) Path() string {
	return x.path
}

// Export implements Exporter. Every dataset gets a sheet with the header row,
// including datasets without events. The workbook replaces the target
// atomically.
func (x *XLSXExporter) Export(datasets []models.Dataset) error {
	f, err := x.build(datasets)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}

	defer func() { _ = f.Close() }()

	if err := x.write(f); err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}

	x.logger.Info("💾 Workbook written", "path", x.path, "sheets", len(datasets))

	return nil
}

func (x *XLSXExporter) build(datasets []models.Dataset) (*excelize.File, error) {
	f := excelize.NewFile()

	keys := make([]string, len(datasets))
	for i, ds := range datasets {
		keys[i] = ds.Key
	}

	names := SheetNames(keys)
	if len(names) == 0 {
		names = []string{"Events"}
		datasets = []models.Dataset{{Key: "Events"}}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()

		return nil, err
	}

	for i, ds := range datasets {
		if err := x.writeSheet(f, names[i], ds, header); err != nil {
			_ = f.Close()

			return nil, fmt.Errorf("sheet %q: %w", names[i], err)
		}
	}

	// NewFile starts with a default sheet; drop it unless one of ours reused the name.
	if !contains(names, "Sheet1") {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			_ = f.Close()

			return nil, err
		}
	}

	if idx, err := f.GetSheetIndex(names[0]); err == nil {
		f.SetActiveSheet(idx)
	}

	return f, nil
}

func (x *XLSXExporter) writeSheet(f *excelize.File, name string, ds models.Dataset, headerStyle int) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}

	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return err
	}

	header := make([]any, len(models.Columns))
	for i, c := range models.Columns {
		header[i] = excelize.Cell{StyleID: headerStyle, Value: c}
	}

	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for r, ev := range ds.Events {
		cells := ev.Row()

		row := make([]any, len(cells))
		for i, c := range cells {
			row[i] = c
		}

		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}

		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}

	return sw.Flush()
}

func (x *XLSXExporter) write(f *excelize.File) error {
	dir := filepath.Dir(x.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".eventscout-*.xlsx")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	tmpPath := tmp.Name()

	defer func() { _ = os.Remove(tmpPath) }()

	if err := f.Write(tmp); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("failed to write workbook: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close workbook: %w", err)
	}

	if x.createBackup {
		if _, err := os.Stat(x.path); err == nil {
			backupPath := x.path + ".bak"
			if err := os.Rename(x.path, backupPath); err != nil {
				x.logger.Warn("⚠️  Could not create backup", "error", err)
			} else {
				x.logger.Info("💾 Backed up existing file", "path", backupPath)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			x.logger.Warn("⚠️  Could not stat existing output", "error", err)
		}
	}

	if err := os.Rename(tmpPath, x.path); err != nil {
		return fmt.Errorf("failed to move workbook into place: %w", err)
	}

	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}

	return false
}
