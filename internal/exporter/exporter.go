// Package exporter writes finished datasets to their destinations: the XLSX
// workbook (one sheet per dataset) and an optional SQLite archive.
package exporter

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"

	"eventscout/internal/models"
)

// ErrExport marks a failure to persist datasets. It is the only error that
// aborts a run.
var ErrExport = errors.New("export failed")

// maxSheetName is Excel's sheet name limit in UTF-16 code units.
const maxSheetName = 31

// Exporter persists a set of datasets.
type Exporter interface {
	Export(datasets []models.Dataset) error
}

// Multi runs exporters in order and stops at the first failure.
type Multi []Exporter

// Export implements Exporter.
func (m Multi) Export(datasets []models.Dataset) error {
	for _, e := range m {
		if err := e.Export(datasets); err != nil {
			return err
		}
	}

	return nil
}

var sheetReplacer = strings.NewReplacer(
	"[", "_", "]", "_", ":", "_", "*", "_", "?", "_", "/", "_", "\\", "_",
)

// SheetName turns a dataset key into a legal Excel sheet name.
func SheetName(key string) string {
	name := strings.TrimSpace(sheetReplacer.Replace(key))
	name = strings.Trim(name, "'")

	if name == "" {
		name = "Sheet"
	}

	return truncateUTF16(name, maxSheetName)
}

// SheetNames maps keys to legal sheet names that are unique ignoring case.
// Collisions get a numeric suffix.
func SheetNames(keys []string) []string {
	used := make(map[string]struct{}, len(keys))
	out := make([]string, len(keys))

	for i, key := range keys {
		base := SheetName(key)
		name := base

		for n := 2; ; n++ {
			if _, taken := used[strings.ToLower(name)]; !taken {
				break
			}

			suffix := fmt.Sprintf(" (%d)", n)
			name = truncateUTF16(base, maxSheetName-len(suffix)) + suffix
		}

		used[strings.ToLower(name)] = struct{}{}
		out[i] = name
	}

	return out
}

func truncateUTF16(s string, limit int) string {
	if len(utf16.Encode([]rune(s))) <= limit {
		return s
	}

	var (
		b     strings.Builder
		units int
	)

	for _, r := range s {
		n := utf16.RuneLen(r)
		if units+n > limit {
			break
		}

		units += n
		b.WriteRune(r)
	}

	return strings.TrimRight(b.String(), " ")
}
