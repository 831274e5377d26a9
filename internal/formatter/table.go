// Package formatter renders events and run summaries as aligned console text.
package formatter

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"eventscout/internal/models"
)

const ellipsis = "…"

// Table renders headers and rows as a pipe table. Columns are padded to the
// widest cell by display width; cells wider than maxWidth are cut with an
// ellipsis. A maxWidth of zero disables truncation.
func Table(headers []string, rows [][]string, maxWidth int) []string {
	table := make([][]string, 0, len(rows)+1)
	table = append(table, cleanCells(headers, maxWidth))

	for _, row := range rows {
		table = append(table, cleanCells(row, maxWidth))
	}

	return alignRows(table)
}

func cleanCells(cells []string, maxWidth int) []string {
	out := make([]string, len(cells))

	for i, c := range cells {
		c = strings.Join(strings.Fields(c), " ")
		c = strings.ReplaceAll(c, "|", "/")

		if maxWidth > 0 && runewidth.StringWidth(c) > maxWidth {
			c = runewidth.Truncate(c, maxWidth, ellipsis)
		}

		out[i] = c
	}

	return out
}

// alignRows draws table[0] as the header, a dashed separator, then the rest.
func alignRows(table [][]string) []string {
	colCount := 0
	for _, row := range table {
		if len(row) > colCount {
			colCount = len(row)
		}
	}

	widths := make([]int, colCount)

	for _, row := range table {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	for i := range widths {
		if widths[i] < 3 {
			widths[i] = 3
		}
	}

	result := make([]string, 0, len(table)+1)

	for i, row := range table {
		result = append(result, drawRow(row, widths))

		if i == 0 {
			dashes := make([]string, colCount)
			for j, w := range widths {
				dashes[j] = strings.Repeat("-", w)
			}

			result = append(result, drawRow(dashes, widths))
		}
	}

	return result
}

func drawRow(row []string, widths []int) string {
	var sb strings.Builder

	sb.WriteString("|")

	for j, w := range widths {
		content := ""
		if j < len(row) {
			content = row[j]
		}

		sb.WriteString(" ")
		sb.WriteString(runewidth.FillRight(content, w))
		sb.WriteString(" |")
	}

	return sb.String()
}

// EventDetails renders one event as "Label: value" lines with the labels
// padded to a common width.
func EventDetails(ev models.EnrichedEvent) string {
	labelWidth := 0
	for _, c := range models.Columns {
		if w := runewidth.StringWidth(c); w > labelWidth {
			labelWidth = w
		}
	}

	var sb strings.Builder

	for i, value := range ev.Row() {
		sb.WriteString(runewidth.FillRight(models.Columns[i]+":", labelWidth+1))
		sb.WriteString(" ")
		sb.WriteString(value)
		sb.WriteString("\n")
	}

	return sb.String()
}

// Summary renders one row per dataset with its event count.
func Summary(datasets []models.Dataset) string {
	rows := make([][]string, 0, len(datasets))
	total := 0

	for _, ds := range datasets {
		rows = append(rows, []string{ds.Key, ds.Query.City, ds.Query.Genre, strconv.Itoa(len(ds.Events))})
		total += len(ds.Events)
	}

	rows = append(rows, []string{"Total", "", "", strconv.Itoa(total)})

	return strings.Join(Table([]string{"Dataset", "City", "Genre", "Events"}, rows, 40), "\n") + "\n"
}

// Preview renders the first n events of a dataset as a compact table.
func Preview(ds models.Dataset, n, maxWidth int) string {
	if n > len(ds.Events) {
		n = len(ds.Events)
	}

	rows := make([][]string, 0, n)
	for _, ev := range ds.Events[:n] {
		rows = append(rows, []string{ev.Name, ev.Date, ev.VenueName, strings.Join(ev.Keywords, ", ")})
	}

	return strings.Join(Table([]string{"Name", "Date", "Venue", "Keywords"}, rows, maxWidth), "\n") + "\n"
}
