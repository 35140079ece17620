package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	pgutils "github.com/jackmaney/pg-utils"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return cellStyle
		}).
		Headers(headers...)
}

func renderFrame(f *pgutils.Frame) string {
	t := newTable(f.Columns...)
	for _, row := range f.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		t.Row(cells...)
	}
	return t.Render()
}

func renderDescription(d *pgutils.Description) string {
	headers := append([]string{""}, d.Columns()...)
	t := newTable(headers...)
	for _, label := range d.Index() {
		cells := []string{label}
		for _, col := range d.Columns() {
			cells = append(cells, formatStat(d.Column(col).Value(label)))
		}
		t.Row(cells...)
	}
	return t.Render()
}

func renderBins(bins []pgutils.Bin) string {
	var max int64
	for _, b := range bins {
		if b.Count > max {
			max = b.Count
		}
	}

	t := newTable("left", "right", "count", "")
	for _, b := range bins {
		t.Row(
			formatStat(b.Left),
			formatStat(b.Right),
			strconv.FormatInt(b.Count, 10),
			bar(b.Count, max),
		)
	}
	return t.Render()
}

// bar draws a proportional histogram bar, at most 40 cells wide.
func bar(count, max int64) string {
	if max <= 0 || count <= 0 {
		return ""
	}
	width := int(math.Round(float64(count) / float64(max) * 40))
	if width < 1 {
		width = 1
	}
	return strings.Repeat("█", width)
}

func formatStat(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	return strconv.FormatFloat(f, 'g', 6, 64)
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
