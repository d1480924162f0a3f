package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Reporter generates inventory reports in various formats
type Reporter struct {
	inv *Inventory
}

// NewReporter creates a new reporter
func NewReporter(inv *Inventory) *Reporter {
	return &Reporter{inv: inv}
}

// GenerateReport generates a report in the specified format
func (r *Reporter) GenerateReport(format ReportFormat) (string, error) {
	switch format {
	case ReportFormatText:
		return r.generateTextReport()
	case ReportFormatMarkdown:
		return r.generateMarkdownReport()
	case ReportFormatJSON:
		return r.generateJSONReport()
	default:
		return "", fmt.Errorf("unsupported report format: %s", format)
	}
}

func (r *Reporter) generateTextReport() (string, error) {
	var buf bytes.Buffer

	buf.WriteString("DATASET INVENTORY\n")
	buf.WriteString(strings.Repeat("=", 80) + "\n\n")
	buf.WriteString(fmt.Sprintf("Generated: %s\n", r.inv.GeneratedAt.Format(time.RFC3339)))
	buf.WriteString(fmt.Sprintf("Datasets: %d\n\n", len(r.inv.Datasets)))

	for _, ds := range r.inv.Datasets {
		buf.WriteString(fmt.Sprintf("SURVEY %d\n", ds.Year))
		buf.WriteString(strings.Repeat("-", 40) + "\n")
		buf.WriteString(fmt.Sprintf("Path: %s\n", ds.Path))
		buf.WriteString(fmt.Sprintf("Rows: %d\n", ds.Rows))
		buf.WriteString(fmt.Sprintf("Columns: %d\n", ds.ColumnCount))
		buf.WriteString(fmt.Sprintf("Encoding: %s\n", ds.Encoding))
		if ds.RaggedRows > 0 {
			buf.WriteString(fmt.Sprintf("Ragged rows dropped: %d\n", ds.RaggedRows))
		}
		buf.WriteString("\n")
	}

	buf.WriteString("FIELD AVAILABILITY\n")
	buf.WriteString(strings.Repeat("-", 40) + "\n")
	for _, field := range r.inv.Matrix.Fields {
		buf.WriteString(fmt.Sprintf("%s:\n", field))
		for _, year := range r.inv.Matrix.Years {
			col, ok := r.inv.Matrix.Resolved(field, year)
			if ok {
				buf.WriteString(fmt.Sprintf("  %d: %s\n", year, col))
			} else {
				buf.WriteString(fmt.Sprintf("  %d: (missing)\n", year))
			}
		}
	}

	return buf.String(), nil
}

func (r *Reporter) generateMarkdownReport() (string, error) {
	var buf bytes.Buffer

	buf.WriteString("# Dataset Inventory\n\n")
	buf.WriteString(fmt.Sprintf("Generated: %s\n\n", r.inv.GeneratedAt.Format(time.RFC3339)))

	buf.WriteString("## Datasets\n\n")
	buf.WriteString("| Year | Rows | Columns | Ragged | Encoding |\n")
	buf.WriteString("|------|------|---------|--------|----------|\n")
	for _, ds := range r.inv.Datasets {
		buf.WriteString(fmt.Sprintf("| %d | %d | %d | %d | %s |\n",
			ds.Year, ds.Rows, ds.ColumnCount, ds.RaggedRows, ds.Encoding))
	}
	buf.WriteString("\n")

	buf.WriteString("## Field Availability\n\n")
	buf.WriteString("| Field |")
	for _, year := range r.inv.Matrix.Years {
		buf.WriteString(fmt.Sprintf(" %d |", year))
	}
	buf.WriteString("\n|-------|")
	for range r.inv.Matrix.Years {
		buf.WriteString("------|")
	}
	buf.WriteString("\n")
	for _, field := range r.inv.Matrix.Fields {
		buf.WriteString(fmt.Sprintf("| %s |", field))
		for _, year := range r.inv.Matrix.Years {
			col, ok := r.inv.Matrix.Resolved(field, year)
			if ok {
				buf.WriteString(fmt.Sprintf(" `%s` |", col))
			} else {
				buf.WriteString(" - |")
			}
		}
		buf.WriteString("\n")
	}
	buf.WriteString("\n")

	buf.WriteString("## Column Profiles\n\n")
	for _, ds := range r.inv.Datasets {
		buf.WriteString(fmt.Sprintf("### Survey %d\n\n", ds.Year))
		buf.WriteString("| Column | Kind | Null % | Unique | Examples |\n")
		buf.WriteString("|--------|------|--------|--------|----------|\n")
		for _, col := range ds.Columns {
			buf.WriteString(fmt.Sprintf("| %s | %s | %.1f | %d | %s |\n",
				col.Name, col.Kind, col.NullPct, col.UniqueCount,
				escapeMarkdown(strings.Join(col.Examples, "; "))))
		}
		buf.WriteString("\n")
	}

	return buf.String(), nil
}

func (r *Reporter) generateJSONReport() (string, error) {
	data, err := json.MarshalIndent(r.inv, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func escapeMarkdown(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
