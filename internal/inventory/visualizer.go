package inventory

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// Visualizer renders inventory results for the terminal
type Visualizer struct {
	useColor bool
}

// NewVisualizer creates a new visualizer
func NewVisualizer(useColor bool) *Visualizer {
	return &Visualizer{useColor: useColor}
}

// DisplayMatrix renders the field availability matrix. Rows are
// canonical fields, columns are survey years, cells show the resolved
// source column or a missing marker.
func (v *Visualizer) DisplayMatrix(matrix AvailabilityMatrix) string {
	var buf strings.Builder

	table := tablewriter.NewWriter(&buf)
	header := []string{"Field"}
	for _, year := range matrix.Years {
		header = append(header, fmt.Sprintf("%d", year))
	}
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, field := range matrix.Fields {
		row := []string{field}
		for _, year := range matrix.Years {
			col, ok := matrix.Resolved(field, year)
			cell := "-"
			if ok {
				cell = col
				if v.useColor {
					if strings.HasSuffix(col, emptyCellSuffix) {
						cell = color.YellowString(cell)
					} else {
						cell = color.GreenString(cell)
					}
				}
			} else if v.useColor {
				cell = color.RedString(cell)
			}
			row = append(row, cell)
		}
		table.Append(row)
	}

	table.Render()
	return buf.String()
}

// DisplayDatasetProfile renders one dataset's column statistics
func (v *Visualizer) DisplayDatasetProfile(profile DatasetProfile) string {
	var buf strings.Builder

	header := fmt.Sprintf("=== Survey %d (%s) ===", profile.Year, profile.Path)
	if v.useColor {
		header = color.CyanString(header)
	}
	buf.WriteString(header)
	buf.WriteString("\n")
	buf.WriteString(fmt.Sprintf("Rows: %d  Columns: %d  Encoding: %s",
		profile.Rows, profile.ColumnCount, profile.Encoding))
	if profile.RaggedRows > 0 {
		ragged := fmt.Sprintf("  Ragged rows dropped: %d", profile.RaggedRows)
		if v.useColor {
			ragged = color.YellowString(ragged)
		}
		buf.WriteString(ragged)
	}
	buf.WriteString("\n\n")

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"#", "Column", "Kind", "Null %", "Unique", "Examples"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, col := range profile.Columns {
		kind := string(col.Kind)
		if v.useColor {
			switch col.Kind {
			case ColumnKindNumeric:
				kind = color.GreenString(kind)
			case ColumnKindMultiselect:
				kind = color.MagentaString(kind)
			case ColumnKindEmpty:
				kind = color.RedString(kind)
			}
		}
		table.Append([]string{
			fmt.Sprintf("%d", col.Position+1),
			col.Name,
			kind,
			fmt.Sprintf("%.1f", col.NullPct),
			fmt.Sprintf("%d", col.UniqueCount),
			truncateExamples(col.Examples, 60),
		})
	}

	table.Render()
	return buf.String()
}

// DisplaySummary renders a one-table overview of all datasets
func (v *Visualizer) DisplaySummary(inv *Inventory) string {
	var buf strings.Builder

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Year", "Rows", "Columns", "Ragged", "Encoding"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, ds := range inv.Datasets {
		table.Append([]string{
			fmt.Sprintf("%d", ds.Year),
			fmt.Sprintf("%d", ds.Rows),
			fmt.Sprintf("%d", ds.ColumnCount),
			fmt.Sprintf("%d", ds.RaggedRows),
			ds.Encoding,
		})
	}

	table.Render()

	missing := inv.Matrix.MissingCount()
	if missing > 0 {
		note := fmt.Sprintf("\n%d field/year cells have no source column and will harmonize to null\n", missing)
		if v.useColor {
			note = color.YellowString(note)
		}
		buf.WriteString(note)
	}
	return buf.String()
}

func truncateExamples(examples []string, max int) string {
	joined := strings.Join(examples, " | ")
	if len(joined) <= max {
		return joined
	}
	return joined[:max-3] + "..."
}
