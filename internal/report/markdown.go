package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"surveyforge/internal/harmonize"
	"surveyforge/internal/kpi"
	"surveyforge/pkg/models"
)

// InsightsReport renders the KPI results as a readable markdown
// document with a headline section up top.
type InsightsReport struct {
	results *kpi.Results
}

// NewInsightsReport creates an insights report over aggregated results
func NewInsightsReport(results *kpi.Results) *InsightsReport {
	return &InsightsReport{results: results}
}

// Generate renders the full document
func (r *InsightsReport) Generate() string {
	var buf bytes.Buffer

	buf.WriteString("# Survey Insights\n\n")
	buf.WriteString(fmt.Sprintf("Generated: %s\n\n", r.results.GeneratedAt.Format(time.RFC3339)))

	r.writeHighlights(&buf)

	sections := []struct {
		title string
		table string
	}{
		{"AI Adoption by Year", kpi.TableAdoptionByYear},
		{"AI Adoption by Region", kpi.TableAdoptionByRegion},
		{"Sentiment Toward AI Tools", kpi.TableSentimentByYear},
		{"Median Compensation by AI Usage", kpi.TableMedianCompByUse},
		{"Professional Experience Distribution", kpi.TableExperienceDist},
		{"Most Selected Options", kpi.TableTopSelections},
	}
	for _, section := range sections {
		table := r.results.ByName(section.table)
		if table == nil || len(table.Rows) == 0 {
			continue
		}
		buf.WriteString(fmt.Sprintf("## %s\n\n", section.title))
		buf.WriteString(tableToMarkdown(table))
		buf.WriteString("\n")
	}

	return buf.String()
}

// writeHighlights prints the headline numbers for the latest year
func (r *InsightsReport) writeHighlights(buf *bytes.Buffer) {
	adoption := r.results.ByName(kpi.TableAdoptionByYear)
	if adoption == nil || len(adoption.Rows) == 0 {
		return
	}

	buf.WriteString("## Highlights\n\n")

	latest := adoption.Rows[len(adoption.Rows)-1]
	year := latest[0].String()
	if rate, ok := latest[3].Float(); ok {
		line := fmt.Sprintf("- **%.1f%%** of classified respondents used AI tools in %s", rate*100, year)
		if len(adoption.Rows) > 1 {
			prev := adoption.Rows[len(adoption.Rows)-2]
			if prevRate, ok := prev[3].Float(); ok {
				line += fmt.Sprintf(" (%+.1f pts vs %s)", (rate-prevRate)*100, prev[0].String())
			}
		}
		buf.WriteString(line + "\n")
	} else {
		buf.WriteString(fmt.Sprintf("- Adoption rate for %s could not be computed (no classified respondents)\n", year))
	}

	if top := r.topTokenLine(year); top != "" {
		buf.WriteString(top + "\n")
	}
	buf.WriteString("\n")
}

// topTokenLine reports the most selected language in the given year
func (r *InsightsReport) topTokenLine(year string) string {
	top := r.results.ByName(kpi.TableTopSelections)
	if top == nil {
		return ""
	}
	for _, row := range top.Rows {
		if row[0].String() == year &&
			row[1].String() == models.FieldLanguages &&
			row[4].String() == "1" {
			return fmt.Sprintf("- **%s** was the most used language (%s respondents)",
				row[2].String(), row[3].String())
		}
	}
	return ""
}

// tableToMarkdown renders a result table. Null cells print as "n/a".
func tableToMarkdown(table *kpi.ResultTable) string {
	var buf bytes.Buffer

	buf.WriteString("| " + strings.Join(table.Columns, " | ") + " |\n")
	buf.WriteString("|" + strings.Repeat("---|", len(table.Columns)) + "\n")

	for _, cells := range table.Rows {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = markdownCell(cell)
		}
		buf.WriteString("| " + strings.Join(parts, " | ") + " |\n")
	}
	return buf.String()
}

func markdownCell(v harmonize.Value) string {
	if v.IsNull() {
		return "n/a"
	}
	return strings.ReplaceAll(v.String(), "|", "\\|")
}
