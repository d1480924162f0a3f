package kpi

import (
	"time"

	"surveyforge/internal/harmonize"
)

// Result table names as written to the output directory and the store
const (
	TableAdoptionByYear   = "adoption_by_year"
	TableAdoptionByRegion = "adoption_by_region"
	TableSentimentByYear  = "sentiment_by_year"
	TableMedianCompByUse  = "median_comp_by_ai_use"
	TableExperienceDist   = "experience_distribution"
	TableTopSelections    = "top_selections"
)

// ColumnType declares what a result column holds. Downstream sinks use
// it for DDL, so a column that happens to be all-null in a small run
// still gets a stable type.
type ColumnType string

const (
	ColumnText   ColumnType = "text"
	ColumnNumber ColumnType = "number"
)

// ResultTable is one KPI output. Cells reuse the harmonized value
// model so empty aggregates stay explicit nulls all the way to the
// writers instead of collapsing to zero.
type ResultTable struct {
	Name    string              `json:"name"`
	Columns []string            `json:"columns"`
	Types   []ColumnType        `json:"types"`
	Rows    [][]harmonize.Value `json:"rows"`
}

// Results bundles every KPI table produced by one run
type Results struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Tables      []*ResultTable `json:"tables"`
}

// ByName returns the named table, nil when absent
func (r *Results) ByName(name string) *ResultTable {
	for _, t := range r.Tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Display orders for categorical dimensions, so output rows are stable
// across runs.
var (
	aiUseOrder      = []string{"Yes", "Plan to Adopt", "No", "Unknown"}
	sentimentOrder  = []string{"Positive", "Neutral", "Negative", "Unknown"}
	experienceOrder = []string{"0-1", "2-4", "5-9", "10-19", "20+", "Unknown"}
)
