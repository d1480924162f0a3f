package store

import (
	"fmt"
	"strings"

	"surveyforge/internal/harmonize"
	"surveyforge/internal/kpi"
)

// KPI tables are dropped into the store exactly as the aggregator
// shaped them, so their DDL and inserts are generated from the table
// definition instead of living in the static schema.

// quoteIdent double-quotes an identifier, doubling embedded quotes
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// columnType maps a result column onto its DuckDB type. Columns
// without a declared type fall back to VARCHAR.
func columnType(t *kpi.ResultTable, i int) string {
	if i < len(t.Types) && t.Types[i] == kpi.ColumnNumber {
		return "DOUBLE"
	}
	return "VARCHAR"
}

// resultTableDDL builds CREATE TABLE IF NOT EXISTS for one KPI table.
// run_id is prepended so several runs can coexist in the store.
func resultTableDDL(t *kpi.ResultTable) string {
	cols := make([]string, 0, len(t.Columns)+1)
	cols = append(cols, "run_id VARCHAR NOT NULL")
	for i, name := range t.Columns {
		cols = append(cols, fmt.Sprintf("%s %s", quoteIdent(name), columnType(t, i)))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(t.Name), strings.Join(cols, ", "))
}

// resultTableDelete clears one run's rows from a KPI table
func resultTableDelete(name string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE run_id = ?", quoteIdent(name))
}

// resultTableInsert builds the parameterized INSERT for one KPI table
func resultTableInsert(t *kpi.ResultTable) string {
	cols := make([]string, 0, len(t.Columns)+1)
	cols = append(cols, "run_id")
	for _, name := range t.Columns {
		cols = append(cols, quoteIdent(name))
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(t.Name), strings.Join(cols, ", "), marks)
}

// rowArgs converts one result row into driver arguments. Null cells
// stay nil so the store keeps the distinction between zero and absent.
func rowArgs(runID string, cells []harmonize.Value) []interface{} {
	args := make([]interface{}, 0, len(cells)+1)
	args = append(args, runID)
	for _, cell := range cells {
		args = append(args, cellArg(cell))
	}
	return args
}

func cellArg(v harmonize.Value) interface{} {
	switch {
	case v.IsNull():
		return nil
	case v.Kind() == harmonize.KindNumber:
		f, _ := v.Float()
		return f
	default:
		return v.TextValue()
	}
}
