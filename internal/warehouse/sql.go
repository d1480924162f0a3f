package warehouse

import (
	"fmt"
	"regexp"
	"strings"

	"surveyforge/internal/harmonize"
	"surveyforge/internal/kpi"
	"surveyforge/pkg/errors"
)

// Identifiers are interpolated into DDL, so only names we generate
// ourselves are allowed through.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ident validates an identifier and folds it to the warehouse's
// uppercase convention.
func ident(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", errors.New(errors.ErrCodeInvalidInput, "Invalid warehouse identifier").
			WithContext("identifier", name)
	}
	return strings.ToUpper(name), nil
}

// createTableSQL builds CREATE OR REPLACE TABLE for one KPI table.
// RUN_ID and LOADED_AT lead so analysts can tell runs apart.
func createTableSQL(t *kpi.ResultTable) (string, error) {
	name, err := ident(t.Name)
	if err != nil {
		return "", err
	}

	cols := []string{
		"RUN_ID VARCHAR NOT NULL",
		"LOADED_AT TIMESTAMP_NTZ DEFAULT CURRENT_TIMESTAMP()",
	}
	for i, col := range t.Columns {
		cn, err := ident(col)
		if err != nil {
			return "", err
		}
		cols = append(cols, fmt.Sprintf("%s %s", cn, warehouseType(t, i)))
	}
	return fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", name, strings.Join(cols, ", ")), nil
}

func warehouseType(t *kpi.ResultTable, i int) string {
	if i < len(t.Types) && t.Types[i] == kpi.ColumnNumber {
		return "DOUBLE"
	}
	return "VARCHAR"
}

// insertSQL builds one multi-row INSERT for a batch of result rows.
// LOADED_AT is left to its column default.
func insertSQL(t *kpi.ResultTable, runID string, rows [][]harmonize.Value) (string, []interface{}, error) {
	name, err := ident(t.Name)
	if err != nil {
		return "", nil, err
	}

	cols := make([]string, 0, len(t.Columns)+1)
	cols = append(cols, "RUN_ID")
	for _, col := range t.Columns {
		cn, err := ident(col)
		if err != nil {
			return "", nil, err
		}
		cols = append(cols, cn)
	}

	rowMark := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	marks := make([]string, len(rows))
	args := make([]interface{}, 0, len(rows)*len(cols))
	for i, row := range rows {
		marks[i] = rowMark
		args = append(args, runID)
		for _, cell := range row {
			args = append(args, cellValue(cell))
		}
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", name, strings.Join(cols, ", "), strings.Join(marks, ", "))
	return stmt, args, nil
}

func cellValue(v harmonize.Value) interface{} {
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

// rowBatches splits rows into insert-sized chunks. An empty table
// yields no batches; the replaced table simply stays empty.
func rowBatches(rows [][]harmonize.Value, size int) [][][]harmonize.Value {
	var batches [][][]harmonize.Value
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		batches = append(batches, rows[start:end])
	}
	return batches
}
