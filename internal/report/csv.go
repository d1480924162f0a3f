package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"surveyforge/internal/explode"
	"surveyforge/internal/harmonize"
	"surveyforge/internal/kpi"
)

// WriteResultCSV writes one KPI table. Null cells become empty cells,
// never zeros or sentinel strings.
func WriteResultCSV(w io.Writer, table *kpi.ResultTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Columns); err != nil {
		return err
	}
	row := make([]string, len(table.Columns))
	for _, cells := range table.Rows {
		for i, cell := range cells {
			row[i] = cell.String()
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteHarmonizedCSV writes the unified respondent table. The year
// column is prepended so a single file covers every survey wave.
func WriteHarmonizedCSV(w io.Writer, table *harmonize.Table) error {
	cw := csv.NewWriter(w)

	columns := append([]string{"survey_year"}, table.ColumnNames()...)
	if err := cw.Write(columns); err != nil {
		return err
	}

	row := make([]string, len(columns))
	for _, record := range table.Records {
		row[0] = strconv.Itoa(record.Year)
		for i, name := range columns[1:] {
			row[i+1] = record.Value(name).String()
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSelectionsCSV writes the exploded multi-select rows
func WriteSelectionsCSV(w io.Writer, selections []explode.Selection) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"survey_year", "response_id", "field", "token"}); err != nil {
		return err
	}
	for _, sel := range selections {
		if err := cw.Write([]string{
			strconv.Itoa(sel.Year), sel.ResponseID, sel.Field, sel.Token,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
