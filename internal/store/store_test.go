package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveyforge/internal/explode"
	"surveyforge/internal/harmonize"
	"surveyforge/internal/kpi"
	"surveyforge/pkg/errors"
	"surveyforge/pkg/models"
)

func sampleTime(t *testing.T) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, "2025-06-01T12:00:00Z")
	require.NoError(t, err)
	return ts
}

func quietHandler(t *testing.T) *errors.ErrorHandler {
	t.Helper()
	handler, err := errors.NewErrorHandler(errors.ErrorHandlerConfig{
		LogToFile:     false,
		MaxLogEntries: 10,
		Quiet:         true,
	})
	require.NoError(t, err)
	return handler
}

func testTable() *harmonize.Table {
	return &harmonize.Table{
		Fields: []models.FieldSpec{
			{Name: models.FieldResponseID, Type: models.FieldTypeText},
			{Name: models.FieldCountry, Type: models.FieldTypeText},
			{Name: models.FieldCompTotal, Type: models.FieldTypeNumber},
		},
		Records: []harmonize.Record{
			{
				Year:       2024,
				ResponseID: "r1",
				Values: map[string]harmonize.Value{
					models.FieldResponseID: harmonize.Text("r1"),
					models.FieldCountry:    harmonize.Text("Germany"),
					models.FieldCompTotal:  harmonize.Number(85000),
				},
			},
		},
	}
}

func testResults() *kpi.Results {
	return &kpi.Results{
		Tables: []*kpi.ResultTable{
			{
				Name:    kpi.TableAdoptionByYear,
				Columns: []string{"year", "respondents", "adopters", "adoption_rate"},
				Types:   []kpi.ColumnType{kpi.ColumnNumber, kpi.ColumnNumber, kpi.ColumnNumber, kpi.ColumnNumber},
				Rows: [][]harmonize.Value{
					{harmonize.Number(2024), harmonize.Number(2), harmonize.Number(1), harmonize.Number(0.5)},
				},
			},
		},
	}
}

func TestResultTableDDL(t *testing.T) {
	table := testResults().Tables[0]

	ddl := resultTableDDL(table)
	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "adoption_by_year" (run_id VARCHAR NOT NULL, "year" DOUBLE, "respondents" DOUBLE, "adopters" DOUBLE, "adoption_rate" DOUBLE)`,
		ddl)
}

func TestResultTableDDLDefaultsToVarchar(t *testing.T) {
	table := &kpi.ResultTable{
		Name:    "untyped",
		Columns: []string{"label", "count"},
	}

	ddl := resultTableDDL(table)
	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "untyped" (run_id VARCHAR NOT NULL, "label" VARCHAR, "count" VARCHAR)`,
		ddl)
}

func TestResultTableInsert(t *testing.T) {
	table := &kpi.ResultTable{
		Name:    kpi.TableTopSelections,
		Columns: []string{"year", "field", "token", "respondents", "rank"},
	}

	stmt := resultTableInsert(table)
	assert.Equal(t,
		`INSERT INTO "top_selections" (run_id, "year", "field", "token", "respondents", "rank") VALUES (?, ?, ?, ?, ?, ?)`,
		stmt)
}

func TestResultTableDelete(t *testing.T) {
	assert.Equal(t, `DELETE FROM "adoption_by_year" WHERE run_id = ?`, resultTableDelete(kpi.TableAdoptionByYear))
}

func TestQuoteIdentEscapesQuotes(t *testing.T) {
	assert.Equal(t, `"plain"`, quoteIdent("plain"))
	assert.Equal(t, `"odd""name"`, quoteIdent(`odd"name`))
}

func TestRowArgs(t *testing.T) {
	args := rowArgs("run-1", []harmonize.Value{
		harmonize.Number(2024),
		harmonize.Text("Yes"),
		harmonize.Null(),
	})

	assert.Equal(t, []interface{}{"run-1", float64(2024), "Yes", nil}, args)
}

func TestSaveRunCommitsAllSections(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewWithDB(db, nil)
	store.SetErrorHandler(quietHandler(t))

	table := testTable()
	selections := []explode.Selection{
		{Year: 2024, ResponseID: "r1", Field: models.FieldLanguages, Token: "Go"},
	}
	results := testResults()

	mock.ExpectBegin()

	mock.ExpectExec("DELETE FROM runs").WithArgs("run-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO runs").WithArgs("run-1", "2024", 1, 1, 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectExec("DELETE FROM harmonized").WithArgs("run-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	harmonizedInsert := mock.ExpectPrepare("INSERT INTO harmonized")
	harmonizedInsert.ExpectExec().
		WithArgs("run-1", 2024, "r1", models.FieldResponseID, "r1", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	harmonizedInsert.ExpectExec().
		WithArgs("run-1", 2024, "r1", models.FieldCountry, "Germany", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	harmonizedInsert.ExpectExec().
		WithArgs("run-1", 2024, "r1", models.FieldCompTotal, nil, float64(85000)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectExec("DELETE FROM selections").WithArgs("run-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	selectionInsert := mock.ExpectPrepare("INSERT INTO selections")
	selectionInsert.ExpectExec().
		WithArgs("run-1", 2024, "r1", models.FieldLanguages, "Go").
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM "adoption_by_year"`).WithArgs("run-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	resultInsert := mock.ExpectPrepare(`INSERT INTO "adoption_by_year"`)
	resultInsert.ExpectExec().
		WithArgs("run-1", float64(2024), float64(2), float64(1), 0.5).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectCommit()

	err = store.SaveRun(context.Background(), "run-1", table, selections, results)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRunRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewWithDB(db, nil)
	store.SetErrorHandler(quietHandler(t))

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM runs").WithArgs("run-9").
		WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	err = store.SaveRun(context.Background(), "run-9", testTable(), nil, testResults())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunsListsSummaries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewWithDB(db, nil)

	rows := sqlmock.NewRows([]string{"run_id", "loaded_at", "survey_years", "records", "selections", "result_tables"}).
		AddRow("run-2", sampleTime(t), "2023,2024", 120, 340, 6).
		AddRow("run-1", sampleTime(t), "2023", 60, 150, 6)
	mock.ExpectQuery("SELECT run_id, loaded_at").WillReturnRows(rows)

	summaries, err := store.Runs(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "run-2", summaries[0].RunID)
	assert.Equal(t, "2023,2024", summaries[0].Years)
	assert.Equal(t, int64(120), summaries[0].Records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestRunID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewWithDB(db, nil)

	mock.ExpectQuery("SELECT run_id FROM runs ORDER BY loaded_at DESC").
		WillReturnRows(sqlmock.NewRows([]string{"run_id"}).AddRow("run-7"))

	runID, err := store.LatestRunID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-7", runID)
}

func TestLatestRunIDEmptyStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewWithDB(db, nil)

	mock.ExpectQuery("SELECT run_id FROM runs ORDER BY loaded_at DESC").
		WillReturnRows(sqlmock.NewRows([]string{"run_id"}))

	runID, err := store.LatestRunID(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runID)
}

func TestLoadResultsRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewWithDB(db, nil)

	saved := testResults()
	resultsJSON, err := json.Marshal(saved)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT results_json FROM runs").WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"results_json"}).AddRow(string(resultsJSON)))

	loaded, err := store.LoadResults(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, loaded.Tables, 1)

	table := loaded.ByName(kpi.TableAdoptionByYear)
	require.NotNil(t, table)
	assert.Equal(t, saved.Tables[0].Columns, table.Columns)
	assert.Equal(t, saved.Tables[0].Types, table.Types)
	assert.Equal(t, saved.Tables[0].Rows, table.Rows)
}

func TestLoadResultsUnknownRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewWithDB(db, nil)

	mock.ExpectQuery("SELECT results_json FROM runs").WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"results_json"}))

	_, err = store.LoadResults(context.Background(), "missing")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSchemaVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewWithDB(db, nil)

	mock.ExpectQuery("SELECT CAST").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))

	version, err := store.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestSurveyYearsSortedAndDeduplicated(t *testing.T) {
	table := &harmonize.Table{
		Records: []harmonize.Record{
			{Year: 2024}, {Year: 2022}, {Year: 2024}, {Year: 2023},
		},
	}

	assert.Equal(t, []string{"2022", "2023", "2024"}, surveyYears(table))
}
