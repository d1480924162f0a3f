package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"surveyforge/internal/common"
	"surveyforge/internal/explode"
	"surveyforge/internal/harmonize"
	"surveyforge/internal/kpi"
	"surveyforge/internal/observability"
	"surveyforge/pkg/errors"
)

const schemaVersion = 1

// Harmonized records land in long form (one row per non-null value)
// because the canonical column set is mapping-driven and cannot be
// fixed in static DDL.
const schema = `
CREATE TABLE IF NOT EXISTS meta (
    key VARCHAR PRIMARY KEY,
    value VARCHAR,
    updated_at TIMESTAMP DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
    run_id VARCHAR PRIMARY KEY,
    loaded_at TIMESTAMP DEFAULT now(),
    survey_years VARCHAR,
    records BIGINT DEFAULT 0,
    selections BIGINT DEFAULT 0,
    result_tables BIGINT DEFAULT 0,
    results_json VARCHAR
);

CREATE TABLE IF NOT EXISTS harmonized (
    run_id VARCHAR NOT NULL,
    survey_year INTEGER NOT NULL,
    response_id VARCHAR NOT NULL,
    field VARCHAR NOT NULL,
    value_text VARCHAR,
    value_num DOUBLE
);

CREATE INDEX IF NOT EXISTS idx_harmonized_run ON harmonized(run_id);
CREATE INDEX IF NOT EXISTS idx_harmonized_field ON harmonized(field);

CREATE TABLE IF NOT EXISTS selections (
    run_id VARCHAR NOT NULL,
    survey_year INTEGER NOT NULL,
    response_id VARCHAR NOT NULL,
    field VARCHAR NOT NULL,
    token VARCHAR NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_selections_run ON selections(run_id);
CREATE INDEX IF NOT EXISTS idx_selections_token ON selections(field, token);
`

// Store persists run outputs into a local DuckDB file so ad hoc SQL
// can query across runs without re-running the pipeline.
type Store struct {
	db      *sql.DB
	path    string
	logger  *observability.Logger
	handler *errors.ErrorHandler
}

// Open opens or creates the store database and applies the schema
func Open(path string, logger *observability.Logger) (*Store, error) {
	if logger == nil {
		logger = observability.GetDefaultLogger()
	}
	if err := common.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreFailed, "Failed to create store directory").
			WithContext("path", path)
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreFailed, "Failed to open analytics store").
			WithContext("path", path)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeStoreFailed, "Failed to connect to analytics store").
			WithContext("path", path).
			WithSuggestions("Check that no other process holds the store file open")
	}

	s := &Store{db: db, path: path, logger: logger}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing connection. Used by tests to inject a
// mock database.
func NewWithDB(db *sql.DB, logger *observability.Logger) *Store {
	if logger == nil {
		logger = observability.GetDefaultLogger()
	}
	return &Store{db: db, logger: logger}
}

// SetErrorHandler routes transaction errors through the given handler
func (s *Store) SetErrorHandler(handler *errors.ErrorHandler) {
	s.handler = handler
}

// Path returns the store file path, empty for injected connections
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init() error {
	if _, err := s.db.Exec(schema); err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreFailed, "Failed to apply store schema")
	}

	_, err := s.db.Exec(`
		INSERT INTO meta (key, value, updated_at)
		VALUES ('schema_version', ?, now())
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = now()
	`, strconv.Itoa(schemaVersion))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreFailed, "Failed to record schema version")
	}
	return nil
}

// SchemaVersion returns the recorded schema version, 0 when the store
// has never been initialized.
func (s *Store) SchemaVersion() (int, error) {
	var version int
	err := s.db.QueryRow(`SELECT CAST(value AS INTEGER) FROM meta WHERE key = 'schema_version'`).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

// SaveRun writes one run's harmonized records, exploded selections and
// KPI tables in a single transaction keyed by run id. Saving the same
// run id again replaces its rows.
func (s *Store) SaveRun(ctx context.Context, runID string, table *harmonize.Table, selections []explode.Selection, results *kpi.Results) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to begin store transaction")
	}

	handler := s.handler
	if handler == nil {
		handler = errors.GetGlobalErrorHandler()
	}
	txHandler := handler.NewTransactionHandler(tx.Rollback)

	start := time.Now()
	err = txHandler.Execute(func() error {
		if err := s.saveRunSummary(ctx, tx, runID, table, selections, results); err != nil {
			return err
		}
		if err := s.saveHarmonized(ctx, tx, runID, table); err != nil {
			return err
		}
		if err := s.saveSelections(ctx, tx, runID, selections); err != nil {
			return err
		}
		if err := s.saveResults(ctx, tx, runID, results); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return err
	}

	s.logger.InfoWithFields("Saved run to analytics store", map[string]interface{}{
		"run_id":     runID,
		"records":    len(table.Records),
		"selections": len(selections),
		"tables":     len(results.Tables),
		"duration":   time.Since(start).String(),
	})
	return nil
}

func (s *Store) saveRunSummary(ctx context.Context, tx *sql.Tx, runID string, table *harmonize.Table, selections []explode.Selection, results *kpi.Results) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID); err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to clear run summary")
	}

	// The full result set rides along as JSON so publish and report can
	// reload a past run without re-running the pipeline.
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreFailed, "Failed to encode run results")
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, survey_years, records, selections, result_tables, results_json) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, strings.Join(surveyYears(table), ","), len(table.Records), len(selections), len(results.Tables), string(resultsJSON))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to insert run summary")
	}
	return nil
}

func (s *Store) saveHarmonized(ctx context.Context, tx *sql.Tx, runID string, table *harmonize.Table) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM harmonized WHERE run_id = ?`, runID); err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to clear harmonized rows")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO harmonized (run_id, survey_year, response_id, field, value_text, value_num) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to prepare harmonized insert")
	}
	defer stmt.Close()

	columns := table.ColumnNames()
	for _, record := range table.Records {
		for _, field := range columns {
			v := record.Value(field)
			if v.IsNull() {
				continue
			}

			var text, num interface{}
			if v.Kind() == harmonize.KindNumber {
				f, _ := v.Float()
				num = f
			} else {
				text = v.TextValue()
			}
			if _, err := stmt.ExecContext(ctx, runID, record.Year, record.ResponseID, field, text, num); err != nil {
				return errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to insert harmonized value").
					WithContext("field", field)
			}
		}
	}
	return nil
}

func (s *Store) saveSelections(ctx context.Context, tx *sql.Tx, runID string, selections []explode.Selection) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM selections WHERE run_id = ?`, runID); err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to clear selections")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO selections (run_id, survey_year, response_id, field, token) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to prepare selections insert")
	}
	defer stmt.Close()

	for _, sel := range selections {
		if _, err := stmt.ExecContext(ctx, runID, sel.Year, sel.ResponseID, sel.Field, sel.Token); err != nil {
			return errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to insert selection").
				WithContext("field", sel.Field)
		}
	}
	return nil
}

func (s *Store) saveResults(ctx context.Context, tx *sql.Tx, runID string, results *kpi.Results) error {
	for _, t := range results.Tables {
		if _, err := tx.ExecContext(ctx, resultTableDDL(t)); err != nil {
			return errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to create result table").
				WithContext("table", t.Name)
		}
		if _, err := tx.ExecContext(ctx, resultTableDelete(t.Name), runID); err != nil {
			return errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to clear result table").
				WithContext("table", t.Name)
		}

		stmt, err := tx.PrepareContext(ctx, resultTableInsert(t))
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to prepare result insert").
				WithContext("table", t.Name)
		}
		for _, row := range t.Rows {
			if _, err := stmt.ExecContext(ctx, rowArgs(runID, row)...); err != nil {
				stmt.Close()
				return errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to insert result row").
					WithContext("table", t.Name)
			}
		}
		stmt.Close()
	}
	return nil
}

// RunSummary is one persisted run's summary row
type RunSummary struct {
	RunID      string
	LoadedAt   time.Time
	Years      string
	Records    int64
	Selections int64
	Tables     int64
}

// Runs lists persisted runs, newest first
func (s *Store) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, loaded_at, survey_years, records, selections, result_tables FROM runs ORDER BY loaded_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to list runs")
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.LoadedAt, &r.Years, &r.Records, &r.Selections, &r.Tables); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to scan run summary")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestRunID returns the most recently saved run id, empty when the
// store holds no runs yet.
func (s *Store) LatestRunID(ctx context.Context) (string, error) {
	var runID string
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id FROM runs ORDER BY loaded_at DESC LIMIT 1`).Scan(&runID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to find latest run")
	}
	return runID, nil
}

// LoadResults reloads the KPI tables saved with a run
func (s *Store) LoadResults(ctx context.Context, runID string) (*kpi.Results, error) {
	var resultsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT results_json FROM runs WHERE run_id = ?`, runID).Scan(&resultsJSON)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeStoreFailed, "Run not found in analytics store").
			WithContext("run_id", runID).
			WithSuggestions("Run 'surveyforge runs' to list stored runs")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to load run results")
	}

	var results kpi.Results
	if err := json.Unmarshal([]byte(resultsJSON), &results); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreFailed, "Failed to decode run results").
			WithContext("run_id", runID)
	}
	return &results, nil
}

func surveyYears(table *harmonize.Table) []string {
	seen := make(map[int]bool)
	for _, r := range table.Records {
		seen[r.Year] = true
	}

	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)

	out := make([]string, len(years))
	for i, y := range years {
		out[i] = strconv.Itoa(y)
	}
	return out
}
