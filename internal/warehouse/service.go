package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/snowflakedb/gosnowflake"

	"surveyforge/internal/kpi"
	"surveyforge/internal/observability"
	"surveyforge/pkg/errors"
	"surveyforge/pkg/models"
)

// defaultTimeout bounds individual warehouse calls
const defaultTimeout = 30 * time.Second

// publishBatchSize caps rows per INSERT statement
const publishBatchSize = 500

// Service publishes KPI result tables to a Snowflake warehouse
type Service struct {
	db             *sql.DB
	config         models.Snowflake
	connected      bool
	creds          credentialSource
	logger         *observability.Logger
	errorHandler   *errors.ErrorHandler
	circuitBreaker *errors.CircuitBreaker
}

// NewService creates a warehouse publisher. Connect must be called
// before Publish.
func NewService(config models.Snowflake, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.GetDefaultLogger()
	}
	return &Service{
		config:         config,
		logger:         logger,
		errorHandler:   errors.GetGlobalErrorHandler(),
		circuitBreaker: errors.NewCircuitBreaker("warehouse", 5, 30*time.Second),
	}
}

// Connect establishes a connection to the warehouse
func (s *Service) Connect() error {
	if s.connected {
		return nil
	}

	// Resolve once; the reference does not change between attempts
	password, err := s.resolvePassword()
	if err != nil {
		return err
	}

	return s.circuitBreaker.Execute(context.Background(), func() error {
		return errors.RetryWithBackoff(context.Background(), func(ctx context.Context) error {
			dsn := fmt.Sprintf("%s:%s@%s/%s/%s?warehouse=%s&role=%s",
				s.config.Username,
				password,
				s.config.Account,
				s.config.Database,
				s.config.Schema,
				s.config.Warehouse,
				s.config.Role,
			)

			db, err := sql.Open("snowflake", dsn)
			if err != nil {
				return errors.ConnectionError("Failed to open warehouse connection", err).
					WithContext("account", s.config.Account).
					WithContext("warehouse", s.config.Warehouse)
			}

			db.SetMaxOpenConns(10)
			db.SetMaxIdleConns(5)
			db.SetConnMaxLifetime(10 * time.Minute)

			connCtx, cancel := s.getContext()
			defer cancel()

			if err := db.PingContext(connCtx); err != nil {
				db.Close()

				if strings.Contains(err.Error(), "authentication") {
					return errors.New(errors.ErrCodeAuthenticationFailed, "Warehouse authentication failed").
						WithContext("user", s.config.Username).
						WithSuggestions(
							"Verify your username and password",
							"Check if your account is locked",
							"Ensure MFA is properly configured if required",
						)
				}

				return errors.ConnectionError("Failed to connect to warehouse", err).
					WithContext("account", s.config.Account).
					AsRecoverable()
			}

			s.db = db
			s.connected = true
			return nil
		})
	})
}

// Close closes the warehouse connection
func (s *Service) Close() error {
	if !s.connected {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}

	s.connected = false
	return nil
}

// Publish replaces the KPI tables in the configured schema with the
// given run's results. All statements run in one transaction; on any
// failure the transaction rolls back and the previously published
// tables stay in place.
func (s *Service) Publish(ctx context.Context, runID string, results *kpi.Results) error {
	if !s.connected {
		return errors.New(errors.ErrCodeConnectionFailed, "Not connected to warehouse").
			WithSuggestions("Call Connect() before publishing")
	}

	schema, err := ident(s.config.Schema)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to begin publish transaction")
	}

	txHandler := s.errorHandler.NewTransactionHandler(tx.Rollback)

	start := time.Now()
	err = txHandler.Execute(func() error {
		ensure := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)
		if _, err := tx.ExecContext(ctx, ensure); err != nil {
			return errors.SQLError("Failed to ensure target schema", ensure, err).
				WithContext("schema", s.config.Schema)
		}

		use := fmt.Sprintf("USE SCHEMA %s", schema)
		if _, err := tx.ExecContext(ctx, use); err != nil {
			return errors.SQLError("Failed to use target schema", use, err).
				WithContext("schema", s.config.Schema)
		}

		for _, table := range results.Tables {
			if err := s.publishTable(ctx, tx, runID, table); err != nil {
				return err
			}
		}

		return tx.Commit()
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodePublishFailed, "Warehouse publish failed").
			WithContext("run_id", runID)
	}

	s.logger.InfoWithFields("Published results to warehouse", map[string]interface{}{
		"run_id":   runID,
		"schema":   s.config.Schema,
		"tables":   len(results.Tables),
		"duration": time.Since(start).String(),
	})
	return nil
}

func (s *Service) publishTable(ctx context.Context, tx *sql.Tx, runID string, table *kpi.ResultTable) error {
	ddl, err := createTableSQL(table)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return errors.SQLError(fmt.Sprintf("Failed to replace table %s", table.Name), ddl, err).
			WithContext("table", table.Name)
	}

	for _, batch := range rowBatches(table.Rows, publishBatchSize) {
		stmt, args, err := insertSQL(table, runID, batch)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return errors.SQLError(fmt.Sprintf("Failed to load table %s", table.Name), stmt, err).
				WithContext("table", table.Name).
				WithContext("rows", len(batch))
		}
	}
	return nil
}

func (s *Service) getContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), defaultTimeout)
}

// ValidateConfig validates the warehouse configuration
func ValidateConfig(config models.Snowflake) error {
	if config.Account == "" {
		return fmt.Errorf("account is required")
	}
	if config.Username == "" {
		return fmt.Errorf("username is required")
	}
	if config.Password == "" {
		return fmt.Errorf("password is required")
	}
	if config.Database == "" {
		return fmt.Errorf("database is required")
	}
	if config.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if config.Warehouse == "" {
		return fmt.Errorf("warehouse is required")
	}
	if config.Role == "" {
		return fmt.Errorf("role is required")
	}
	return nil
}
