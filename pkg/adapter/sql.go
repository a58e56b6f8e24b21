package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stresslab-project/stresslab/pkg/aggregator"
	"github.com/stresslab-project/stresslab/pkg/scenario"
)

// SQLAdapter dispatches SqlProcedure, SqlQuery and DatabaseConnection steps.
// Grounded on the teacher's pkg/store/sqlite.go: database/sql over
// github.com/mattn/go-sqlite3, one *sql.DB per connection string kept open
// and reused rather than opened per call.
type SQLAdapter interface {
	Execute(ctx context.Context, cfg *scenario.SQLStepConfig) (aggregator.Outcome, error)
	OpenClose(ctx context.Context, cfg *scenario.SQLStepConfig) (aggregator.Outcome, error)
}

// DefaultSQLAdapter pools one *sql.DB per (driver, connection string) pair.
type DefaultSQLAdapter struct {
	backoff *ExponentialBackoff

	mu   sync.Mutex
	pool map[string]*sql.DB
}

func NewSQLAdapter() *DefaultSQLAdapter {
	return &DefaultSQLAdapter{
		backoff: DefaultBackoff(),
		pool:    make(map[string]*sql.DB),
	}
}

func (a *DefaultSQLAdapter) dbFor(driver, dsn string) (*sql.DB, error) {
	key := driver + "|" + dsn
	a.mu.Lock()
	if db, ok := a.pool[key]; ok {
		a.mu.Unlock()
		return db, nil
	}
	a.mu.Unlock()

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	if existing, ok := a.pool[key]; ok {
		a.mu.Unlock()
		db.Close()
		return existing, nil
	}
	a.pool[key] = db
	a.mu.Unlock()
	return db, nil
}

// Execute runs the configured procedure call or query. A connection failure
// (open/ping) is a transport failure; a failure to run the statement once
// connected (bad syntax, missing procedure) is a request failure, mirroring
// the HttpAdapter's status-code split.
func (a *DefaultSQLAdapter) Execute(ctx context.Context, cfg *scenario.SQLStepConfig) (aggregator.Outcome, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite3"
	}

	db, err := a.dbFor(driver, cfg.ConnectionString)
	if err != nil {
		return aggregator.OutcomeFailTransport, fmt.Errorf("open connection: %w", err)
	}

	if err := a.pingWithRetry(ctx, db); err != nil {
		return aggregator.OutcomeFailTransport, err
	}

	if cfg.Procedure != "" {
		if _, err := db.ExecContext(ctx, cfg.Procedure); err != nil {
			return aggregator.OutcomeFailRequest, fmt.Errorf("exec procedure: %w", err)
		}
		return aggregator.OutcomeOK, nil
	}

	rows, err := db.QueryContext(ctx, cfg.Query)
	if err != nil {
		return aggregator.OutcomeFailRequest, fmt.Errorf("exec query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		return aggregator.OutcomeFailRequest, fmt.Errorf("read rows: %w", err)
	}
	return aggregator.OutcomeOK, nil
}

// OpenClose implements the DatabaseConnection step type: open a fresh
// connection, ping it, close it. Unlike Execute it deliberately does not use
// the pooled *sql.DB, since the point of this step is to measure connection
// establishment cost itself.
func (a *DefaultSQLAdapter) OpenClose(ctx context.Context, cfg *scenario.SQLStepConfig) (aggregator.Outcome, error) {
	if cfg == nil {
		return aggregator.OutcomeFailRequest, fmt.Errorf("databaseConnection step missing configuration")
	}
	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite3"
	}

	db, err := sql.Open(driver, cfg.ConnectionString)
	if err != nil {
		return aggregator.OutcomeFailTransport, fmt.Errorf("open connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return aggregator.OutcomeFailTransport, fmt.Errorf("ping connection: %w", err)
	}
	return aggregator.OutcomeOK, nil
}

func (a *DefaultSQLAdapter) pingWithRetry(ctx context.Context, db *sql.DB) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if lastErr = db.PingContext(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.backoff.Next(attempt)):
		}
	}
	return fmt.Errorf("ping connection: %w", lastErr)
}

// Close releases every pooled connection. Intended for orchestrator shutdown.
func (a *DefaultSQLAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var firstErr error
	for key, db := range a.pool {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(a.pool, key)
	}
	return firstErr
}
