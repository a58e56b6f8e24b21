package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteBackend is the relational backend from spec.md §4.6, using the exact
// column set required by §6.2. Grounded on the teacher's pkg/store/sqlite.go
// NewStore: WAL mode, a migrate step, database/sql over
// github.com/mattn/go-sqlite3.
type SQLiteBackend struct {
	db *sql.DB
}

func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite history db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	b := &SQLiteBackend{db: db}
	if err := b.migrate(); err != nil {
		return nil, fmt.Errorf("history schema migration: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS history (
		Id TEXT PRIMARY KEY,
		TestName TEXT NOT NULL,
		ExecutionDate DATETIME NOT NULL,
		DurationSeconds REAL NOT NULL,
		TotalRequests INTEGER NOT NULL,
		SuccessfulRequests INTEGER NOT NULL,
		FailedRequests INTEGER NOT NULL,
		ErrorRatePercent REAL NOT NULL,
		AverageResponseTimeMs REAL NOT NULL,
		MinResponseTimeMs REAL NOT NULL,
		MaxResponseTimeMs REAL NOT NULL,
		P95ResponseTimeMs REAL NOT NULL,
		P99ResponseTimeMs REAL NOT NULL,
		RequestsPerSecond REAL NOT NULL,
		CpuUsagePercent REAL NOT NULL,
		MemoryUsagePercent REAL NOT NULL,
		PerformanceImpact INTEGER NOT NULL,
		Status INTEGER NOT NULL,
		TestConfigurationId TEXT,
		TestResultId TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_history_test_date ON history(TestName, ExecutionDate);
	CREATE INDEX IF NOT EXISTS idx_history_test ON history(TestName);
	`
	_, err := b.db.Exec(schema)
	return err
}

func (b *SQLiteBackend) Append(rec HistoryRecord) (HistoryRecord, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.ExecutionDate.IsZero() {
		rec.ExecutionDate = time.Now()
	}

	_, err := b.db.Exec(`
		INSERT INTO history (
			Id, TestName, ExecutionDate, DurationSeconds, TotalRequests, SuccessfulRequests,
			FailedRequests, ErrorRatePercent, AverageResponseTimeMs, MinResponseTimeMs,
			MaxResponseTimeMs, P95ResponseTimeMs, P99ResponseTimeMs, RequestsPerSecond,
			CpuUsagePercent, MemoryUsagePercent, PerformanceImpact, Status,
			TestConfigurationId, TestResultId
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID.String(), rec.TestName, rec.ExecutionDate, rec.DurationSeconds,
		rec.TotalRequests, rec.SuccessfulRequests, rec.FailedRequests, rec.ErrorRatePercent,
		rec.AverageResponseTimeMs, rec.MinResponseTimeMs, rec.MaxResponseTimeMs,
		rec.P95ResponseTimeMs, rec.P99ResponseTimeMs, rec.RequestsPerSecond,
		rec.CPUUsagePercent, rec.MemoryUsagePercent, int(rec.PerformanceImpact), int(rec.Status),
		uuidPtrString(rec.TestConfigurationID), uuidPtrString(rec.TestResultID),
	)
	if err != nil {
		return HistoryRecord{}, fmt.Errorf("insert history record: %w", err)
	}
	return rec, nil
}

const selectColumns = `
	Id, TestName, ExecutionDate, DurationSeconds, TotalRequests, SuccessfulRequests,
	FailedRequests, ErrorRatePercent, AverageResponseTimeMs, MinResponseTimeMs,
	MaxResponseTimeMs, P95ResponseTimeMs, P99ResponseTimeMs, RequestsPerSecond,
	CpuUsagePercent, MemoryUsagePercent, PerformanceImpact, Status,
	TestConfigurationId, TestResultId`

func (b *SQLiteBackend) ListByTest(testName string) ([]HistoryRecord, error) {
	rows, err := b.db.Query(`SELECT `+selectColumns+` FROM history WHERE TestName = ? ORDER BY ExecutionDate DESC`, testName)
	if err != nil {
		return nil, fmt.Errorf("list by test: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (b *SQLiteBackend) Recent(testName string, n int) ([]HistoryRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM history WHERE TestName = ? ORDER BY ExecutionDate DESC`
	var rows *sql.Rows
	var err error
	if n > 0 {
		rows, err = b.db.Query(query+` LIMIT ?`, testName, n)
	} else {
		rows, err = b.db.Query(query, testName)
	}
	if err != nil {
		return nil, fmt.Errorf("recent: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (b *SQLiteBackend) ByRange(testName string, from, to time.Time) ([]HistoryRecord, error) {
	rows, err := b.db.Query(`SELECT `+selectColumns+` FROM history WHERE TestName = ? AND ExecutionDate BETWEEN ? AND ? ORDER BY ExecutionDate DESC`, testName, from, to)
	if err != nil {
		return nil, fmt.Errorf("by range: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Baseline fetches the top-N recent Completed rows ordered by execution date
// descending, per spec.md §4.6's requirement that the relational backend
// compute baseline synthesis in the application tier.
func (b *SQLiteBackend) Baseline(testName string, sampleSize int) (*HistoryRecord, error) {
	limit := sampleSize
	if limit <= 0 {
		limit = 50
	}
	rows, err := b.db.Query(`SELECT `+selectColumns+` FROM history WHERE TestName = ? AND Status = ? ORDER BY ExecutionDate DESC LIMIT ?`,
		testName, int(StatusCompleted), limit)
	if err != nil {
		return nil, fmt.Errorf("baseline query: %w", err)
	}
	defer rows.Close()
	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	return Baseline(records, sampleSize), nil
}

func (b *SQLiteBackend) Cleanup(retentionDays int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	res, err := b.db.Exec(`DELETE FROM history WHERE ExecutionDate < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func scanRecords(rows *sql.Rows) ([]HistoryRecord, error) {
	out := make([]HistoryRecord, 0)
	for rows.Next() {
		var r HistoryRecord
		var id string
		var testConfigID, testResultID sql.NullString
		var impact, status int

		if err := rows.Scan(
			&id, &r.TestName, &r.ExecutionDate, &r.DurationSeconds, &r.TotalRequests,
			&r.SuccessfulRequests, &r.FailedRequests, &r.ErrorRatePercent,
			&r.AverageResponseTimeMs, &r.MinResponseTimeMs, &r.MaxResponseTimeMs,
			&r.P95ResponseTimeMs, &r.P99ResponseTimeMs, &r.RequestsPerSecond,
			&r.CPUUsagePercent, &r.MemoryUsagePercent, &impact, &status,
			&testConfigID, &testResultID,
		); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		r.ID = uuid.MustParse(id)
		r.PerformanceImpact = Impact(impact)
		r.Status = Status(status)
		if testConfigID.Valid {
			v := uuid.MustParse(testConfigID.String)
			r.TestConfigurationID = &v
		}
		if testResultID.Valid {
			v := uuid.MustParse(testResultID.String)
			r.TestResultID = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func uuidPtrString(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}
