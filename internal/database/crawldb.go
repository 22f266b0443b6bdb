package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/authcrawl/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "authcrawl.db"

// ErrRunNotFound is returned when a run ID is not in the database.
var ErrRunNotFound = errors.New("run not found")

// CrawlDB provides SQLite-based storage for crawl history.
// It is safe for concurrent use; writes are serialized on one connection.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Readers such as the history command may open the file while a crawl
	// is writing to it
	dsn := dbPath + "?_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		host TEXT NOT NULL,
		start_path TEXT NOT NULL,
		target_count INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		status TEXT NOT NULL DEFAULT 'running',
		result_count INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		report_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_host ON runs(host);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS visits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		path TEXT NOT NULL,
		status TEXT NOT NULL,
		outcome TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		location TEXT,
		marker TEXT,
		body_hash TEXT,
		visited_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_visits_run ON visits(run_id);

	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		value TEXT NOT NULL,
		path TEXT NOT NULL,
		found_at TEXT NOT NULL,
		UNIQUE(run_id, value)
	);

	CREATE INDEX IF NOT EXISTS idx_results_value ON results(value);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// StartRun inserts the run row for report. It must be called before any
// visit or result of the run is recorded.
func (cdb *CrawlDB) StartRun(ctx context.Context, report *model.CrawlReport) error {
	query := `
	INSERT INTO runs (id, host, start_path, target_count, started_at)
	VALUES (?, ?, ?, ?, ?)
	`

	_, err := cdb.db.ExecContext(ctx, query,
		report.RunID,
		report.Host,
		report.StartPath,
		report.TargetCount,
		formatTimestamp(report.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// FinishRun stores the final state and the full report of a run.
func (cdb *CrawlDB) FinishRun(ctx context.Context, report *model.CrawlReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	query := `
	UPDATE runs
	SET finished_at = ?, status = ?, result_count = ?, error = ?, report_json = ?
	WHERE id = ?
	`

	res, err := cdb.db.ExecContext(ctx, query,
		formatTimestamp(report.FinishedAt),
		report.Status(),
		len(report.Results),
		report.Error,
		string(reportJSON),
		report.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, report.RunID)
	}
	return nil
}

// RecordVisit stores a terminal visit of a run.
func (cdb *CrawlDB) RecordVisit(ctx context.Context, runID string, visit model.Visit) error {
	query := `
	INSERT INTO visits (run_id, path, status, outcome, attempts, location, marker, body_hash, visited_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := cdb.db.ExecContext(ctx, query,
		runID,
		visit.Path,
		visit.Status,
		visit.Outcome.String(),
		visit.Attempts,
		visit.Location,
		visit.Marker,
		visit.Hash,
		formatTimestamp(visit.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to record visit: %w", err)
	}
	return nil
}

// RecordResult stores a result of a run. Recording the same value twice
// for one run is a no-op.
func (cdb *CrawlDB) RecordResult(ctx context.Context, runID, value, path string) error {
	query := `
	INSERT INTO results (run_id, value, path, found_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(run_id, value) DO NOTHING
	`

	if _, err := cdb.db.ExecContext(ctx, query, runID, value, path, formatTimestamp(time.Now())); err != nil {
		return fmt.Errorf("failed to record result: %w", err)
	}
	return nil
}

// RunSummary contains summary information about a run.
// This is used for displaying history without loading the full report.
type RunSummary struct {
	ID          string
	Host        string
	StartPath   string
	TargetCount int
	StartedAt   time.Time
	FinishedAt  time.Time
	Status      string
	ResultCount int
	Error       string
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (cdb *CrawlDB) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
	SELECT id, host, start_path, target_count, started_at, finished_at, status, result_count, error
	FROM runs
	ORDER BY started_at DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		var startedAt string
		var finishedAt, runErr sql.NullString

		if err := rows.Scan(
			&run.ID,
			&run.Host,
			&run.StartPath,
			&run.TargetCount,
			&startedAt,
			&finishedAt,
			&run.Status,
			&run.ResultCount,
			&runErr,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run.StartedAt = parseTimestamp(startedAt)
		if finishedAt.Valid {
			run.FinishedAt = parseTimestamp(finishedAt.String)
		}
		run.Error = runErr.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRunReport returns the stored report of a finished run.
func (cdb *CrawlDB) GetRunReport(ctx context.Context, runID string) (*model.CrawlReport, error) {
	query := `SELECT report_json FROM runs WHERE id = ?`

	var reportJSON sql.NullString
	err := cdb.db.QueryRowContext(ctx, query, runID).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run report: %w", err)
	}
	if !reportJSON.Valid || reportJSON.String == "" {
		return nil, fmt.Errorf("run %s has not finished", runID)
	}

	var report model.CrawlReport
	if err := json.Unmarshal([]byte(reportJSON.String), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// ResultRecord is a stored result.
type ResultRecord struct {
	RunID   string
	Value   string
	Path    string
	FoundAt time.Time
}

// GetResults returns the results of a run in the order they were found.
func (cdb *CrawlDB) GetResults(ctx context.Context, runID string) ([]ResultRecord, error) {
	query := `
	SELECT run_id, value, path, found_at
	FROM results
	WHERE run_id = ?
	ORDER BY id
	`

	rows, err := cdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}
	defer rows.Close()

	var results []ResultRecord
	for rows.Next() {
		var r ResultRecord
		var foundAt string
		if err := rows.Scan(&r.RunID, &r.Value, &r.Path, &foundAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.FoundAt = parseTimestamp(foundAt)
		results = append(results, r)
	}
	return results, rows.Err()
}

// GetVisits returns the visits of a run in the order they were recorded.
func (cdb *CrawlDB) GetVisits(ctx context.Context, runID string) ([]model.Visit, error) {
	query := `
	SELECT path, status, outcome, attempts, location, marker, body_hash, visited_at
	FROM visits
	WHERE run_id = ?
	ORDER BY id
	`

	rows, err := cdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get visits: %w", err)
	}
	defer rows.Close()

	var visits []model.Visit
	for rows.Next() {
		var v model.Visit
		var outcome, visitedAt string
		var location, marker, hash sql.NullString

		if err := rows.Scan(&v.Path, &v.Status, &outcome, &v.Attempts, &location, &marker, &hash, &visitedAt); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		if v.Outcome, err = model.ParseOutcome(outcome); err != nil {
			return nil, err
		}
		v.Location = location.String
		v.Marker = marker.String
		v.Hash = hash.String
		v.Timestamp = parseTimestamp(visitedAt)
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// KnownResults returns every distinct result ever found on host, oldest first.
func (cdb *CrawlDB) KnownResults(ctx context.Context, host string) ([]string, error) {
	query := `
	SELECT r.value
	FROM results r JOIN runs ON runs.id = r.run_id
	WHERE runs.host = ?
	GROUP BY r.value
	ORDER BY MIN(r.found_at), MIN(r.id)
	`

	rows, err := cdb.db.QueryContext(ctx, query, host)
	if err != nil {
		return nil, fmt.Errorf("failed to get known results: %w", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// timestampLayout keeps a fixed-width fraction so stored values sort
// lexically in time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTimestamp renders t in UTC using timestampLayout.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
