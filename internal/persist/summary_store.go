package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/huangsam/tzcluster/core/agg"
	"github.com/huangsam/tzcluster/internal/contract"
	"github.com/huangsam/tzcluster/schema"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// Table names for summary storage.
const (
	SummaryTable = "regional_activity_clusters"
	RunsTable    = "regional_activity_runs"
)

// Connection retry settings for servers that are still starting up.
const (
	pingAttempts  = 5
	pingDelay     = 500 * time.Millisecond
	pingMaxDelay  = 10 * time.Second
	sqliteTimeout = 5000 // busy_timeout in milliseconds
)

// SummaryStoreImpl implements the SummaryStore interface.
type SummaryStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
	logger  *slog.Logger
}

var _ contract.SummaryStore = &SummaryStoreImpl{} // Compile-time check

// NewSummaryStore opens the summary store on the given backend and makes sure its tables exist.
func NewSummaryStore(ctx context.Context, backend schema.DatabaseBackend, connStr string, logger *slog.Logger) (*SummaryStoreImpl, error) {
	if logger == nil {
		logger = contract.NewDiscardLogger()
	}
	if backend == schema.NoneBackend {
		// Return a no-op store for disabled persistence
		return &SummaryStoreImpl{backend: backend, logger: logger}, nil
	}

	db, err := openDB(backend, connStr)
	if err != nil {
		return nil, &schema.PersistenceError{Op: "open", Backend: backend, Err: err}
	}

	if err := pingWithRetry(ctx, db, backend, logger); err != nil {
		_ = db.Close()
		var connDetail string
		switch backend {
		case schema.MySQLBackend:
			connDetail = "Check that MySQL is running and the connection string is correct. Ensure user/password are valid."
		case schema.PostgreSQLBackend:
			connDetail = "Check that PostgreSQL is running and the connection string is correct. Ensure user/password are valid."
		default:
			connDetail = "Verify the database file is accessible."
		}
		return nil, &schema.PersistenceError{Op: "connect", Backend: backend, Err: fmt.Errorf("%w. %s", err, connDetail)}
	}

	if err := createTables(ctx, db, backend); err != nil {
		_ = db.Close()
		return nil, &schema.PersistenceError{Op: "create tables", Backend: backend, Err: err}
	}

	logger.Debug("summary store ready", "backend", backend)
	return &SummaryStoreImpl{db: db, backend: backend, logger: logger}, nil
}

// openDB opens a database handle with backend-specific connection settings.
func openDB(backend schema.DatabaseBackend, connStr string) (*sql.DB, error) {
	driver, err := driverName(backend)
	if err != nil {
		return nil, err
	}

	switch backend {
	case schema.SQLiteBackend:
		dbPath := connStr
		if dbPath == "" {
			dbPath = contract.GetSummaryDBFilePath()
		}
		db, err := sql.Open(driver, dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database at %q: %w. Check that the directory is writable", dbPath, err)
		}
		// Limit SQLite to a single open connection to avoid "database is locked" errors
		db.SetMaxOpenConns(1)
		if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", sqliteTimeout)); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set busy timeout: %w", err)
		}
		return db, nil

	case schema.MySQLBackend:
		// connStr should be:
		// user:password@tcp(host:port)/dbname
		cfg, err := mysql.ParseDSN(connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse MySQL connection string: %w. Check format: user:password@tcp(host:port)/dbname", err)
		}
		// DATETIME columns are scanned into time.Time
		cfg.ParseTime = true
		return sql.Open(driver, cfg.FormatDSN())

	default: // PostgreSQL
		db, err := sql.Open(driver, connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL database: %w. Check connection string format: host=... dbname=", err)
		}
		return db, nil
	}
}

// pingWithRetry verifies the connection, backing off while the server comes up.
func pingWithRetry(ctx context.Context, db *sql.DB, backend schema.DatabaseBackend, logger *slog.Logger) error {
	return retry.Do(
		func() error {
			return db.PingContext(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(pingAttempts),
		retry.Delay(pingDelay),
		retry.MaxDelay(pingMaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			logger.Debug("retrying database ping",
				"backend", backend,
				"attempt", n+1,
				"error", err)
		}),
	)
}

// createTables creates the summary and run tables when they are missing.
func createTables(ctx context.Context, db *sql.DB, backend schema.DatabaseBackend) error {
	tables := []struct {
		name  string
		query string
	}{
		{SummaryTable, getCreateSummaryQuery(backend)},
		{RunsTable, getCreateRunsQuery(backend)},
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, table.query); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.name, err)
		}
	}
	return nil
}

// getCreateSummaryQuery returns the CREATE TABLE query for regional_activity_clusters.
func getCreateSummaryQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(SummaryTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				region_name VARCHAR(128) NOT NULL PRIMARY KEY,
				total_posts BIGINT NOT NULL,
				avg_confidence DOUBLE NOT NULL,
				peak_hours_utc TEXT NOT NULL,
				last_updated DATETIME(6) NOT NULL
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				region_name TEXT NOT NULL PRIMARY KEY,
				total_posts BIGINT NOT NULL,
				avg_confidence DOUBLE PRECISION NOT NULL,
				peak_hours_utc TEXT NOT NULL,
				last_updated TIMESTAMPTZ NOT NULL
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				region_name TEXT NOT NULL PRIMARY KEY,
				total_posts INTEGER NOT NULL,
				avg_confidence REAL NOT NULL,
				peak_hours_utc TEXT NOT NULL,
				last_updated TEXT NOT NULL
			);
		`, quotedTableName)
	}
}

// getCreateRunsQuery returns the CREATE TABLE query for regional_activity_runs.
func getCreateRunsQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(RunsTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id VARCHAR(64) NOT NULL PRIMARY KEY,
				started_at DATETIME(6) NOT NULL,
				completed_at DATETIME(6) NOT NULL,
				total_records INT NOT NULL,
				valid_records INT NOT NULL,
				dropped_records INT NOT NULL,
				clusters INT NOT NULL,
				non_empty_clusters INT NOT NULL,
				iterations INT NOT NULL,
				converged BOOLEAN NOT NULL,
				seed VARCHAR(20) NOT NULL,
				config_params TEXT
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id TEXT NOT NULL PRIMARY KEY,
				started_at TIMESTAMPTZ NOT NULL,
				completed_at TIMESTAMPTZ NOT NULL,
				total_records INT NOT NULL,
				valid_records INT NOT NULL,
				dropped_records INT NOT NULL,
				clusters INT NOT NULL,
				non_empty_clusters INT NOT NULL,
				iterations INT NOT NULL,
				converged BOOLEAN NOT NULL,
				seed TEXT NOT NULL,
				config_params TEXT
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id TEXT NOT NULL PRIMARY KEY,
				started_at TEXT NOT NULL,
				completed_at TEXT NOT NULL,
				total_records INTEGER NOT NULL,
				valid_records INTEGER NOT NULL,
				dropped_records INTEGER NOT NULL,
				clusters INTEGER NOT NULL,
				non_empty_clusters INTEGER NOT NULL,
				iterations INTEGER NOT NULL,
				converged INTEGER NOT NULL,
				seed TEXT NOT NULL,
				config_params TEXT
			);
		`, quotedTableName)
	}
}

// getUpsertQuery returns the merge-on-conflict statement for the summary table.
// The arithmetic matches agg.Merge. MySQL evaluates assignments left to right,
// so avg_confidence is computed before total_posts changes.
func getUpsertQuery(backend schema.DatabaseBackend) string {
	t := quoteTableName(SummaryTable, backend)
	cols := "region_name, total_posts, avg_confidence, peak_hours_utc, last_updated"

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?) AS new
			ON DUPLICATE KEY UPDATE
				avg_confidence = (avg_confidence * total_posts + new.avg_confidence * new.total_posts) / (total_posts + new.total_posts),
				total_posts = total_posts + new.total_posts,
				peak_hours_utc = new.peak_hours_utc,
				last_updated = new.last_updated`, t, cols)

	default: // SQLite and PostgreSQL
		return fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)
			ON CONFLICT (region_name) DO UPDATE SET
				avg_confidence = (%s.avg_confidence * %s.total_posts + EXCLUDED.avg_confidence * EXCLUDED.total_posts) / (%s.total_posts + EXCLUDED.total_posts),
				total_posts = %s.total_posts + EXCLUDED.total_posts,
				peak_hours_utc = EXCLUDED.peak_hours_utc,
				last_updated = EXCLUDED.last_updated`,
			t, cols, placeholders(backend, 1, 5), t, t, t, t)
	}
}

// CommitRun merges the run's summaries and records the run in one transaction.
// Either every row lands or none do.
func (s *SummaryStoreImpl) CommitRun(ctx context.Context, run schema.RunRecord, summaries []schema.RegionalSummary) ([]schema.RegionalSummary, error) {
	// Skip for NoneBackend
	if s.backend == schema.NoneBackend || s.db == nil {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, s.wrap("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	upsert := getUpsertQuery(s.backend)
	names := make([]string, 0, len(summaries))
	for _, summary := range summaries {
		if summary.TotalPosts <= 0 {
			continue
		}
		peaks, err := encodePeaks(summary.PeakHoursUTC)
		if err != nil {
			return nil, s.wrap("encode peak hours", err)
		}
		if _, err := tx.ExecContext(ctx, upsert,
			summary.Region, summary.TotalPosts, summary.AvgConfidence, peaks, formatTime(summary.LastUpdated, s.backend),
		); err != nil {
			return nil, s.wrap("upsert "+summary.Region, err)
		}
		names = append(names, summary.Region)
	}

	if err := s.insertRun(ctx, tx, run); err != nil {
		return nil, s.wrap("record run", err)
	}

	stored, err := s.querySummaries(ctx, tx, names)
	if err != nil {
		return nil, s.wrap("read merged rows", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, s.wrap("commit", err)
	}

	s.logger.Debug("run committed", "run_id", run.RunID, "regions", len(stored))
	return stored, nil
}

// insertRun writes the run metadata row.
func (s *SummaryStoreImpl) insertRun(ctx context.Context, tx *sql.Tx, run schema.RunRecord) error {
	configJSON, err := json.Marshal(run.ConfigParams)
	if err != nil {
		return fmt.Errorf("failed to marshal config params: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (run_id, started_at, completed_at, total_records, valid_records,
		dropped_records, clusters, non_empty_clusters, iterations, converged, seed, config_params)
		VALUES (%s)`, quoteTableName(RunsTable, s.backend), placeholders(s.backend, 1, 12))

	_, err = tx.ExecContext(ctx, query,
		run.RunID, formatTime(run.StartedAt, s.backend), formatTime(run.CompletedAt, s.backend),
		run.TotalRecords, run.ValidRecords, run.DroppedRecords, run.Clusters, run.NonEmptyClusters,
		run.Iterations, run.Converged, strconv.FormatUint(run.Seed, 10), string(configJSON),
	)
	return err
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// querySummaries reads summary rows, restricted to names when given.
func (s *SummaryStoreImpl) querySummaries(ctx context.Context, q queryer, names []string) ([]schema.RegionalSummary, error) {
	query := fmt.Sprintf("SELECT region_name, total_posts, avg_confidence, peak_hours_utc, last_updated FROM %s",
		quoteTableName(SummaryTable, s.backend))
	args := make([]any, 0, len(names))
	if names != nil {
		if len(names) == 0 {
			return []schema.RegionalSummary{}, nil
		}
		query += fmt.Sprintf(" WHERE region_name IN (%s)", placeholders(s.backend, 1, len(names)))
		for _, name := range names {
			args = append(args, name)
		}
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := []schema.RegionalSummary{}
	for rows.Next() {
		var record schema.RegionalSummary
		var peaks string

		switch s.backend {
		case schema.SQLiteBackend:
			var updated string
			if err := rows.Scan(&record.Region, &record.TotalPosts, &record.AvgConfidence, &peaks, &updated); err != nil {
				return nil, fmt.Errorf("failed to scan summary: %w", err)
			}
			if record.LastUpdated, err = parseTime(updated); err != nil {
				return nil, fmt.Errorf("failed to parse last_updated: %w", err)
			}
		default: // MySQL and PostgreSQL store as native datetime
			if err := rows.Scan(&record.Region, &record.TotalPosts, &record.AvgConfidence, &peaks, &record.LastUpdated); err != nil {
				return nil, fmt.Errorf("failed to scan summary: %w", err)
			}
		}
		record.LastUpdated = record.LastUpdated.UTC()
		if record.PeakHoursUTC, err = decodePeaks(peaks); err != nil {
			return nil, fmt.Errorf("failed to decode peak hours for %s: %w", record.Region, err)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summaries: %w", err)
	}

	agg.Sort(results)
	return results, nil
}

// GetSummaries returns every stored regional summary.
func (s *SummaryStoreImpl) GetSummaries(ctx context.Context) ([]schema.RegionalSummary, error) {
	// Skip for NoneBackend
	if s.backend == schema.NoneBackend || s.db == nil {
		return nil, nil
	}
	out, err := s.querySummaries(ctx, s.db, nil)
	if err != nil {
		return nil, s.wrap("get summaries", err)
	}
	return out, nil
}

// GetRuns returns the recorded run history, oldest first.
func (s *SummaryStoreImpl) GetRuns(ctx context.Context) ([]schema.RunRecord, error) {
	// Skip for NoneBackend
	if s.backend == schema.NoneBackend || s.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, started_at, completed_at, total_records, valid_records, dropped_records,
		clusters, non_empty_clusters, iterations, converged, seed, config_params
		FROM %s ORDER BY started_at, run_id`, quoteTableName(RunsTable, s.backend))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, s.wrap("get runs", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.RunRecord
	for rows.Next() {
		var record schema.RunRecord
		var seed string
		var configParams sql.NullString

		switch s.backend {
		case schema.SQLiteBackend:
			var started, completed string
			if err := rows.Scan(&record.RunID, &started, &completed, &record.TotalRecords, &record.ValidRecords,
				&record.DroppedRecords, &record.Clusters, &record.NonEmptyClusters, &record.Iterations,
				&record.Converged, &seed, &configParams); err != nil {
				return nil, s.wrap("scan run", err)
			}
			if record.StartedAt, err = parseTime(started); err != nil {
				return nil, s.wrap("parse started_at", err)
			}
			if record.CompletedAt, err = parseTime(completed); err != nil {
				return nil, s.wrap("parse completed_at", err)
			}
		default: // MySQL and PostgreSQL
			if err := rows.Scan(&record.RunID, &record.StartedAt, &record.CompletedAt, &record.TotalRecords, &record.ValidRecords,
				&record.DroppedRecords, &record.Clusters, &record.NonEmptyClusters, &record.Iterations,
				&record.Converged, &seed, &configParams); err != nil {
				return nil, s.wrap("scan run", err)
			}
		}
		record.StartedAt = record.StartedAt.UTC()
		record.CompletedAt = record.CompletedAt.UTC()

		if record.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
			return nil, s.wrap("parse seed", err)
		}
		if configParams.Valid && configParams.String != "" && configParams.String != "null" {
			if err := json.Unmarshal([]byte(configParams.String), &record.ConfigParams); err != nil {
				return nil, s.wrap("decode config params", err)
			}
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("iterate runs", err)
	}
	return results, nil
}

// GetStatus returns status information about the summary store.
func (s *SummaryStoreImpl) GetStatus(ctx context.Context) (schema.StoreStatus, error) {
	status := schema.StoreStatus{
		Backend:    string(s.backend),
		Connected:  s.db != nil,
		TableSizes: make(map[string]int64),
	}

	if s.backend == schema.NoneBackend || s.db == nil {
		return status, nil
	}

	runsTable := quoteTableName(RunsTable, s.backend)
	summaryTable := quoteTableName(SummaryTable, s.backend)

	row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", runsTable))
	if err := row.Scan(&status.TotalRuns); err != nil {
		return status, s.wrap("count runs", err)
	}

	if status.TotalRuns > 0 {
		lastRunQuery := fmt.Sprintf("SELECT run_id, started_at FROM %s ORDER BY started_at DESC, run_id DESC LIMIT 1", runsTable)
		oldestRunQuery := fmt.Sprintf("SELECT run_id, started_at FROM %s ORDER BY started_at ASC, run_id ASC LIMIT 1", runsTable)

		var err error
		if status.LastRunID, status.LastRunTime, err = s.scanRunStart(ctx, lastRunQuery); err != nil {
			return status, s.wrap("get last run", err)
		}
		if _, status.OldestRunTime, err = s.scanRunStart(ctx, oldestRunQuery); err != nil {
			return status, s.wrap("get oldest run", err)
		}
	}

	row = s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*), COALESCE(SUM(total_posts), 0) FROM %s", summaryTable))
	if err := row.Scan(&status.TotalRegions, &status.TotalPosts); err != nil {
		return status, s.wrap("count regions", err)
	}

	for _, table := range []string{SummaryTable, RunsTable} {
		row = s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(table, s.backend)))
		var count int64
		if err := row.Scan(&count); err != nil {
			return status, s.wrap("count "+table, err)
		}
		status.TableSizes[table] = count
	}

	return status, nil
}

// scanRunStart reads a (run_id, started_at) pair with backend-specific time handling.
func (s *SummaryStoreImpl) scanRunStart(ctx context.Context, query string) (string, time.Time, error) {
	row := s.db.QueryRowContext(ctx, query)
	var id string
	switch s.backend {
	case schema.SQLiteBackend:
		var started string
		if err := row.Scan(&id, &started); err != nil {
			return "", time.Time{}, err
		}
		t, err := parseTime(started)
		return id, t, err
	default: // MySQL and PostgreSQL store as native datetime
		var t time.Time
		if err := row.Scan(&id, &t); err != nil {
			return "", time.Time{}, err
		}
		return id, t.UTC(), nil
	}
}

// Backend reports which database backend serves the store.
func (s *SummaryStoreImpl) Backend() schema.DatabaseBackend {
	return s.backend
}

// Close closes the underlying DB connection.
func (s *SummaryStoreImpl) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SummaryStoreImpl) wrap(op string, err error) error {
	return &schema.PersistenceError{Op: op, Backend: s.backend, Err: err}
}

func encodePeaks(peaks []float64) (string, error) {
	if peaks == nil {
		peaks = []float64{}
	}
	data, err := json.Marshal(peaks)
	return string(data), err
}

func decodePeaks(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return []float64{}, nil
	}
	var peaks []float64
	err := json.Unmarshal([]byte(s), &peaks)
	return peaks, err
}
