// Package persist stores regional summaries and run history in SQL databases.
package persist

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/huangsam/tzcluster/internal/contract"
	"github.com/huangsam/tzcluster/schema"
)

// StoreManager owns the process-wide summary store.
type StoreManager struct {
	sync.RWMutex // Protects the store pointer during initialization
	store        contract.SummaryStore
}

var _ contract.StoreManager = &StoreManager{} // Compile-time check

// GetSummaryStore returns the active summary store, or nil before InitStore.
func (mgr *StoreManager) GetSummaryStore() contract.SummaryStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.store
}

// SetSummaryStore swaps the active store. Tests use it to inject mocks.
func (mgr *StoreManager) SetSummaryStore(store contract.SummaryStore) {
	mgr.Lock()
	defer mgr.Unlock()
	mgr.store = store
}

// Global Manager instance for main logic.
var (
	Manager   = &StoreManager{}
	initOnce  sync.Once
	closeOnce sync.Once
)

// InitStore initializes the global summary store exactly once.
func InitStore(ctx context.Context, backend schema.DatabaseBackend, connStr string, logger *slog.Logger) error {
	var initErr error

	initOnce.Do(func() {
		store, err := NewSummaryStore(ctx, backend, connStr, logger)
		if err != nil {
			initErr = fmt.Errorf("failed to initialize summary store: %w", err)
			return
		}
		Manager.SetSummaryStore(store)
	})

	return initErr
}

// CloseStore should be called on application shutdown.
func CloseStore() { // called in main defer
	closeOnce.Do(func() {
		Manager.Lock()
		defer Manager.Unlock()
		if Manager.store != nil {
			_ = Manager.store.Close()
		}
	})
}

// ClearStore removes all summary data for the specified backend.
// For SQLite, it deletes the database file.
// For SQL backends (MySQL/PostgreSQL), it drops the tables.
// For NoneBackend, it does nothing.
func ClearStore(ctx context.Context, backend schema.DatabaseBackend, dbFilePath, connStr string) error {
	switch backend {
	case schema.SQLiteBackend:
		if dbFilePath == "" {
			return fmt.Errorf("dbFilePath cannot be empty for SQLite backend")
		}
		// Remove the file; ignore if it doesn't exist
		if err := os.Remove(dbFilePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove SQLite database file %s: %w", dbFilePath, err)
		}
		return nil

	case schema.MySQLBackend, schema.PostgreSQLBackend:
		for _, table := range []string{SummaryTable, RunsTable} {
			if err := clearSQLTable(ctx, backend, connStr, table); err != nil {
				return err
			}
		}
		return nil

	case schema.NoneBackend:
		return nil

	default:
		return fmt.Errorf("unsupported backend for clearing: %s", backend)
	}
}

// clearSQLTable connects to the SQL database and drops the table if it exists.
func clearSQLTable(ctx context.Context, backend schema.DatabaseBackend, connStr, tableName string) error {
	if err := validateTableName(tableName); err != nil {
		return err
	}

	driver, err := driverName(backend)
	if err != nil {
		return err
	}
	db, err := sql.Open(driver, connStr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping %s database: %w", driver, err)
	}

	query := fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteTableName(tableName, backend))
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", tableName, err)
	}

	return nil
}
