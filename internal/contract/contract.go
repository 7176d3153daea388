// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"

	"github.com/huangsam/tzcluster/schema"
)

// PostSource yields the raw post records for one analysis run.
// This allows the pipeline to be tested without reading real datasets.
type PostSource interface {
	// Load returns every record of the dataset, or the first limit records when limit > 0.
	// Rows that cannot be read as a post are counted in the batch and skipped;
	// only a source that cannot be read at all is an error.
	Load(ctx context.Context, limit int) (*schema.PostBatch, error)

	// Name identifies the source in logs and run metadata.
	Name() string
}

// SummaryStore defines the durable storage of regional summaries and run history.
// This allows mocking the store for testing.
type SummaryStore interface {
	// CommitRun merges the run's summaries into the stored rows and records the run,
	// all in one transaction. It returns the rows as stored after the merge.
	CommitRun(ctx context.Context, run schema.RunRecord, summaries []schema.RegionalSummary) ([]schema.RegionalSummary, error)

	// GetSummaries returns every stored regional summary.
	GetSummaries(ctx context.Context) ([]schema.RegionalSummary, error)

	// GetRuns returns the recorded run history, oldest first.
	GetRuns(ctx context.Context) ([]schema.RunRecord, error)

	// GetStatus returns status information about the store
	GetStatus(ctx context.Context) (schema.StoreStatus, error)

	// Backend reports which database backend serves the store.
	Backend() schema.DatabaseBackend

	// Close closes the underlying connection
	Close() error
}

// RunLock serializes analysis runs that share one summary store.
type RunLock interface {
	// Acquire blocks until the lock is held or ctx is done.
	Acquire(ctx context.Context) error

	// Release gives up the lock if this holder still owns it.
	Release(ctx context.Context) error

	// Close releases any client resources.
	Close() error
}

// StoreManager hands out the process-wide summary store.
// This allows injecting a mock store into commands and the MCP server.
type StoreManager interface {
	GetSummaryStore() SummaryStore
}
