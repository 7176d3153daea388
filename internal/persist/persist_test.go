package persist

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/tzcluster/core/agg"
	"github.com/huangsam/tzcluster/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryStore(t *testing.T) *SummaryStoreImpl {
	t.Helper()
	store, err := NewSummaryStore(context.Background(), schema.SQLiteBackend, ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testRun(id string, started time.Time) schema.RunRecord {
	return schema.RunRecord{
		RunID:            id,
		StartedAt:        started,
		CompletedAt:      started.Add(1500 * time.Millisecond),
		TotalRecords:     4,
		ValidRecords:     3,
		DroppedRecords:   1,
		Clusters:         24,
		NonEmptyClusters: 1,
		Iterations:       2,
		Converged:        true,
		Seed:             42,
		ConfigParams:     map[string]any{"decay": "halfday", "clusters": float64(24)},
	}
}

func TestSummaryStore_NoneBackend(t *testing.T) {
	ctx := context.Background()
	store, err := NewSummaryStore(ctx, schema.NoneBackend, "", nil)
	require.NoError(t, err)

	out, err := store.CommitRun(ctx, testRun("r", time.Now()), []schema.RegionalSummary{{Region: "UK", TotalPosts: 1}})
	assert.NoError(t, err)
	assert.Nil(t, out)

	summaries, err := store.GetSummaries(ctx)
	assert.NoError(t, err)
	assert.Empty(t, summaries)

	status, err := store.GetStatus(ctx)
	assert.NoError(t, err)
	assert.False(t, status.Connected)
	assert.Equal(t, schema.NoneBackend, store.Backend())
	assert.NoError(t, store.Close())
}

func TestSummaryStore_UnsupportedBackend(t *testing.T) {
	_, err := NewSummaryStore(context.Background(), "oracle", "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrPersistence)
}

func TestSummaryStore_CommitRunMerges(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	first := time.Date(2024, 11, 26, 14, 0, 0, 0, time.UTC)
	second := first.Add(24 * time.Hour)

	run1 := []schema.RegionalSummary{
		{Region: "US-East", TotalPosts: 3, AvgConfidence: 0.6, PeakHoursUTC: []float64{14}, LastUpdated: first},
		{Region: schema.UnclassifiedRegion, TotalPosts: 1, AvgConfidence: 0, PeakHoursUTC: []float64{3}, LastUpdated: first},
	}
	out, err := store.CommitRun(ctx, testRun("run-1", first), run1)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "US-East", out[0].Region)
	assert.Equal(t, int64(3), out[0].TotalPosts)

	run2 := []schema.RegionalSummary{
		{Region: "US-East", TotalPosts: 1, AvgConfidence: 1, PeakHoursUTC: []float64{18}, LastUpdated: second},
	}
	out, err = store.CommitRun(ctx, testRun("run-2", second), run2)
	require.NoError(t, err)
	require.Len(t, out, 1)

	expected := agg.Merge(run1[0], run2[0])
	assert.Equal(t, expected.TotalPosts, out[0].TotalPosts)
	assert.InDelta(t, expected.AvgConfidence, out[0].AvgConfidence, 1e-12)
	assert.Equal(t, []float64{18}, out[0].PeakHoursUTC)
	assert.True(t, second.Equal(out[0].LastUpdated))

	all, err := store.GetSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(4), all[0].TotalPosts)
	assert.Equal(t, schema.UnclassifiedRegion, all[1].Region)
}

func TestSummaryStore_CommitRunIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	now := time.Date(2024, 11, 26, 14, 0, 0, 0, time.UTC)

	batch := []schema.RegionalSummary{{Region: "UK", TotalPosts: 5, AvgConfidence: 0.5, LastUpdated: now}}
	_, err := store.CommitRun(ctx, testRun("dup", now), batch)
	require.NoError(t, err)

	// Reusing the run id fails the run insert, so the upsert must roll back too
	_, err = store.CommitRun(ctx, testRun("dup", now), batch)
	require.Error(t, err)
	var perr *schema.PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "record run", perr.Op)
	assert.Equal(t, schema.SQLiteBackend, perr.Backend)

	all, err := store.GetSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(5), all[0].TotalPosts)
}

func TestSummaryStore_SkipsEmptySummaries(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)

	out, err := store.CommitRun(ctx, testRun("r", time.Now()), []schema.RegionalSummary{{Region: "Ghost", TotalPosts: 0}})
	require.NoError(t, err)
	assert.Empty(t, out)

	runs, err := store.GetRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSummaryStore_GetRuns(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	started := time.Date(2024, 11, 26, 14, 0, 0, 123456789, time.UTC)

	run := testRun("run-a", started)
	run.Seed = 1<<63 + 5
	_, err := store.CommitRun(ctx, run, nil)
	require.NoError(t, err)
	_, err = store.CommitRun(ctx, testRun("run-b", started.Add(time.Minute)), nil)
	require.NoError(t, err)

	runs, err := store.GetRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	got := runs[0]
	assert.Equal(t, "run-a", got.RunID)
	assert.True(t, started.Equal(got.StartedAt))
	assert.True(t, run.CompletedAt.Equal(got.CompletedAt))
	assert.Equal(t, 3, got.ValidRecords)
	assert.Equal(t, 1, got.DroppedRecords)
	assert.True(t, got.Converged)
	assert.Equal(t, uint64(1<<63+5), got.Seed)
	assert.Equal(t, "halfday", got.ConfigParams["decay"])
	assert.Equal(t, "run-b", runs[1].RunID)
}

func TestSummaryStore_GetStatus(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)

	status, err := store.GetStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, 0, status.TotalRuns)

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	last := first.Add(48 * time.Hour)
	_, err = store.CommitRun(ctx, testRun("old", first), []schema.RegionalSummary{
		{Region: "UK", TotalPosts: 2, LastUpdated: first},
		{Region: "Japan", TotalPosts: 3, LastUpdated: first},
	})
	require.NoError(t, err)
	_, err = store.CommitRun(ctx, testRun("new", last), []schema.RegionalSummary{{Region: "UK", TotalPosts: 1, LastUpdated: last}})
	require.NoError(t, err)

	status, err = store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, string(schema.SQLiteBackend), status.Backend)
	assert.Equal(t, 2, status.TotalRuns)
	assert.Equal(t, "new", status.LastRunID)
	assert.True(t, last.Equal(status.LastRunTime))
	assert.True(t, first.Equal(status.OldestRunTime))
	assert.Equal(t, 2, status.TotalRegions)
	assert.Equal(t, int64(6), status.TotalPosts)
	assert.Equal(t, int64(2), status.TableSizes[SummaryTable])
	assert.Equal(t, int64(2), status.TableSizes[RunsTable])
}

func TestSummaryStore_FileBackedReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "tz.db")

	store, err := NewSummaryStore(ctx, schema.SQLiteBackend, dbPath, nil)
	require.NoError(t, err)
	_, err = store.CommitRun(ctx, testRun("r1", time.Now()), []schema.RegionalSummary{{Region: "UK", TotalPosts: 7, AvgConfidence: 1, LastUpdated: time.Now()}})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewSummaryStore(ctx, schema.SQLiteBackend, dbPath, nil)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	all, err := reopened.GetSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(7), all[0].TotalPosts)
}

func TestMigrateStore_SQLite(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "migrate.db")

	require.NoError(t, MigrateStore(ctx, schema.SQLiteBackend, dbPath, -1))
	// Already at latest
	require.NoError(t, MigrateStore(ctx, schema.SQLiteBackend, dbPath, -1))
	require.NoError(t, MigrateStore(ctx, schema.SQLiteBackend, dbPath, 1))
	require.NoError(t, MigrateStore(ctx, schema.SQLiteBackend, dbPath, 0))

	err := MigrateStore(ctx, schema.NoneBackend, "", -1)
	assert.Error(t, err)
}

func TestClearStore(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "clear.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("x"), 0o644))

	require.NoError(t, ClearStore(ctx, schema.SQLiteBackend, dbPath, ""))
	_, err := os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err))

	// Missing file is fine
	assert.NoError(t, ClearStore(ctx, schema.SQLiteBackend, dbPath, ""))
	assert.Error(t, ClearStore(ctx, schema.SQLiteBackend, "", ""))
	assert.NoError(t, ClearStore(ctx, schema.NoneBackend, "", ""))
	assert.Error(t, ClearStore(ctx, "oracle", "", ""))
}

func TestExecuteSummaryExport(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	base := filepath.Join(t.TempDir(), "export")

	assert.Error(t, ExecuteSummaryExport(ctx, store, ""))
	assert.Error(t, ExecuteSummaryExport(ctx, store, base), "empty store has nothing to export")

	_, err := store.CommitRun(ctx, testRun("r1", time.Now()), []schema.RegionalSummary{{Region: "UK", TotalPosts: 1, LastUpdated: time.Now()}})
	require.NoError(t, err)
	require.NoError(t, ExecuteSummaryExport(ctx, store, base))

	for _, suffix := range []string{".regional_activity_clusters.parquet", ".runs.parquet"} {
		_, err := os.Stat(base + suffix)
		assert.NoError(t, err, suffix)
	}
}

func TestStoreManager(t *testing.T) {
	mgr := &StoreManager{}
	assert.Nil(t, mgr.GetSummaryStore())

	mockStore := &MockSummaryStore{}
	mgr.SetSummaryStore(mockStore)
	assert.Same(t, mockStore, mgr.GetSummaryStore())
}

func TestQueryHelpers(t *testing.T) {
	assert.Equal(t, "`regional_activity_clusters`", quoteTableName(SummaryTable, schema.MySQLBackend))
	assert.Equal(t, `"regional_activity_clusters"`, quoteTableName(SummaryTable, schema.PostgreSQLBackend))
	assert.Equal(t, "$2, $3, $4", placeholders(schema.PostgreSQLBackend, 2, 3))
	assert.Equal(t, "?, ?", placeholders(schema.MySQLBackend, 1, 2))

	assert.NoError(t, validateTableName(RunsTable))
	assert.Error(t, validateTableName("runs; DROP TABLE x"))
	assert.Error(t, validateTableName(""))

	assert.Contains(t, getUpsertQuery(schema.MySQLBackend), "ON DUPLICATE KEY UPDATE")
	assert.Contains(t, getUpsertQuery(schema.PostgreSQLBackend), "$5")
	assert.Contains(t, getUpsertQuery(schema.SQLiteBackend), "ON CONFLICT (region_name)")
}
