//go:build basic

package integration

import (
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/huangsam/tzcluster/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAnalyzeAccumulatesWithSQLite runs the same dataset twice and checks that
// the stored totals add up while a dry run leaves them alone.
func TestAnalyzeAccumulatesWithSQLite(t *testing.T) {
	dir, dataset := writeFixture(t)
	t.Setenv("TZCLUSTER_STORE_BACKEND", "sqlite")
	t.Setenv("TZCLUSTER_STORE_DB_CONNECT", filepath.Join(dir, "summaries.db"))

	out, err := runCommand(t, dir, "analyze", dataset, "--output", "json")
	require.NoError(t, err)

	var first schema.RunResult
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	assert.True(t, first.Committed)
	assert.Equal(t, 4, first.Run.TotalRecords)
	assert.Equal(t, 1, first.Run.DroppedRecords)
	require.Len(t, first.Assignments, 1)
	assert.Equal(t, "US-East", first.Assignments[0].Region)

	_, err = runCommand(t, dir, "analyze", dataset, "--output", "json")
	require.NoError(t, err)

	out, err = runCommand(t, dir, "analyze", dataset, "--output", "json", "--dry-run")
	require.NoError(t, err)
	var preview schema.RunResult
	require.NoError(t, json.Unmarshal([]byte(out), &preview))
	assert.True(t, preview.DryRun)
	require.Len(t, preview.Stored, 1)
	assert.Equal(t, int64(9), preview.Stored[0].TotalPosts)

	out, err = runCommand(t, dir, "summary", "show", "--output", "csv")
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "US-East", rows[1][1])
	assert.Equal(t, "6", rows[1][2], "the dry run must not be committed")

	out, err = runCommand(t, dir, "summary", "runs", "--output", "json")
	require.NoError(t, err)
	var runs []schema.RunRecord
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	assert.Len(t, runs, 2)

	_, err = runCommand(t, dir, "summary", "clear")
	require.NoError(t, err)
}

// TestAnalyzeRejectsBadInput checks the exit status on unusable input.
func TestAnalyzeRejectsBadInput(t *testing.T) {
	dir, _ := writeFixture(t)
	t.Setenv("TZCLUSTER_STORE_BACKEND", "none")

	_, err := runCommand(t, dir, "analyze", filepath.Join(dir, "missing.jsonl"))
	assert.Error(t, err)

	_, err = runCommand(t, dir, "analyze", filepath.Join(dir, "posts.txt"))
	assert.Error(t, err, "unknown extensions need --format")

	_, err = runCommand(t, dir, "analyze", filepath.Join(dir, "posts.jsonl"), "--clusters", "0")
	assert.Error(t, err)
}

// TestRegionsCommand lists the configured region table.
func TestRegionsCommand(t *testing.T) {
	dir, _ := writeFixture(t)

	out, err := runCommand(t, dir, "regions", "--output", "json")
	require.NoError(t, err)
	var regions []schema.RegionCandidate
	require.NoError(t, json.Unmarshal([]byte(out), &regions))
	require.Len(t, regions, 1)
	assert.Equal(t, "US-East", regions[0].Name)
	assert.InDelta(t, -5, regions[0].Offset, 1e-9)
}
