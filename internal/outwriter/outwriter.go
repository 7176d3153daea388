// Package outwriter has output and writer logic.
package outwriter

import (
	"time"

	"github.com/huangsam/tzcluster/internal/contract"
	"github.com/huangsam/tzcluster/schema"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the core logic.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteRun prints one analysis run using the configured output format.
func (ow *OutWriter) WriteRun(result *schema.RunResult, cfg *contract.Config, duration time.Duration) error {
	return PrintRunResult(result, cfg, duration)
}

// WriteSummaries prints the stored regional summaries using the configured output format.
func (ow *OutWriter) WriteSummaries(summaries []schema.RegionalSummary, cfg *contract.Config) error {
	return PrintSummaries(summaries, cfg)
}

// WriteRuns prints the recorded run history using the configured output format.
func (ow *OutWriter) WriteRuns(runs []schema.RunRecord, cfg *contract.Config) error {
	return PrintRuns(runs, cfg)
}

// WriteRegions prints the active region table using the configured output format.
func (ow *OutWriter) WriteRegions(regions []schema.RegionCandidate, cfg *contract.Config) error {
	return PrintRegions(regions, cfg)
}
