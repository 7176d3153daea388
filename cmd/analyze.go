package cmd

import (
	"github.com/huangsam/tzcluster/core"
	"github.com/spf13/cobra"
)

// analyzeCmd clusters a dataset and merges the result into the summary store.
var analyzeCmd = &cobra.Command{
	Use:   "analyze <input-path>",
	Short: "Cluster post timestamps and infer their timezone regions.",
	Long: `Read posts with an id and a zoned created_at timestamp, cluster them by
hour of day and map each cluster onto the region whose working hours it fits.

The per-region counts and confidences of the run are merged into the summary
store in one transaction. Use --dry-run to preview the merged totals instead.

Examples:
  # Analyze a JSONL dump with the default 24 clusters
  tzcluster analyze posts.jsonl

  # Preview with a half-day decay and a custom seed
  tzcluster analyze posts.csv --decay halfday --seed 7 --dry-run

  # Serialize concurrent runs through Redis
  tzcluster analyze posts.parquet --lock-backend redis --lock-addr localhost:6379`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run:     runExecutor("Cannot run analysis", core.ExecuteAnalyze),
}
