package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/huangsam/tzcluster/internal/contract"
	"github.com/huangsam/tzcluster/internal/parquet"
)

// ExecuteSummaryExport writes the stored summaries and run history to Parquet files
// named after outputFile.
func ExecuteSummaryExport(ctx context.Context, store contract.SummaryStore, outputFile string) error {
	// Validate that output file is specified
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}

	status, err := store.GetStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to get store status: %w", err)
	}

	if status.TotalRuns == 0 && status.TotalRegions == 0 {
		return errors.New("no summary data found to export")
	}

	fmt.Printf("Exporting data from %s backend...\n", status.Backend)
	fmt.Printf("Total runs: %d\n", status.TotalRuns)
	fmt.Printf("Total regions: %d\n", status.TotalRegions)

	summaries, err := store.GetSummaries(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve summaries: %w", err)
	}

	runs, err := store.GetRuns(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve runs: %w", err)
	}

	summariesFile := outputFile + ".regional_activity_clusters.parquet"
	if err := parquet.WriteSummariesParquet(parquet.ConvertSummaries(summaries), summariesFile); err != nil {
		return fmt.Errorf("failed to write summaries: %w", err)
	}
	fmt.Printf("Exported %d regional summaries to: %s\n", len(summaries), summariesFile)

	runsFile := outputFile + ".runs.parquet"
	if err := parquet.WriteRunsParquet(parquet.ConvertRuns(runs), runsFile); err != nil {
		return fmt.Errorf("failed to write runs: %w", err)
	}
	fmt.Printf("Exported %d runs to: %s\n", len(runs), runsFile)

	fmt.Println("\nExport complete! The Parquet files can be used with:")
	fmt.Println("  - Apache Spark")
	fmt.Println("  - Pandas (via pyarrow)")
	fmt.Println("  - DuckDB")
	fmt.Println("  - Any other Parquet-compatible tool")

	return nil
}
