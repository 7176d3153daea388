package cmd

import (
	"fmt"

	"github.com/huangsam/tzcluster/core"
	"github.com/huangsam/tzcluster/internal/contract"
	"github.com/huangsam/tzcluster/internal/persist"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// summaryCmd is the parent command for summary store management.
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Inspect and manage the regional summary store.",
	Long: `The summary store keeps the running per-region post counts and confidences
plus one record per committed run.

Use the subcommands to read, export, migrate or clear it.`,
}

// summaryShowCmd prints the accumulated regional summaries.
var summaryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the accumulated regional summaries.",
	Long: `Print every stored region ordered by post count.

Examples:
  # Table view
  tzcluster summary show

  # CSV for spreadsheets
  tzcluster summary show --output csv --output-file regions.csv`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetupWrapper,
	Run:     runExecutor("Cannot show summaries", core.ExecuteShowSummaries),
}

// summaryRunsCmd prints the run history.
var summaryRunsCmd = &cobra.Command{
	Use:     "runs",
	Short:   "Show the history of committed runs.",
	Long:    `Print one row per committed run with its record counts, seed and convergence.`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetupWrapper,
	Run:     runExecutor("Cannot show runs", core.ExecuteShowRuns),
}

// summaryStatusCmd reports on the configured store.
var summaryStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show summary store status.",
	Long:    `Report the backend, connectivity, run counts and table sizes of the summary store.`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		store := storeManager.GetSummaryStore()
		if store == nil {
			contract.LogFatal("Cannot get store status", fmt.Errorf("summary store not initialized"))
		}
		status, err := store.GetStatus(rootCtx)
		if err != nil {
			contract.LogFatal("Cannot get store status", err)
		}
		persist.PrintStoreStatus(status)
	},
}

// summaryExportCmd writes the store to Parquet files.
var summaryExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export summaries and runs to Parquet.",
	Long: `Write the regional summaries and the run history to Parquet files derived
from --output-file.

Examples:
  tzcluster summary export --output-file tzcluster.parquet`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		store := storeManager.GetSummaryStore()
		if store == nil {
			contract.LogFatal("Cannot export summaries", fmt.Errorf("summary store not initialized"))
		}
		if err := persist.ExecuteSummaryExport(rootCtx, store, cfg.OutputFile); err != nil {
			contract.LogFatal("Cannot export summaries", err)
		}
	},
}

// summaryClearCmd drops every stored summary and run.
var summaryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all stored summaries and runs.",
	Long: `Remove the summary store contents. For SQLite the database file is deleted;
for MySQL and PostgreSQL the tables are dropped and recreated on next use.`,
	Args:    cobra.NoArgs,
	PreRunE: configSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := persist.ClearStore(rootCtx, cfg.StoreBackend, sqliteFilePath(), cfg.StoreDBConnect); err != nil {
			contract.LogFatal("Cannot clear summary store", err)
		}
		fmt.Printf("Cleared %s summary store\n", cfg.StoreBackend)
	},
}

// summaryMigrateCmd applies schema migrations to the store.
var summaryMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run summary store schema migrations.",
	Long: `Apply or roll back the embedded schema migrations.

Examples:
  # Migrate to the latest version
  tzcluster summary migrate

  # Roll everything back
  tzcluster summary migrate --target-version 0`,
	Args:    cobra.NoArgs,
	PreRunE: configSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		if err := persist.MigrateStore(rootCtx, cfg.StoreBackend, cfg.StoreDBConnect, targetVersion); err != nil {
			contract.LogFatal("Cannot migrate summary store", err)
		}
		fmt.Printf("Migrated %s summary store\n", cfg.StoreBackend)
	},
}

// sqliteFilePath returns the SQLite database file the store would open.
func sqliteFilePath() string {
	if cfg.StoreDBConnect != "" {
		return cfg.StoreDBConnect
	}
	return contract.GetSummaryDBFilePath()
}
