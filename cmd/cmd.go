// Package cmd defines the command-line interface for tzcluster.
package cmd

import (
	"github.com/huangsam/tzcluster/internal/contract"
	"github.com/huangsam/tzcluster/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(regionsCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("short", false, "Print only the version number")

	// Add the summary subcommands to the parent summary command
	summaryCmd.AddCommand(summaryShowCmd)
	summaryCmd.AddCommand(summaryRunsCmd)
	summaryCmd.AddCommand(summaryStatusCmd)
	summaryCmd.AddCommand(summaryExportCmd)
	summaryCmd.AddCommand(summaryClearCmd)
	summaryCmd.AddCommand(summaryMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("store-backend", string(schema.SQLiteBackend), "Summary store backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("store-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("log-level", contract.DefaultLogLevel, "Log level: debug or info or warn or error")
	rootCmd.PersistentFlags().String("log-format", contract.DefaultLogFormat, "Log format: text or json")
	rootCmd.PersistentFlags().String("log-file", "", "Also append logs to this file")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of analyzeCmd to Viper
	analyzeCmd.Flags().String("format", string(schema.AutoInput), "Input format: auto or jsonl or json or csv or parquet")
	analyzeCmd.Flags().Int("sample", 0, "Read at most this many records (0 = all)")
	analyzeCmd.Flags().IntP("clusters", "k", schema.DefaultClusters, "Number of K-means clusters")
	analyzeCmd.Flags().Uint64("seed", schema.DefaultSeed, "Random seed for centroid initialization")
	analyzeCmd.Flags().Int("max-iterations", schema.DefaultMaxIterations, "Maximum K-means iterations")
	analyzeCmd.Flags().Float64("tolerance", schema.DefaultTolerance, "Centroid movement below which K-means stops")
	analyzeCmd.Flags().String("decay", string(schema.LinearDecay), "Confidence decay: linear or cosine or quadratic or halfday")
	analyzeCmd.Flags().Int("alternatives", schema.DefaultAlternatives, "Nearest regions to suggest for unclassified clusters")
	analyzeCmd.Flags().Bool("dry-run", false, "Preview the merged summaries without committing them")
	analyzeCmd.Flags().String("lock-backend", string(schema.NoLock), "Run lock backend: none or redis")
	analyzeCmd.Flags().String("lock-addr", "", "Redis address for the run lock (host:port)")
	analyzeCmd.Flags().String("lock-ttl", contract.DefaultLockTTL.String(), "Run lock expiry; a running analysis extends it every ttl/3")
	if err := viper.BindPFlags(analyzeCmd.Flags()); err != nil {
		contract.LogFatal("Error binding analyze flags", err)
	}

	// Bind all flags of summaryMigrateCmd to Viper
	summaryMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(summaryMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding summary migrate flags", err)
	}
}
