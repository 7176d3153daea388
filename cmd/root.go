package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/huangsam/tzcluster/core"
	"github.com/huangsam/tzcluster/internal/contract"
	"github.com/huangsam/tzcluster/internal/persist"
	"github.com/huangsam/tzcluster/schema"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// storeManager is the global persistence manager instance.
var storeManager contract.StoreManager

// logger is the process logger built by setupLogger.
var logger = contract.NewDiscardLogger()

// closeLog releases the log file opened by setupLogger, if any.
var closeLog = func() error { return nil }

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:   "tzcluster",
	Short: "Infer the timezone regions behind a stream of post timestamps.",
	Long: `Tzcluster groups posts by their hour of day, maps each group onto the
region whose working hours it best fits, and keeps a running per-region summary.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in the .env file, config file and ENV variables if set.
func initConfig() {
	// A missing .env is the common case
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		contract.LogWarn("Cannot load .env file", err)
	}

	setConfigPaths()

	// Set environment variable prefix
	viper.SetEnvPrefix("TZCLUSTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // Read in environment variables that match

	// Set defaults in Viper
	viper.SetDefault("precision", contract.DefaultPrecision)
	viper.SetDefault("output", schema.TextOut)
	viper.SetDefault("color", "yes")
	viper.SetDefault("store-backend", schema.SQLiteBackend)
	viper.SetDefault("store-db-connect", "")
	viper.SetDefault("log-level", contract.DefaultLogLevel)
	viper.SetDefault("log-format", contract.DefaultLogFormat)
	viper.SetDefault("format", schema.AutoInput)
	viper.SetDefault("clusters", schema.DefaultClusters)
	viper.SetDefault("seed", schema.DefaultSeed)
	viper.SetDefault("max-iterations", schema.DefaultMaxIterations)
	viper.SetDefault("tolerance", schema.DefaultTolerance)
	viper.SetDefault("decay", schema.LinearDecay)
	viper.SetDefault("alternatives", schema.DefaultAlternatives)
	viper.SetDefault("lock-backend", schema.NoLock)
	viper.SetDefault("lock-ttl", contract.DefaultLockTTL.String())
}

// setConfigPaths points Viper at --config or the default .tzcluster.yaml locations.
func setConfigPaths() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		return
	}
	viper.SetConfigName(".tzcluster") // Name of config file (without extension)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME")
}

// configSetup unmarshals config, runs validation and installs the logger.
// It does not touch the summary store.
func configSetup(_ context.Context, _ *cobra.Command, args []string) error {
	// 1. Read config file. This merges defaults, file, env, and flags.
	if err := loadConfigFile(); err != nil {
		return err
	}

	// 2. Unmarshal all resolved values from Viper into our raw input struct.
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	// 3. Handle positional arguments (which Viper doesn't do).
	if len(args) == 1 {
		input.InputPathStr = args[0]
	}

	// 4. Run all validation and complex parsing.
	if err := contract.ProcessAndValidate(cfg, input); err != nil {
		return err
	}

	color.NoColor = !cfg.UseColors
	return setupLogger()
}

// sharedSetup runs configSetup and then opens the summary store.
func sharedSetup(ctx context.Context, cmd *cobra.Command, args []string) error {
	if err := configSetup(ctx, cmd, args); err != nil {
		return err
	}

	// 5. Initialize persistence layer with validated config
	if err := persist.InitStore(rootCtx, cfg.StoreBackend, cfg.StoreDBConnect, logger); err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}
	return nil
}

// sharedSetupWrapper wraps sharedSetup to provide context for Cobra's PreRunE.
func sharedSetupWrapper(cmd *cobra.Command, args []string) error {
	return sharedSetup(rootCtx, cmd, args)
}

// configSetupWrapper wraps configSetup to provide context for Cobra's PreRunE.
func configSetupWrapper(cmd *cobra.Command, args []string) error {
	return configSetup(rootCtx, cmd, args)
}

// runExecutor adapts a core executor to a cobra Run function.
func runExecutor(failure string, execute core.ExecutorFunc) func(*cobra.Command, []string) {
	return func(_ *cobra.Command, _ []string) {
		if err := execute(rootCtx, cfg, storeManager); err != nil {
			contract.LogFatal(failure, err)
		}
	}
}

// setupLogger builds the process logger from cfg and attaches it to rootCtx.
func setupLogger() error {
	l, closer, err := contract.NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		return err
	}
	logger, closeLog = l, closer
	rootCtx = core.WithLogger(rootCtx, logger)
	return nil
}

// loadConfigFile handles config file loading logic common to all setup functions.
func loadConfigFile() error {
	setConfigPaths()

	// Load config file if present
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// Execute runs the root command. SIGINT and SIGTERM cancel rootCtx, which aborts
// a run before it commits.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCtx = ctx
	return rootCmd.ExecuteContext(ctx)
}

// SetStoreManager sets the global store manager.
func SetStoreManager(mgr contract.StoreManager) {
	storeManager = mgr
}

// Shutdown releases process-wide resources such as the log file.
func Shutdown() error {
	return closeLog()
}
