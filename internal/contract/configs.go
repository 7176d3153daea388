package contract

import (
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/huangsam/tzcluster/schema"
)

// Default values for configuration.
const (
	DefaultPrecision = 2
	DefaultLockTTL   = 10 * time.Minute
	DefaultLockKey   = "tzcluster:run-lock"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
	MaxClusters      = 1000
)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// RegionRawInput is one region entry from the YAML config file.
type RegionRawInput struct {
	Name      string  `mapstructure:"name"`
	Offset    float64 `mapstructure:"offset"`
	WorkStart float64 `mapstructure:"work_start"`
	WorkEnd   float64 `mapstructure:"work_end"`
}

// Config holds the runtime configuration for the analysis.
// This struct remains the "final, validated" config.
type Config struct {
	InputPath   string
	InputFormat schema.InputFormat
	Sample      int // Read at most this many records (0 = all)

	Clusters      int
	Seed          uint64
	MaxIterations int
	Tolerance     float64
	Decay         schema.DecayPolicy
	Alternatives  int
	Regions       []schema.RegionCandidate
	DryRun        bool

	Output     schema.OutputMode
	OutputFile string
	Precision  int
	Width      int // Terminal width override (0 = auto-detect)
	UseColors  bool

	StoreBackend   schema.DatabaseBackend
	StoreDBConnect string // Please use env var as this is plaintext

	LockBackend schema.LockBackend
	LockAddr    string
	LockTTL     time.Duration

	LogLevel  slog.Level
	LogFormat string
	LogFile   string
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// This is set manually from positional args, so no tag
	InputPathStr string

	// --- Fields from rootCmd.PersistentFlags() ---
	Output         string `mapstructure:"output"`
	OutputFile     string `mapstructure:"output-file"`
	Precision      int    `mapstructure:"precision"`
	Width          int    `mapstructure:"width"`
	Color          string `mapstructure:"color"`
	StoreBackend   string `mapstructure:"store-backend"`
	StoreDBConnect string `mapstructure:"store-db-connect"`
	LogLevel       string `mapstructure:"log-level"`
	LogFormat      string `mapstructure:"log-format"`
	LogFile        string `mapstructure:"log-file"`

	// --- Fields from analyzeCmd.Flags() ---
	Format        string  `mapstructure:"format"`
	Sample        int     `mapstructure:"sample"`
	Clusters      int     `mapstructure:"clusters"`
	Seed          uint64  `mapstructure:"seed"`
	MaxIterations int     `mapstructure:"max-iterations"`
	Tolerance     float64 `mapstructure:"tolerance"`
	Decay         string  `mapstructure:"decay"`
	Alternatives  int     `mapstructure:"alternatives"`
	DryRun        bool    `mapstructure:"dry-run"`
	LockBackend   string  `mapstructure:"lock-backend"`
	LockAddr      string  `mapstructure:"lock-addr"`
	LockTTL       string  `mapstructure:"lock-ttl"`

	// --- Region table from config file ---
	Regions []RegionRawInput `mapstructure:"regions"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Regions = slices.Clone(c.Regions)
	return &clone
}

// Params returns the run-relevant settings for recording alongside a run.
func (c *Config) Params() map[string]any {
	params := map[string]any{
		"input":          c.InputPath,
		"format":         string(c.InputFormat),
		"sample":         c.Sample,
		"clusters":       c.Clusters,
		"seed":           c.Seed,
		"max_iterations": c.MaxIterations,
		"tolerance":      c.Tolerance,
		"decay":          string(c.Decay),
		"alternatives":   c.Alternatives,
		"regions":        len(c.Regions),
	}
	return maps.Clone(params)
}

// ProcessAndValidate performs all complex parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processInput(cfg, input); err != nil {
		return err
	}
	if err := processClustering(cfg, input); err != nil {
		return err
	}
	if err := processRegions(cfg, input); err != nil {
		return err
	}
	if err := processLock(cfg, input); err != nil {
		return err
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("store-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("store-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// ParseBackend normalizes a backend string, treating empty as the SQLite default.
func ParseBackend(s string) (schema.DatabaseBackend, error) {
	if strings.TrimSpace(s) == "" {
		return schema.SQLiteBackend, nil
	}
	backend := schema.DatabaseBackend(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := schema.ValidDatabaseBackends[backend]; !ok {
		return "", fmt.Errorf("invalid store backend '%s'. must be sqlite, mysql, postgresql, none", s)
	}
	return backend, nil
}

// ParseLogLevel maps a level name onto slog levels.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s'. must be debug, info, warn, error", s)
	}
	return level, nil
}

// validateSimpleInputs processes and validates output, logging and backend fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	// --- 0. Transfer simple non-validated fields from input -> cfg ---
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.DryRun = input.DryRun
	cfg.LogFile = input.LogFile

	// Parse color flag
	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	// --- 1. Precision and Output Validation ---
	if input.Precision < 1 || input.Precision > 4 {
		return fmt.Errorf("precision must be between 1 and 4 (received %d)", input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json", input.Output)
	}

	// --- 2. Backend Validation ---
	backend, err := ParseBackend(input.StoreBackend)
	if err != nil {
		return err
	}
	cfg.StoreBackend = backend
	cfg.StoreDBConnect = input.StoreDBConnect
	if err := ValidateDatabaseConnectionString(cfg.StoreBackend, cfg.StoreDBConnect); err != nil {
		return err
	}

	// --- 3. Logging ---
	level, err := ParseLogLevel(input.LogLevel)
	if err != nil {
		return err
	}
	cfg.LogLevel = level

	cfg.LogFormat = strings.ToLower(input.LogFormat)
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("invalid log format '%s'. must be text, json", input.LogFormat)
	}
	return nil
}

// processInput resolves the dataset path and its format.
func processInput(cfg *Config, input *ConfigRawInput) error {
	if input.Sample < 0 {
		return fmt.Errorf("sample must not be negative (received %d)", input.Sample)
	}
	cfg.Sample = input.Sample
	cfg.InputPath = input.InputPathStr

	format := schema.InputFormat(strings.ToLower(input.Format))
	if format == "" {
		format = schema.AutoInput
	}
	if _, ok := schema.ValidInputFormats[format]; !ok {
		return fmt.Errorf("invalid input format '%s'. must be auto, jsonl, json, csv, parquet", input.Format)
	}
	if format == schema.AutoInput && cfg.InputPath != "" {
		detected, err := DetectInputFormat(cfg.InputPath)
		if err != nil {
			return err
		}
		format = detected
	}
	cfg.InputFormat = format
	return nil
}

// DetectInputFormat infers the dataset format from its file extension.
func DetectInputFormat(path string) (schema.InputFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return schema.JSONLInput, nil
	case ".json":
		return schema.JSONInput, nil
	case ".csv":
		return schema.CSVInput, nil
	case ".parquet":
		return schema.ParquetInput, nil
	default:
		return "", fmt.Errorf("cannot infer input format from %q. use --format", path)
	}
}

// processClustering validates the K-means and region mapping parameters.
func processClustering(cfg *Config, input *ConfigRawInput) error {
	if input.Clusters < 1 || input.Clusters > MaxClusters {
		return fmt.Errorf("clusters must be between 1 and %d (received %d)", MaxClusters, input.Clusters)
	}
	cfg.Clusters = input.Clusters
	cfg.Seed = input.Seed

	if input.MaxIterations < 1 {
		return fmt.Errorf("max-iterations must be at least 1 (received %d)", input.MaxIterations)
	}
	cfg.MaxIterations = input.MaxIterations

	if input.Tolerance < 0 {
		return fmt.Errorf("tolerance must not be negative (received %g)", input.Tolerance)
	}
	cfg.Tolerance = input.Tolerance

	cfg.Decay = schema.DecayPolicy(strings.ToLower(input.Decay))
	if _, ok := schema.ValidDecayPolicies[cfg.Decay]; !ok {
		return fmt.Errorf("invalid decay policy '%s'. must be linear, cosine, quadratic, halfday", input.Decay)
	}

	if input.Alternatives < 0 {
		return fmt.Errorf("alternatives must not be negative (received %d)", input.Alternatives)
	}
	cfg.Alternatives = input.Alternatives
	return nil
}

// processRegions uses the configured region table or falls back to the built-in one.
// Entries without work hours get the default 9-17 window.
func processRegions(cfg *Config, input *ConfigRawInput) error {
	if len(input.Regions) == 0 {
		cfg.Regions = schema.DefaultRegions()
		return nil
	}
	cfg.Regions = make([]schema.RegionCandidate, 0, len(input.Regions))
	for _, r := range input.Regions {
		c := schema.RegionCandidate{
			Name:      strings.TrimSpace(r.Name),
			Offset:    r.Offset,
			WorkStart: r.WorkStart,
			WorkEnd:   r.WorkEnd,
		}
		if c.WorkStart == 0 && c.WorkEnd == 0 {
			c.WorkStart, c.WorkEnd = schema.DefaultWorkStart, schema.DefaultWorkEnd
		}
		cfg.Regions = append(cfg.Regions, c)
	}
	return nil
}

// processLock validates the optional cross-process run lock.
func processLock(cfg *Config, input *ConfigRawInput) error {
	cfg.LockBackend = schema.LockBackend(strings.ToLower(input.LockBackend))
	if cfg.LockBackend == "" {
		cfg.LockBackend = schema.NoLock
	}
	if _, ok := schema.ValidLockBackends[cfg.LockBackend]; !ok {
		return fmt.Errorf("invalid lock backend '%s'. must be none, redis", input.LockBackend)
	}
	cfg.LockAddr = input.LockAddr
	if cfg.LockBackend == schema.RedisLock && cfg.LockAddr == "" {
		return fmt.Errorf("lock-addr is required when using %s lock backend", cfg.LockBackend)
	}

	cfg.LockTTL = DefaultLockTTL
	if input.LockTTL != "" {
		ttl, err := time.ParseDuration(input.LockTTL)
		if err != nil {
			return fmt.Errorf("invalid lock-ttl: %w", err)
		}
		if ttl <= 0 {
			return fmt.Errorf("lock-ttl must be positive (received %s)", input.LockTTL)
		}
		cfg.LockTTL = ttl
	}
	return nil
}
