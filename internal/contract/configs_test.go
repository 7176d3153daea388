package contract

import (
	"log/slog"
	"testing"
	"time"

	"github.com/huangsam/tzcluster/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validInput returns raw inputs equivalent to the CLI defaults.
func validInput() *ConfigRawInput {
	return &ConfigRawInput{
		InputPathStr:  "posts.jsonl",
		Output:        "text",
		Precision:     DefaultPrecision,
		Color:         "yes",
		StoreBackend:  "sqlite",
		LogLevel:      DefaultLogLevel,
		LogFormat:     DefaultLogFormat,
		Format:        "auto",
		Clusters:      schema.DefaultClusters,
		Seed:          schema.DefaultSeed,
		MaxIterations: schema.DefaultMaxIterations,
		Tolerance:     schema.DefaultTolerance,
		Decay:         string(schema.LinearDecay),
		Alternatives:  schema.DefaultAlternatives,
		LockBackend:   "none",
	}
}

func TestProcessAndValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*ConfigRawInput)
		expectError string
	}{
		{name: "valid defaults", mutate: func(*ConfigRawInput) {}},
		{name: "invalid output", mutate: func(in *ConfigRawInput) { in.Output = "xml" }, expectError: "invalid output format"},
		{name: "precision too high", mutate: func(in *ConfigRawInput) { in.Precision = 9 }, expectError: "precision"},
		{name: "bad color", mutate: func(in *ConfigRawInput) { in.Color = "sometimes" }, expectError: "--color"},
		{name: "bad backend", mutate: func(in *ConfigRawInput) { in.StoreBackend = "oracle" }, expectError: "invalid store backend"},
		{name: "mysql without connect", mutate: func(in *ConfigRawInput) { in.StoreBackend = "mysql" }, expectError: "store-db-connect is required"},
		{name: "bad log level", mutate: func(in *ConfigRawInput) { in.LogLevel = "loud" }, expectError: "invalid log level"},
		{name: "bad log format", mutate: func(in *ConfigRawInput) { in.LogFormat = "xml" }, expectError: "invalid log format"},
		{name: "negative sample", mutate: func(in *ConfigRawInput) { in.Sample = -1 }, expectError: "sample"},
		{name: "unknown extension", mutate: func(in *ConfigRawInput) { in.InputPathStr = "posts.txt" }, expectError: "cannot infer"},
		{name: "bad format", mutate: func(in *ConfigRawInput) { in.Format = "avro" }, expectError: "invalid input format"},
		{name: "zero clusters", mutate: func(in *ConfigRawInput) { in.Clusters = 0 }, expectError: "clusters"},
		{name: "zero iterations", mutate: func(in *ConfigRawInput) { in.MaxIterations = 0 }, expectError: "max-iterations"},
		{name: "negative tolerance", mutate: func(in *ConfigRawInput) { in.Tolerance = -1 }, expectError: "tolerance"},
		{name: "bad decay", mutate: func(in *ConfigRawInput) { in.Decay = "exponential" }, expectError: "invalid decay policy"},
		{name: "negative alternatives", mutate: func(in *ConfigRawInput) { in.Alternatives = -1 }, expectError: "alternatives"},
		{name: "bad lock backend", mutate: func(in *ConfigRawInput) { in.LockBackend = "etcd" }, expectError: "invalid lock backend"},
		{name: "redis without addr", mutate: func(in *ConfigRawInput) { in.LockBackend = "redis" }, expectError: "lock-addr is required"},
		{name: "bad lock ttl", mutate: func(in *ConfigRawInput) { in.LockTTL = "soon" }, expectError: "lock-ttl"},
		{name: "non-positive lock ttl", mutate: func(in *ConfigRawInput) { in.LockTTL = "0s" }, expectError: "lock-ttl must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(input)
			cfg := &Config{}
			err := ProcessAndValidate(cfg, input)
			if tt.expectError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestProcessAndValidate_Defaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, validInput()))

	assert.Equal(t, schema.JSONLInput, cfg.InputFormat)
	assert.Equal(t, schema.DefaultClusters, cfg.Clusters)
	assert.Equal(t, uint64(schema.DefaultSeed), cfg.Seed)
	assert.Equal(t, schema.LinearDecay, cfg.Decay)
	assert.Equal(t, schema.DefaultRegions(), cfg.Regions)
	assert.Equal(t, schema.SQLiteBackend, cfg.StoreBackend)
	assert.Equal(t, schema.NoLock, cfg.LockBackend)
	assert.Equal(t, DefaultLockTTL, cfg.LockTTL)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.True(t, cfg.UseColors)
}

func TestProcessAndValidate_Overrides(t *testing.T) {
	input := validInput()
	input.InputPathStr = "dump.parquet"
	input.Output = "JSON"
	input.StoreBackend = ""
	input.Decay = "HalfDay"
	input.LockBackend = "redis"
	input.LockAddr = "localhost:6379"
	input.LockTTL = "90s"
	input.LogLevel = "debug"
	input.Regions = []RegionRawInput{
		{Name: " Lab ", Offset: 3},
		{Name: "Night Ops", Offset: 0, WorkStart: 22, WorkEnd: 6},
	}

	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, input))

	assert.Equal(t, schema.ParquetInput, cfg.InputFormat)
	assert.Equal(t, schema.JSONOut, cfg.Output)
	assert.Equal(t, schema.SQLiteBackend, cfg.StoreBackend)
	assert.Equal(t, schema.HalfDayDecay, cfg.Decay)
	assert.Equal(t, schema.RedisLock, cfg.LockBackend)
	assert.Equal(t, 90*time.Second, cfg.LockTTL)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	require.Len(t, cfg.Regions, 2)
	assert.Equal(t, schema.RegionCandidate{Name: "Lab", Offset: 3, WorkStart: 9, WorkEnd: 17}, cfg.Regions[0])
	assert.Equal(t, 22.0, cfg.Regions[1].WorkStart)
}

func TestDetectInputFormat(t *testing.T) {
	tests := map[string]schema.InputFormat{
		"a.jsonl":        schema.JSONLInput,
		"a.NDJSON":       schema.JSONLInput,
		"dir/b.json":     schema.JSONInput,
		"c.csv":          schema.CSVInput,
		"/tmp/d.parquet": schema.ParquetInput,
	}
	for path, expected := range tests {
		got, err := DetectInputFormat(path)
		require.NoError(t, err, path)
		assert.Equal(t, expected, got, path)
	}
	_, err := DetectInputFormat("noext")
	assert.Error(t, err)
}

func TestValidateDatabaseConnectionString(t *testing.T) {
	tests := []struct {
		name    string
		backend schema.DatabaseBackend
		connStr string
		wantErr bool
	}{
		{"sqlite ignores string", schema.SQLiteBackend, "", false},
		{"none ignores string", schema.NoneBackend, "", false},
		{"mysql valid", schema.MySQLBackend, "user:pass@tcp(localhost:3306)/tz", false},
		{"mysql missing tcp", schema.MySQLBackend, "user:pass@localhost/tz", true},
		{"mysql missing db", schema.MySQLBackend, "user:pass@tcp(localhost:3306)", true},
		{"postgres valid", schema.PostgreSQLBackend, "host=localhost port=5432 dbname=tz", false},
		{"postgres missing host", schema.PostgreSQLBackend, "dbname=tz", true},
		{"postgres missing db", schema.PostgreSQLBackend, "host=localhost", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDatabaseConnectionString(tt.backend, tt.connStr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigClone(t *testing.T) {
	cfg := &Config{Regions: schema.DefaultRegions(), Clusters: 24}
	clone := cfg.Clone()
	clone.Regions[0].Name = "changed"
	clone.Clusters = 3
	assert.NotEqual(t, "changed", cfg.Regions[0].Name)
	assert.Equal(t, 24, cfg.Clusters)
}

func TestConfigParams(t *testing.T) {
	cfg := &Config{InputPath: "x.csv", Clusters: 24, Seed: 42, Decay: schema.CosineDecay, Regions: schema.DefaultRegions()}
	params := cfg.Params()
	assert.Equal(t, 24, params["clusters"])
	assert.Equal(t, uint64(42), params["seed"])
	assert.Equal(t, "cosine", params["decay"])
	assert.Equal(t, len(schema.DefaultRegions()), params["regions"])
}
