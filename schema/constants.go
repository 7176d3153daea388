package schema

// Custom string types for type safety.
type (
	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for summary storage.
	DatabaseBackend string

	// DecayPolicy represents how confidence falls off from a work-window midpoint.
	DecayPolicy string

	// InputFormat represents the encoding of a post dataset on disk.
	InputFormat string

	// LockBackend represents the mechanism used to serialize concurrent runs.
	LockBackend string
)

// All output modes supported.
const (
	CSVOut  OutputMode = "csv"
	TextOut OutputMode = "text" // default
	JSONOut OutputMode = "json"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// All decay policies supported.
const (
	LinearDecay    DecayPolicy = "linear" // default
	CosineDecay    DecayPolicy = "cosine"
	QuadraticDecay DecayPolicy = "quadratic"
	HalfDayDecay   DecayPolicy = "halfday"
)

// All input formats supported.
const (
	AutoInput    InputFormat = "auto" // default, resolved from file extension
	JSONLInput   InputFormat = "jsonl"
	JSONInput    InputFormat = "json"
	CSVInput     InputFormat = "csv"
	ParquetInput InputFormat = "parquet"
)

// All run lock backends supported.
const (
	NoLock    LockBackend = "none" // default
	RedisLock LockBackend = "redis"
)

// Clustering and mapping defaults.
const (
	DefaultClusters      = 24
	DefaultSeed          = 42
	DefaultMaxIterations = 300
	DefaultTolerance     = 1e-4
	DefaultAlternatives  = 2
)

// UnclassifiedRegion is assigned to clusters whose peak hour falls inside no work window.
const UnclassifiedRegion = "Unclassified"

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:  {},
	TextOut: {},
	JSONOut: {},
}

// ValidDatabaseBackends lists all valid database backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// ValidDecayPolicies lists all valid decay policies.
var ValidDecayPolicies = map[DecayPolicy]struct{}{
	LinearDecay:    {},
	CosineDecay:    {},
	QuadraticDecay: {},
	HalfDayDecay:   {},
}

// ValidInputFormats lists all valid input formats.
var ValidInputFormats = map[InputFormat]struct{}{
	AutoInput:    {},
	JSONLInput:   {},
	JSONInput:    {},
	CSVInput:     {},
	ParquetInput: {},
}

// ValidLockBackends lists all valid run lock backends.
var ValidLockBackends = map[LockBackend]struct{}{
	NoLock:    {},
	RedisLock: {},
}
