package schema

// Custom string types for type safety.
type (
	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the storage backend for cache partitions.
	DatabaseBackend string

	// PartitionKind classifies a cache partition by its name.
	PartitionKind string

	// MessageType identifies a control message sent to a worker.
	MessageType string

	// WorkerState is the lifecycle state of a manager version.
	WorkerState string

	// ResponseType mirrors the fetch response type of a stored response.
	ResponseType string

	// Source records where a served response came from.
	Source string
)

// All output modes supported.
const (
	CSVOut  OutputMode = "csv"
	TextOut OutputMode = "text" // default
	JSONOut OutputMode = "json"
)

// All cache backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	RedisBackend      DatabaseBackend = "redis"
	MemoryBackend     DatabaseBackend = "memory"
)

// Partition kinds.
const (
	PrecacheKind PartitionKind = "precache"
	RuntimeKind  PartitionKind = "runtime"
	UnknownKind  PartitionKind = "unknown"
)

// Recognized control messages.
const (
	SkipWaitingMessage MessageType = "SKIP_WAITING"
	ClearCacheMessage  MessageType = "CLEAR_CACHE"
)

// Worker lifecycle states.
const (
	InstallingState WorkerState = "installing"
	WaitingState    WorkerState = "waiting"
	ActiveState     WorkerState = "active"
	RedundantState  WorkerState = "redundant"
)

// Response types.
const (
	BasicResponse  ResponseType = "basic"
	OpaqueResponse ResponseType = "opaque"
	ErrorResponse  ResponseType = "error"
)

// Response sources.
const (
	CacheSource       Source = "cache"
	NetworkSource     Source = "network"
	FallbackSource    Source = "fallback"
	PassthroughSource Source = "passthrough"
)

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:  {},
	TextOut: {},
	JSONOut: {},
}

// ValidDatabaseBackends lists all valid cache backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	RedisBackend:      {},
	MemoryBackend:     {},
}

// SQLBackends lists the backends that are served by database/sql and migrations.
var SQLBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
}
