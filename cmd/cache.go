package cmd

import (
	"fmt"

	"github.com/huangsam/shellcache/internal/contract"
	"github.com/huangsam/shellcache/internal/iocache"
	"github.com/huangsam/shellcache/internal/outwriter"
	"github.com/huangsam/shellcache/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cacheCmd focused on cache store management.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the offline cache store",
	Long: `Inspect and manage the store that holds the cache partitions.

Each cache version owns a precache partition (<app>-<version>) filled on install
and a runtime partition (<app>-runtime-<version>) grown while serving.

Supported backends: SQLite (default), MySQL, PostgreSQL, Redis, or Memory

Subcommands:
  status     - Show store statistics and connection info
  partitions - List partitions with kind, version and size
  clear      - Remove all partitions
  export     - Write entry metadata to a Parquet file
  migrate    - Run schema migrations for SQL backends

Examples:
  # Check cache status
  shellcache cache status

  # List partitions as JSON
  shellcache cache partitions --output json`,
}

// cacheStatusCmd shows cache status.
var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display store statistics and connection details",
	Long: `Show detailed information about the cache store.

Displays:
- Backend type and connection status
- Number of partitions and entries
- Newest and oldest entry timestamps
- Total stored body size and a per-partition table

Examples:
  shellcache cache status
  shellcache cache status --output csv --output-file status.csv`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		status, err := classifiedStatus()
		if err != nil {
			contract.LogFatal("Failed to get cache status", err)
		}
		if err := outwriter.NewOutWriter().WriteCacheStatus(status, cfg); err != nil {
			contract.LogFatal("Failed to write cache status", err)
		}
	},
}

// cachePartitionsCmd lists partitions.
var cachePartitionsCmd = &cobra.Command{
	Use:   "partitions",
	Short: "List cache partitions in creation order",
	Long: `List every partition with its kind (precache, runtime or unknown), the
cache version encoded in its name, entry count and stored size.

Partitions of versions other than the active one are normally deleted on
activation; leftovers show up here after a failed rollout or a rename of
--app-name.`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		status, err := classifiedStatus()
		if err != nil {
			contract.LogFatal("Failed to list partitions", err)
		}
		if err := outwriter.NewOutWriter().WritePartitions(status, cfg); err != nil {
			contract.LogFatal("Failed to write partitions", err)
		}
	},
}

// cacheClearCmd clears the cache.
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cache partitions",
	Long: `Delete every cache partition from the configured backend.

This is the offline counterpart of the CLEAR_CACHE message. A running server
keeps serving; misses are refetched from the origin.

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Deletes all rows and keeps the schema
For Redis: Deletes every key under the shellcache prefix

Examples:
  # Clear SQLite cache (default)
  shellcache cache clear

  # Clear a Redis store (set connection string via env variable)
  SHELLCACHE_CACHE_BACKEND=redis SHELLCACHE_CACHE_DB_CONNECT="redis://localhost:6379/0" shellcache cache clear`,
	PreRunE: configSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ClearStore(cfg.CacheBackend, sqliteFilePath(), cfg.CacheDBConnect); err != nil {
			contract.LogFatal("Failed to clear cache", err)
		}
		fmt.Println("Cache cleared successfully.")
	},
}

// cacheExportCmd exports entry metadata.
var cacheExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export cache entry metadata to a Parquet file",
	Long: `Write one row per stored entry to a Parquet file: partition, key, url,
status, response type, content type, body size and store time.

Bodies are not exported.

Examples:
  shellcache cache export --output-file entries.parquet`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		st, err := store()
		if err != nil {
			contract.LogFatal("Failed to open cache store", err)
		}
		if err := iocache.ExecuteExport(rootCtx, st, cfg.OutputFile); err != nil {
			contract.LogFatal("Failed to export cache entries", err)
		}
	},
}

// cacheMigrateCmd runs schema migrations.
var cacheMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run schema migrations for SQL cache backends",
	Long: `Apply or roll back the schema migrations of the SQL cache store.

Stores migrate to the latest version automatically when opened; use this to
inspect a rollout or to roll back.

Examples:
  # Migrate to latest
  shellcache cache migrate

  # Roll back everything
  shellcache cache migrate --target-version 0`,
	PreRunE: configSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if _, ok := schema.SQLBackends[cfg.CacheBackend]; !ok {
			contract.LogFatal("Failed to migrate cache", fmt.Errorf("%s backend has no schema", cfg.CacheBackend))
		}
		connStr := cfg.CacheDBConnect
		if cfg.CacheBackend == schema.SQLiteBackend {
			connStr = sqliteFilePath()
		}
		if err := iocache.MigrateStore(cfg.CacheBackend, connStr, viper.GetInt("target-version")); err != nil {
			contract.LogFatal("Failed to migrate cache", err)
		}
	},
}

// classifiedStatus returns the store status with partition kinds filled in.
func classifiedStatus() (schema.CacheStatus, error) {
	st, err := store()
	if err != nil {
		return schema.CacheStatus{}, err
	}
	status, err := st.GetStatus(rootCtx)
	if err != nil {
		return schema.CacheStatus{}, err
	}
	status.Classify(cfg.AppName)
	return status, nil
}

// sqliteFilePath is the SQLite database in use.
func sqliteFilePath() string {
	if cfg.CacheBackend == schema.SQLiteBackend && cfg.CacheDBConnect != "" {
		return cfg.CacheDBConnect
	}
	return contract.GetDBFilePath()
}
