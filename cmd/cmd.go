// Package cmd defines the command-line interface for shellcache.
package cmd

import (
	"github.com/huangsam/shellcache/internal/contract"
	"github.com/huangsam/shellcache/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(messageCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the cache subcommands to the parent cache command
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cachePartitionsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheExportCmd)
	cacheCmd.AddCommand(cacheMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("origin", "", "Base URL of the origin site (e.g., https://example.com)")
	rootCmd.PersistentFlags().String("app-name", contract.DefaultAppName, "Prefix for cache partition names")
	rootCmd.PersistentFlags().String("cache-version", contract.DefaultCacheVersion, "Cache version token; changing it rolls out a new precache")
	rootCmd.PersistentFlags().StringSlice("manifest", contract.DefaultManifest, "Comma-separated list of paths precached on install")
	rootCmd.PersistentFlags().String("shell-path", contract.DefaultShellPath, "Shell document served when offline and not cached")
	rootCmd.PersistentFlags().StringSlice("exclude", contract.DefaultExcludes, "Comma-separated list of path markers that bypass the cache")
	rootCmd.PersistentFlags().String("skip-waiting", "yes", "Activate a new version right after install (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("fetch-timeout", contract.DefaultFetchTimeout.String(), "Timeout for each origin fetch")
	rootCmd.PersistentFlags().String("control-prefix", contract.DefaultControlPrefix, "Path prefix of the control endpoints")
	rootCmd.PersistentFlags().String("cache-backend", string(schema.SQLiteBackend), "Cache backend: sqlite or mysql or postgresql or redis or memory")
	rootCmd.PersistentFlags().String("cache-db-connect", "", "Connection string for mysql/postgresql/redis, or the SQLite file path")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug or info or warn or error")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of serveCmd to Viper
	serveCmd.Flags().String("listen", contract.DefaultListen, "Address to listen on")
	serveCmd.Flags().String("update-schedule", "", "Cron expression for the cache version update check (empty disables)")
	if err := viper.BindPFlags(serveCmd.Flags()); err != nil {
		contract.LogFatal("Error binding serve flags", err)
	}

	// Bind all flags of messageCmd to Viper
	messageCmd.Flags().String("server", contract.DefaultServer, "Base URL of a running shellcache server")
	if err := viper.BindPFlags(messageCmd.Flags()); err != nil {
		contract.LogFatal("Error binding message flags", err)
	}

	// Bind all flags of cacheMigrateCmd to Viper
	cacheMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(cacheMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding cache migrate flags", err)
	}
}
