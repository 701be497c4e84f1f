package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/huangsam/shellcache/internal/contract"
	"github.com/huangsam/shellcache/internal/iocache"
	"github.com/huangsam/shellcache/schema"
	"github.com/sirupsen/logrus"
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

// cacheManager is the global store manager instance.
var cacheManager contract.CacheManager

// logger is built from --log-level once the config is validated.
var logger = logrus.StandardLogger()

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:   "shellcache",
	Short: "Offline-first caching proxy for a same-origin web site.",
	Long: `Shellcache sits in front of a web site and keeps it usable offline.

It precaches the app shell for each cache version, serves repeat requests
stale-while-revalidate and falls back to the shell when the origin is gone.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	setConfigSource()

	// Set environment variable prefix
	viper.SetEnvPrefix("SHELLCACHE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // Read in environment variables that match

	// Set defaults in Viper
	viper.SetDefault("app-name", contract.DefaultAppName)
	viper.SetDefault("cache-version", contract.DefaultCacheVersion)
	viper.SetDefault("shell-path", contract.DefaultShellPath)
	viper.SetDefault("skip-waiting", "yes")
	viper.SetDefault("fetch-timeout", contract.DefaultFetchTimeout.String())
	viper.SetDefault("output", schema.TextOut)
	viper.SetDefault("cache-backend", schema.SQLiteBackend)
	viper.SetDefault("cache-db-connect", "")
	viper.SetDefault("log-level", "info")
	viper.SetDefault("control-prefix", contract.DefaultControlPrefix)
}

// setConfigSource points viper at --config or the default search paths.
func setConfigSource() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		return
	}
	viper.SetConfigName(".shellcache") // Name of config file (without extension)
	viper.SetConfigType("yaml")        // We'll use YAML format
	viper.AddConfigPath(".")           // Look in the current directory
	viper.AddConfigPath("$HOME")       // Look in the home directory
}

// loadConfigFile reads the config file if one exists.
func loadConfigFile() error {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, which is fine; we'll use defaults/env/flags.
	}
	return nil
}

// loadConfig merges defaults, file, env and flags into a validated config.
func loadConfig() (*contract.Config, error) {
	if err := loadConfigFile(); err != nil {
		return nil, err
	}
	raw := &contract.ConfigRawInput{}
	if err := viper.Unmarshal(raw); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config: %w", err)
	}
	next := &contract.Config{}
	if err := contract.ProcessAndValidate(next, raw); err != nil {
		return nil, err
	}
	*input = *raw
	return next, nil
}

// configSetup validates the config without touching the store.
func configSetup(_ *cobra.Command, _ []string) error {
	loaded, err := loadConfig()
	if err != nil {
		return err
	}
	*cfg = *loaded
	logger = contract.NewLogger(cfg.LogLevel)
	return nil
}

// sharedSetup validates the config and opens the configured store.
func sharedSetup(_ context.Context, cmd *cobra.Command, args []string) error {
	if err := configSetup(cmd, args); err != nil {
		return err
	}
	if err := iocache.InitStore(cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
		return fmt.Errorf("failed to initialize cache store: %w", err)
	}
	return nil
}

// sharedSetupWrapper wraps sharedSetup to provide context for Cobra's PreRunE.
func sharedSetupWrapper(cmd *cobra.Command, args []string) error {
	return sharedSetup(rootCtx, cmd, args)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetCacheManager sets the global cache manager.
func SetCacheManager(mgr contract.CacheManager) {
	cacheManager = mgr
}

// store returns the store opened by sharedSetup.
func store() (contract.CacheStore, error) {
	if cacheManager == nil || cacheManager.GetStore() == nil {
		return nil, errors.New("cache store is not initialized")
	}
	return cacheManager.GetStore(), nil
}
