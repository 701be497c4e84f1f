package contract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/huangsam/shellcache/schema"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

// Default values for configuration.
const (
	DefaultListen        = ":8080"
	DefaultAppName       = "shellcache"
	DefaultCacheVersion  = "v1"
	DefaultShellPath     = "/index.html"
	DefaultFetchTimeout  = 30 * time.Second
	DefaultControlPrefix = "/__shellcache"
	DefaultServer        = "http://localhost:8080"
)

// DefaultManifest is the precache manifest used when none is configured.
var DefaultManifest = []string{"/", "/index.html", "/manifest.json", "/logo.png"}

// DefaultExcludes are the path markers that bypass the cache.
var DefaultExcludes = []string{"analytics"}

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Config holds the runtime configuration.
// This struct remains the "final, validated" config.
type Config struct {
	Origin     *url.URL // nil when not configured
	OriginHost string
	Listen     string

	AppName       string
	CacheVersion  string
	Manifest      []string
	ShellPath     string
	Excludes      []string
	SkipWaiting   bool
	FetchTimeout  time.Duration
	ControlPrefix string

	UpdateSchedule string

	CacheBackend   schema.DatabaseBackend
	CacheDBConnect string // Please use env var as this is plaintext

	LogLevel   string
	Output     schema.OutputMode
	OutputFile string
	Width      int // Terminal width override (0 = auto-detect)
	Server     string
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Fields from rootCmd.PersistentFlags() ---
	Origin         string   `mapstructure:"origin"`
	AppName        string   `mapstructure:"app-name"`
	CacheVersion   string   `mapstructure:"cache-version"`
	Manifest       []string `mapstructure:"manifest"`
	ShellPath      string   `mapstructure:"shell-path"`
	Exclude        []string `mapstructure:"exclude"`
	SkipWaiting    string   `mapstructure:"skip-waiting"`
	FetchTimeout   string   `mapstructure:"fetch-timeout"`
	CacheBackend   string   `mapstructure:"cache-backend"`
	CacheDBConnect string   `mapstructure:"cache-db-connect"`
	LogLevel       string   `mapstructure:"log-level"`
	Output         string   `mapstructure:"output"`
	OutputFile     string   `mapstructure:"output-file"`
	Width          int      `mapstructure:"width"`

	// --- Fields from serveCmd.Flags() ---
	Listen         string `mapstructure:"listen"`
	ControlPrefix  string `mapstructure:"control-prefix"`
	UpdateSchedule string `mapstructure:"update-schedule"`

	// --- Fields from messageCmd.Flags() ---
	Server string `mapstructure:"server"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Origin != nil {
		u := *c.Origin
		clone.Origin = &u
	}
	clone.Manifest = append([]string(nil), c.Manifest...)
	clone.Excludes = append([]string(nil), c.Excludes...)
	return &clone
}

// RequireOrigin returns an error unless an origin was configured.
func (c *Config) RequireOrigin() error {
	if c.Origin == nil {
		return fmt.Errorf("origin is required (set --origin or SHELLCACHE_ORIGIN)")
	}
	return nil
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processOrigin(cfg, input); err != nil {
		return err
	}
	if err := processManager(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of connection strings
// for the networked backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.MemoryBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("cache-db-connect is required when using %s backend", backend)
		}
		dsn, err := mysql.ParseDSN(connStr)
		if err != nil {
			return fmt.Errorf("invalid MySQL connection string: %w", err)
		}
		if dsn.DBName == "" {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("cache-db-connect is required when using %s backend", backend)
		}
		pgCfg, err := pgx.ParseConfig(connStr)
		if err != nil {
			return fmt.Errorf("invalid PostgreSQL connection string: %w", err)
		}
		if pgCfg.Database == "" {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	case schema.RedisBackend:
		if connStr == "" {
			return fmt.Errorf("cache-db-connect is required when using %s backend", backend)
		}
		if _, err := redis.ParseURL(connStr); err != nil {
			return fmt.Errorf("invalid Redis URL: %w", err)
		}
	}
	return nil
}

// validateBackendConfigs validates the cache backend configuration.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	cfg.CacheBackend = schema.DatabaseBackend(strings.ToLower(input.CacheBackend))
	if _, ok := schema.ValidDatabaseBackends[cfg.CacheBackend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'. must be sqlite, mysql, postgresql, redis, memory", input.CacheBackend)
	}
	cfg.CacheDBConnect = input.CacheDBConnect
	return ValidateDatabaseConnectionString(cfg.CacheBackend, cfg.CacheDBConnect)
}

// validateSimpleInputs processes and validates the fields that need no cross-checks.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.UpdateSchedule = strings.TrimSpace(input.UpdateSchedule)

	cfg.Listen = input.Listen
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}

	cfg.Server = input.Server
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}

	cfg.LogLevel = strings.ToLower(input.LogLevel)
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	output := input.Output
	if output == "" {
		output = string(schema.TextOut)
	}
	cfg.Output = schema.OutputMode(strings.ToLower(output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json", input.Output)
	}

	cfg.FetchTimeout = DefaultFetchTimeout
	if input.FetchTimeout != "" {
		d, err := time.ParseDuration(input.FetchTimeout)
		if err != nil {
			return fmt.Errorf("invalid --fetch-timeout value: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("fetch-timeout must be greater than 0 (received %s)", d)
		}
		cfg.FetchTimeout = d
	}

	cfg.ControlPrefix = input.ControlPrefix
	if cfg.ControlPrefix == "" {
		cfg.ControlPrefix = DefaultControlPrefix
	}
	if !strings.HasPrefix(cfg.ControlPrefix, "/") || cfg.ControlPrefix == "/" {
		return fmt.Errorf("control-prefix must be an absolute path other than '/' (received %q)", input.ControlPrefix)
	}
	cfg.ControlPrefix = strings.TrimSuffix(cfg.ControlPrefix, "/")

	return nil
}

// processOrigin parses the origin URL when one is given.
func processOrigin(cfg *Config, input *ConfigRawInput) error {
	cfg.Origin = nil
	cfg.OriginHost = ""
	if input.Origin == "" {
		return nil
	}
	u, err := url.Parse(input.Origin)
	if err != nil {
		return fmt.Errorf("invalid origin: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("origin must be an absolute http(s) URL (received %q)", input.Origin)
	}
	cfg.Origin = u
	cfg.OriginHost = u.Host
	return nil
}

// processManager validates naming, manifest and the skip-waiting switch.
func processManager(cfg *Config, input *ConfigRawInput) error {
	cfg.AppName = input.AppName
	if cfg.AppName == "" {
		cfg.AppName = DefaultAppName
	}
	if !tokenPattern.MatchString(cfg.AppName) {
		return fmt.Errorf("invalid app-name '%s'. must match [A-Za-z0-9._-]+", cfg.AppName)
	}

	cfg.CacheVersion = input.CacheVersion
	if cfg.CacheVersion == "" {
		cfg.CacheVersion = DefaultCacheVersion
	}
	if !tokenPattern.MatchString(cfg.CacheVersion) {
		return fmt.Errorf("invalid cache-version '%s'. must match [A-Za-z0-9._-]+", cfg.CacheVersion)
	}

	manifest := flatten(input.Manifest)
	if len(input.Manifest) == 0 {
		manifest = DefaultManifest
	}
	cfg.Manifest = nil
	for _, entry := range manifest {
		if !strings.HasPrefix(entry, "/") {
			return fmt.Errorf("manifest entry %q must be a site-relative path starting with '/'", entry)
		}
		cfg.Manifest = append(cfg.Manifest, entry)
	}
	if len(cfg.Manifest) == 0 {
		return fmt.Errorf("manifest must contain at least one path")
	}

	cfg.ShellPath = input.ShellPath
	if cfg.ShellPath == "" {
		cfg.ShellPath = DefaultShellPath
	}
	if !strings.HasPrefix(cfg.ShellPath, "/") {
		return fmt.Errorf("shell-path must start with '/' (received %q)", input.ShellPath)
	}

	cfg.Excludes = flatten(input.Exclude)
	if input.Exclude == nil {
		cfg.Excludes = append([]string(nil), DefaultExcludes...)
	}

	skip := input.SkipWaiting
	if skip == "" {
		skip = "yes"
	}
	skipWaiting, err := ParseBoolString(skip)
	if err != nil {
		return fmt.Errorf("invalid --skip-waiting value: %w", err)
	}
	cfg.SkipWaiting = skipWaiting
	return nil
}

// flatten splits comma separated items that arrive inside a list.
func flatten(items []string) []string {
	var out []string
	for _, item := range items {
		out = append(out, SplitList(item)...)
	}
	return out
}
