// Package config resolves CLI configuration from environment variables,
// optional YAML connection profiles, and command-line overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	pgutils "github.com/jackmaney/pg-utils"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Database connection. DatabaseURL wins when set; otherwise the
	// individual credentials (env vars or profile) are used.
	DatabaseURL string
	Username    string
	Password    string
	Hostname    string
	Database    string

	// Schema used when a table name carries no schema qualifier.
	Schema string

	// Connection profiles.
	Profile      string // name of a profile in the profiles file
	ProfilesFile string // path to the profiles YAML

	// Query behavior.
	QueryTimeout time.Duration

	// Logging.
	LogLevel slog.Level

	// Observability.
	OTelEnabled bool
	QueryLog    string // path to NDJSON query log file
}

// Overrides holds CLI flag values that override environment variables.
// Pointer fields distinguish "not set" from zero values.
type Overrides struct {
	DatabaseURL  *string
	Username     *string
	Password     *string
	Hostname     *string
	Database     *string
	Schema       *string
	Profile      *string
	ProfilesFile *string
	QueryTimeout *time.Duration
	LogLevel     *string
	OTelEnabled  bool
	QueryLog     string
}

// Load builds a Config from environment variables, applies CLI overrides,
// merges the selected connection profile (if any), then validates.
func Load(overrides Overrides) (*Config, error) {
	cfg := defaults()

	if err := loadEnvVars(cfg); err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	if err := applyProfile(cfg); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaults returns a Config populated with default values.
func defaults() *Config {
	return &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		QueryTimeout: 30 * time.Second,
		ProfilesFile: defaultProfilesFile(),
	}
}

// loadEnvVars reads all supported environment variables into cfg.
func loadEnvVars(cfg *Config) error {
	cfg.Username = os.Getenv(pgutils.DefaultEnvUsername)
	cfg.Password = os.Getenv(pgutils.DefaultEnvPassword)
	cfg.Hostname = os.Getenv(pgutils.DefaultEnvHostname)
	cfg.Database = os.Getenv(pgutils.DefaultEnvDatabase)

	cfg.Schema = os.Getenv("PGUTILS_SCHEMA")
	cfg.Profile = os.Getenv("PGUTILS_PROFILE")
	if v := os.Getenv("PGUTILS_PROFILES_FILE"); v != "" {
		cfg.ProfilesFile = v
	}

	if v := os.Getenv("QUERY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid QUERY_TIMEOUT value %q: %w", v, err)
		}
		cfg.QueryTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}

	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid OTEL_ENABLED value %q: %w", v, err)
		}
		cfg.OTelEnabled = b
	}

	cfg.QueryLog = os.Getenv("PGUTILS_QUERY_LOG")

	return nil
}

// applyOverrides applies CLI flag values on top of the env-loaded config.
func applyOverrides(cfg *Config, o Overrides) error {
	if o.DatabaseURL != nil {
		cfg.DatabaseURL = *o.DatabaseURL
	}
	if o.Username != nil {
		cfg.Username = *o.Username
	}
	if o.Password != nil {
		cfg.Password = *o.Password
	}
	if o.Hostname != nil {
		cfg.Hostname = *o.Hostname
	}
	if o.Database != nil {
		cfg.Database = *o.Database
	}
	if o.Schema != nil {
		cfg.Schema = *o.Schema
	}
	if o.Profile != nil {
		cfg.Profile = *o.Profile
	}
	if o.ProfilesFile != nil {
		cfg.ProfilesFile = *o.ProfilesFile
	}
	if o.QueryTimeout != nil {
		if *o.QueryTimeout <= 0 {
			return fmt.Errorf("invalid --query-timeout value: must be positive")
		}
		cfg.QueryTimeout = *o.QueryTimeout
	}
	if o.LogLevel != nil {
		level, err := parseLogLevel(*o.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}

	cfg.OTelEnabled = cfg.OTelEnabled || o.OTelEnabled
	if o.QueryLog != "" {
		cfg.QueryLog = o.QueryLog
	}

	return nil
}

// profile is one named entry in the profiles YAML file.
type profile struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Hostname string `yaml:"hostname"`
	Database string `yaml:"database"`
}

// applyProfile merges the selected named profile into cfg. Profile fields
// override credentials drawn from env vars; the file is only read when a
// profile is selected.
func applyProfile(cfg *Config) error {
	if cfg.Profile == "" {
		return nil
	}

	data, err := os.ReadFile(cfg.ProfilesFile)
	if err != nil {
		return fmt.Errorf("reading profiles file %s: %w", cfg.ProfilesFile, err)
	}

	var profiles map[string]profile
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return fmt.Errorf("parsing profiles file %s: %w", cfg.ProfilesFile, err)
	}

	p, ok := profiles[cfg.Profile]
	if !ok {
		return fmt.Errorf("profile %q not found in %s", cfg.Profile, cfg.ProfilesFile)
	}

	if p.Username != "" {
		cfg.Username = p.Username
	}
	if p.Password != "" {
		cfg.Password = p.Password
	}
	if p.Hostname != "" {
		cfg.Hostname = p.Hostname
	}
	if p.Database != "" {
		cfg.Database = p.Database
	}

	return nil
}

// validate checks cross-field constraints on the final config.
func validate(cfg *Config) error {
	if cfg.QueryTimeout <= 0 {
		return fmt.Errorf("QUERY_TIMEOUT must be positive, got %s", cfg.QueryTimeout)
	}

	if cfg.DatabaseURL == "" {
		if cfg.Username == "" || cfg.Hostname == "" || cfg.Database == "" {
			return fmt.Errorf("database connection is not configured: set DATABASE_URL, " +
				"the pg_username/pg_hostname/pg_database env vars, or select a profile")
		}
	}

	return nil
}

// Credentials converts the connection fields into library credentials.
func (c *Config) Credentials() pgutils.Credentials {
	return pgutils.Credentials{
		Username: c.Username,
		Password: c.Password,
		Hostname: c.Hostname,
		Database: c.Database,
	}
}

// defaultProfilesFile is ~/.pg-utils/profiles.yaml, or empty when the home
// directory cannot be determined.
func defaultProfilesFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".pg-utils", "profiles.yaml")
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q: must be debug, info, warn, or error", s)
	}
}
