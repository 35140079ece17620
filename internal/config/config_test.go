package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearConnEnv blanks every env var that feeds the connection fields so
// tests do not pick up the host environment.
func clearConnEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATABASE_URL", "pg_username", "pg_password", "pg_hostname", "pg_database",
		"PGUTILS_SCHEMA", "PGUTILS_PROFILE", "PGUTILS_PROFILES_FILE",
		"QUERY_TIMEOUT", "LOG_LEVEL", "OTEL_ENABLED", "PGUTILS_QUERY_LOG",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_DatabaseURL(t *testing.T) {
	clearConnEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/test")

	cfg, err := Load(Overrides{})
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoad_CredentialEnvVars(t *testing.T) {
	clearConnEnv(t)
	t.Setenv("pg_username", "alice")
	t.Setenv("pg_password", "secret")
	t.Setenv("pg_hostname", "db.example.com")
	t.Setenv("pg_database", "analytics")

	cfg, err := Load(Overrides{})
	require.NoError(t, err)

	creds := cfg.Credentials()
	assert.Equal(t, "alice", creds.Username)
	assert.Equal(t, "secret", creds.Password)
	assert.Equal(t, "db.example.com", creds.Hostname)
	assert.Equal(t, "analytics", creds.Database)
}

func TestLoad_Unconfigured(t *testing.T) {
	clearConnEnv(t)

	_, err := Load(Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestLoad_EnvSettings(t *testing.T) {
	clearConnEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("QUERY_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("PGUTILS_SCHEMA", "staging")
	t.Setenv("PGUTILS_QUERY_LOG", "/tmp/queries.ndjson")

	cfg, err := Load(Overrides{})
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.QueryTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.OTelEnabled)
	assert.Equal(t, "staging", cfg.Schema)
	assert.Equal(t, "/tmp/queries.ndjson", cfg.QueryLog)
}

func TestLoad_Overrides(t *testing.T) {
	clearConnEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("LOG_LEVEL", "warn")

	url := "postgres://override/db"
	level := "error"
	timeout := 2 * time.Second
	cfg, err := Load(Overrides{
		DatabaseURL:  &url,
		LogLevel:     &level,
		QueryTimeout: &timeout,
		OTelEnabled:  true,
		QueryLog:     "/tmp/q.ndjson",
	})
	require.NoError(t, err)

	assert.Equal(t, "postgres://override/db", cfg.DatabaseURL)
	assert.Equal(t, slog.LevelError, cfg.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.QueryTimeout)
	assert.True(t, cfg.OTelEnabled)
	assert.Equal(t, "/tmp/q.ndjson", cfg.QueryLog)
}

func TestLoad_Profile(t *testing.T) {
	clearConnEnv(t)
	t.Setenv("pg_username", "env-user")

	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.yaml")
	data := `
prod:
  username: alice
  password: secret
  hostname: prod.example.com
  database: sales
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	t.Setenv("PGUTILS_PROFILE", "prod")
	t.Setenv("PGUTILS_PROFILES_FILE", path)

	cfg, err := Load(Overrides{})
	require.NoError(t, err)

	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, "prod.example.com", cfg.Hostname)
	assert.Equal(t, "sales", cfg.Database)
}

func TestLoad_ProfileNotFound(t *testing.T) {
	clearConnEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dev:\n  database: d\n"), 0o600))

	t.Setenv("PGUTILS_PROFILE", "prod")
	t.Setenv("PGUTILS_PROFILES_FILE", path)

	_, err := Load(Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `profile "prod" not found`)
}

func TestLoad_ProfileFileMissing(t *testing.T) {
	clearConnEnv(t)
	t.Setenv("PGUTILS_PROFILE", "prod")
	t.Setenv("PGUTILS_PROFILES_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load(Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading profiles file")
}

func TestLoad_InvalidQueryTimeout(t *testing.T) {
	clearConnEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("QUERY_TIMEOUT", "not-a-duration")

	_, err := Load(Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QUERY_TIMEOUT")
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	clearConnEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("LOG_LEVEL", "loud")

	_, err := Load(Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_LEVEL")
}

func TestLoad_InvalidOTelEnabled(t *testing.T) {
	clearConnEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("OTEL_ENABLED", "nope")

	_, err := Load(Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OTEL_ENABLED")
}
