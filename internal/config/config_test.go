package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"CONFIG_FILE", "PORT", "LOG_LEVEL", "FRED_API_KEY", "FRED_BASE_URL", "PROVIDER_MAX_RETRIES",
	"HTTP_TIMEOUT", "STORE_DRIVER", "DATABASE_URL", "SQLITE_PATH", "STORE_MAX_HISTORY",
	"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
	"RETENTION_MAX_AGE", "RETENTION_INTERVAL", "METRICS_ENABLED",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, 10*time.Second, cfg.FRED.HTTPTimeout)
	assert.Equal(t, 3, cfg.FRED.MaxRetries)
	assert.Equal(t, 10000, cfg.Store.MaxHistory)
	assert.Equal(t, 24*time.Hour, cfg.Retention.Interval)
	assert.Zero(t, cfg.Retention.MaxAge)
	assert.True(t, cfg.MetricsEnabled)

	assert.EqualError(t, cfg.RequireAPIKey(), "FRED_API_KEY environment variable is required")
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("FRED_API_KEY", "secret")
	t.Setenv("STORE_DRIVER", " SQLite ")
	t.Setenv("HTTP_TIMEOUT", "3s")
	t.Setenv("RETENTION_MAX_AGE", "720h")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("PROVIDER_MAX_RETRIES", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.NoError(t, cfg.RequireAPIKey())
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
	assert.Equal(t, 3*time.Second, cfg.FRED.HTTPTimeout)
	assert.Equal(t, 720*time.Hour, cfg.Retention.MaxAge)
	assert.False(t, cfg.MetricsEnabled)
	assert.Equal(t, 3, cfg.FRED.MaxRetries, "unparseable ints keep the default")
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "mongodb")
	_, err := Load()
	assert.ErrorContains(t, err, "invalid STORE_DRIVER")

	clearEnv(t)
	t.Setenv("HTTP_TIMEOUT", "soon")
	_, err = Load()
	assert.ErrorContains(t, err, "invalid HTTP_TIMEOUT")

	clearEnv(t)
	t.Setenv("METRICS_ENABLED", "maybe")
	_, err = Load()
	assert.ErrorContains(t, err, "invalid METRICS_ENABLED")
}

func TestLoadYAMLFileWithEnvOverride(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "adapter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9090"
fred:
  api_key: from-file
  max_retries: 5
store:
  driver: postgres
  host: db.internal
  name: fred
retention:
  max_age: 48h
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "from-file", cfg.FRED.APIKey)
	assert.Equal(t, 5, cfg.FRED.MaxRetries)
	assert.Equal(t, StorePostgres, cfg.Store.Driver)
	assert.Equal(t, 48*time.Hour, cfg.Retention.MaxAge)
	assert.Equal(t, 24*time.Hour, cfg.Retention.Interval)
	assert.Equal(t, "host=db.internal port=5432 user=postgres password= dbname=fred sslmode=disable TimeZone=UTC",
		cfg.Store.PostgresDSN())
}

func TestLoadMissingYAMLFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.ErrorContains(t, err, "read config")
}

func TestPostgresDSNPrefersURL(t *testing.T) {
	c := StoreConfig{DatabaseURL: "postgres://u:p@h:5432/db", Host: "ignored"}
	assert.Equal(t, "postgres://u:p@h:5432/db", c.PostgresDSN())
}
