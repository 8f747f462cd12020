package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "leadgen.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "https://places.googleapis.com/v1", cfg.Google.BaseURL)
	assert.Equal(t, 20, cfg.Google.PageSize)
	assert.InDelta(t, 5.0, cfg.Google.RateLimit, 0.001)
	assert.False(t, cfg.Discovery.Synthetic)
	assert.Equal(t, 60, cfg.Discovery.DefaultMaxResults)
	assert.Equal(t, 25, cfg.Discovery.DefaultRadiusKM)
	assert.Equal(t, 3, cfg.Crawl.MaxSubpages)
	assert.Equal(t, 512, cfg.Crawl.MaxBodyKB)
	assert.Equal(t, time.Second, cfg.Crawl.Politeness())
	assert.Equal(t, 15*time.Second, cfg.Crawl.Timeout())
	assert.Equal(t, 30*time.Minute, cfg.Crawl.CacheTTL())
	assert.Equal(t, 3, cfg.Enrich.Concurrency)
	assert.Equal(t, 30*24*time.Hour, cfg.Enrich.FreshnessWindow())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/leadgen
log:
  level: debug
  format: console
server:
  port: 9090
enrich:
  concurrency: 8
discovery:
  synthetic: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/leadgen", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Enrich.Concurrency)
	assert.True(t, cfg.Discovery.Synthetic)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Crawl.MaxSubpages)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("LEADGEN_STORE_DRIVER", "memory")
	t.Setenv("LEADGEN_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("LEADGEN_SERVER_PORT", "3000")
	t.Setenv("LEADGEN_GOOGLE_KEY", "abc")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "abc", cfg.Google.Key)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "leadgen.db"
	cfg.Google.Key = "key"
	cfg.Google.PageSize = 20
	cfg.Crawl.TimeoutSecs = 15
	cfg.Crawl.MaxSubpages = 3
	cfg.Enrich.Concurrency = 3
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateSearch_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("search"))
}

func TestValidateSearch_NoKeyRequiresSynthetic(t *testing.T) {
	cfg := validDefaults()
	cfg.Google.Key = ""

	err := cfg.Validate("search")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "google.key")

	cfg.Discovery.Synthetic = true
	assert.NoError(t, cfg.Validate("search"))
}

func TestValidateEnrich_NoKeyAllowed(t *testing.T) {
	cfg := validDefaults()
	cfg.Google.Key = ""
	assert.NoError(t, cfg.Validate("enrich"))
}

func TestValidateStoreDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	err := cfg.Validate("query")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")

	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = ""
	err = cfg.Validate("migrate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url")

	cfg.Store.Driver = "memory"
	assert.NoError(t, cfg.Validate("migrate"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	// Port is only checked for serve.
	assert.NoError(t, cfg.Validate("enrich"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Enrich.Concurrency = 0
	err := cfg.Validate("enrich")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "enrich.concurrency must be between 1 and 50")

	cfg.Enrich.Concurrency = 51
	err = cfg.Validate("enrich")
	assert.Error(t, err)

	cfg.Enrich.Concurrency = 50
	assert.NoError(t, cfg.Validate("enrich"))
}

func TestValidatePageSize(t *testing.T) {
	cfg := validDefaults()
	cfg.Google.PageSize = 21
	err := cfg.Validate("search")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "google.page_size")
}
