package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "filing.db", cfg.Store.DatabaseURL)
	assert.Equal(t, int32(10), cfg.Store.Pool.MaxConns)
	assert.Equal(t, "sqlite", cfg.Cache.Driver)
	assert.Equal(t, int64(5<<20), cfg.Cache.MaxBytes)
	assert.Equal(t, "http://localhost:8080", cfg.Remote.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Remote.Timeout())
	assert.Equal(t, 3, cfg.Remote.Breaker.FailureThreshold)
	assert.Equal(t, 15, cfg.Remote.Breaker.CooldownSecs)
	assert.Equal(t, "^1", cfg.Ingest.SchemaConstraint)
	assert.Equal(t, 256, cfg.Audit.BufferSize)
	assert.True(t, cfg.Tax.TurnoverLimit().Equal(decimal.NewFromInt(20000000)))
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 10.0, cfg.Server.RateLimit, 0.001)
	assert.Equal(t, 20, cfg.Server.RateBurst)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/filing
cache:
  driver: redis
  redis_addr: cache:6379
draft:
  owner_id: taxpayer-1
log:
  level: debug
  format: console
server:
  port: 9090
  allowed_origins:
    - https://app.example.com
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/filing", cfg.Store.DatabaseURL)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "cache:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, "taxpayer-1", cfg.Draft.OwnerID)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Remote.Breaker.FailureThreshold)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("FILING_STORE_DRIVER", "postgres")
	t.Setenv("FILING_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("FILING_SERVER_PORT", "3000")
	t.Setenv("FILING_DRAFT_OWNER_ID", "taxpayer-9")
	t.Setenv("FILING_REMOTE_BREAKER_FAILURE_THRESHOLD", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "taxpayer-9", cfg.Draft.OwnerID)
	assert.Equal(t, 5, cfg.Remote.Breaker.FailureThreshold)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
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
	cfg.Store.DatabaseURL = "filing.db"
	cfg.Cache.Driver = "sqlite"
	cfg.Cache.Path = "cache.db"
	cfg.Remote.BaseURL = "http://localhost:8080"
	cfg.Remote.TimeoutSecs = 10
	cfg.Remote.Breaker.FailureThreshold = 3
	cfg.Draft.OwnerID = "taxpayer-1"
	cfg.Tax.PresumptiveTurnoverLimit = "20000000"
	cfg.Server.Port = 8080
	cfg.Server.RateLimit = 10
	cfg.Server.RateBurst = 20
	return cfg
}

func TestValidateServe_Valid(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("serve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateServe_RateLimit(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.RateBurst = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.rate_burst")

	cfg.Server.RateLimit = 0
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Server.RateLimit = -1
	err = cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.rate_limit must be >= 0")
}

func TestValidateStore(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("migrate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver "mysql" must be sqlite or postgres`)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateDraft_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Draft.OwnerID = ""
	cfg.Remote.BaseURL = ""
	cfg.Remote.Breaker.FailureThreshold = 0

	err := cfg.Validate("draft")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "draft.owner_id is required")
	assert.Contains(t, err.Error(), "remote.base_url is required")
	assert.Contains(t, err.Error(), "remote.breaker.failure_threshold must be >= 1")
}

func TestValidateDraft_CacheDrivers(t *testing.T) {
	cfg := validDefaults()

	cfg.Cache.Driver = "memory"
	assert.NoError(t, cfg.Validate("draft"))

	cfg.Cache.Driver = "redis"
	cfg.Cache.RedisAddr = ""
	err := cfg.Validate("draft")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cache.redis_addr is required")

	cfg.Cache.Driver = "disk"
	err = cfg.Validate("draft")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cache.driver")
}

func TestValidateCompute_TurnoverLimit(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("compute"))

	cfg.Tax.PresumptiveTurnoverLimit = "a lot"
	err := cfg.Validate("compute")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "tax.presumptive_turnover_limit")
	assert.True(t, cfg.Tax.TurnoverLimit().IsZero())

	cfg.Tax.PresumptiveTurnoverLimit = "-5"
	assert.Error(t, cfg.Validate("compute"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
