package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Cache  CacheConfig  `yaml:"cache" mapstructure:"cache"`
	Remote RemoteConfig `yaml:"remote" mapstructure:"remote"`
	Draft  DraftConfig  `yaml:"draft" mapstructure:"draft"`
	Tax    TaxConfig    `yaml:"tax" mapstructure:"tax"`
	Ingest IngestConfig `yaml:"ingest" mapstructure:"ingest"`
	Audit  AuditConfig  `yaml:"audit" mapstructure:"audit"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the server-side draft repository.
type StoreConfig struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig tunes the Postgres connection pool.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// CacheConfig configures the client-side local draft cache.
type CacheConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	Path          string `yaml:"path" mapstructure:"path"`
	MaxBytes      int64  `yaml:"max_bytes" mapstructure:"max_bytes"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix" mapstructure:"redis_prefix"`
}

// RemoteConfig configures the client for the remote draft store.
type RemoteConfig struct {
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Token       string        `yaml:"token" mapstructure:"token"`
	TimeoutSecs int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Breaker     BreakerConfig `yaml:"breaker" mapstructure:"breaker"`
}

// Timeout returns the per-request timeout.
func (r RemoteConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSecs) * time.Second
}

// BreakerConfig configures the remote circuit breaker.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	CooldownSecs     int `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// DraftConfig identifies whose drafts the CLI works on.
type DraftConfig struct {
	OwnerID string `yaml:"owner_id" mapstructure:"owner_id"`
}

// TaxConfig configures regime tables and form rules.
type TaxConfig struct {
	RegimesPath              string `yaml:"regimes_path" mapstructure:"regimes_path"`
	PresumptiveTurnoverLimit string `yaml:"presumptive_turnover_limit" mapstructure:"presumptive_turnover_limit"`
}

// IngestConfig configures fact record ingestion.
type IngestConfig struct {
	SchemaConstraint string `yaml:"schema_constraint" mapstructure:"schema_constraint"`
}

// AuditConfig configures the audit event pipeline.
type AuditConfig struct {
	BufferSize int `yaml:"buffer_size" mapstructure:"buffer_size"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RateLimit      float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FILING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "filing.db")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.path", "filing-cache.db")
	v.SetDefault("cache.max_bytes", 5<<20)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_prefix", "filing-assistant:")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("remote.base_url", "http://localhost:8080")
	v.SetDefault("remote.timeout_secs", 10)
	v.SetDefault("remote.breaker.failure_threshold", 3)
	v.SetDefault("remote.breaker.cooldown_secs", 15)
	v.SetDefault("draft.owner_id", "")
	v.SetDefault("remote.token", "")
	v.SetDefault("tax.regimes_path", "")
	v.SetDefault("tax.presumptive_turnover_limit", "20000000")
	v.SetDefault("ingest.schema_constraint", "^1")
	v.SetDefault("audit.buffer_size", 256)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode needs. Modes are "serve",
// "draft", "compute" and "migrate". All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateTax()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server.rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateBurst <= 0 {
			errs = append(errs, "server.rate_burst must be > 0 when rate_limit is set")
		}
	case "migrate":
		errs = append(errs, c.validateStore()...)
	case "draft":
		if c.Draft.OwnerID == "" {
			errs = append(errs, "draft.owner_id is required")
		}
		if c.Remote.BaseURL == "" {
			errs = append(errs, "remote.base_url is required")
		}
		if c.Remote.TimeoutSecs <= 0 {
			errs = append(errs, "remote.timeout_secs must be > 0")
		}
		if c.Remote.Breaker.FailureThreshold < 1 {
			errs = append(errs, "remote.breaker.failure_threshold must be >= 1")
		}
		switch c.Cache.Driver {
		case "memory":
		case "sqlite":
			if c.Cache.Path == "" {
				errs = append(errs, "cache.path is required for the sqlite cache")
			}
		case "redis":
			if c.Cache.RedisAddr == "" {
				errs = append(errs, "cache.redis_addr is required for the redis cache")
			}
		default:
			errs = append(errs, fmt.Sprintf("cache.driver %q must be memory, sqlite or redis", c.Cache.Driver))
		}
		if c.Cache.MaxBytes < 0 {
			errs = append(errs, "cache.max_bytes must be >= 0")
		}
	case "compute":
		errs = append(errs, c.validateTax()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	return errs
}

func (c *Config) validateTax() []string {
	if c.Tax.PresumptiveTurnoverLimit == "" {
		return nil
	}
	limit, err := decimal.NewFromString(c.Tax.PresumptiveTurnoverLimit)
	if err != nil || limit.IsNegative() {
		return []string{fmt.Sprintf("tax.presumptive_turnover_limit %q must be a non-negative amount", c.Tax.PresumptiveTurnoverLimit)}
	}
	return nil
}

// TurnoverLimit returns the configured presumptive turnover limit, or zero
// when unset so the form determiner applies its default.
func (t TaxConfig) TurnoverLimit() decimal.Decimal {
	limit, err := decimal.NewFromString(t.PresumptiveTurnoverLimit)
	if err != nil {
		return decimal.Zero
	}
	return limit
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
