// Package config loads service settings from defaults, an optional YAML file
// and REFUND_* environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. REFUND_SERVER_PORT.
const EnvPrefix = "REFUND"

// Archive drivers.
const (
	ArchiveNone     = "none"
	ArchiveSQLite   = "sqlite"
	ArchiveBigQuery = "bigquery"
)

// Config represents the complete service configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Calculator CalculatorConfig `mapstructure:"calculator"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Narrative  NarrativeConfig  `mapstructure:"narrative"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
}

// ServerConfig controls the HTTP listener
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// CORSOrigin is sent as Access-Control-Allow-Origin
	CORSOrigin string `mapstructure:"cors_origin"`
}

// LogConfig controls the zerolog output
type LogConfig struct {
	// Level is one of: trace, debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format is "console" or "json"
	Format string `mapstructure:"format"`
}

// CalculatorConfig controls result caching around the tax calculator
type CalculatorConfig struct {
	// CacheTTL of zero disables caching
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// CacheConfig selects the cache backend
type CacheConfig struct {
	// RedisAddr uses Redis when set, otherwise an in-process cache
	RedisAddr string `mapstructure:"redis_addr"`
}

// NarrativeConfig controls the optional AI summary
type NarrativeConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CatalogConfig locates the life-event preset catalog
type CatalogConfig struct {
	// Source is a local path or gs:// URI; empty uses the built-in catalog
	Source string `mapstructure:"source"`
}

// ArchiveConfig controls where explanation runs are recorded
type ArchiveConfig struct {
	// Driver is one of: none, sqlite, bigquery
	Driver          string        `mapstructure:"driver"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	BigQueryProject string        `mapstructure:"bigquery_project"`
	BigQueryDataset string        `mapstructure:"bigquery_dataset"`
	Retention       time.Duration `mapstructure:"retention"`
	PruneSchedule   string        `mapstructure:"prune_schedule"`
}

// RateLimitConfig throttles API requests per client
type RateLimitConfig struct {
	// RPS of zero disables rate limiting
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// JobsConfig sizes the batch job queue
type JobsConfig struct {
	BufferSize  int `mapstructure:"buffer_size"`
	Workers     int `mapstructure:"workers"`
	MaxRetries  int `mapstructure:"max_retries"`
	Concurrency int `mapstructure:"concurrency"`
	// MaxPairs caps the pairs accepted in one batch request
	MaxPairs int `mapstructure:"max_pairs"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigin:      "*",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Calculator: CalculatorConfig{
			CacheTTL: 10 * time.Minute,
		},
		Narrative: NarrativeConfig{
			Enabled: false,
			Model:   "gemini-2.5-flash",
			Timeout: 10 * time.Second,
		},
		Archive: ArchiveConfig{
			Driver:          ArchiveNone,
			SQLitePath:      "refund-explainer.db",
			BigQueryDataset: "refund_explainer",
			Retention:       30 * 24 * time.Hour,
			PruneSchedule:   "0 15 3 * * *",
		},
		RateLimit: RateLimitConfig{
			RPS:   10,
			Burst: 20,
		},
		Jobs: JobsConfig{
			BufferSize:  100,
			Workers:     2,
			MaxRetries:  0,
			Concurrency: 4,
			MaxPairs:    200,
		},
	}
}

// SetDefaults registers every key with its default so environment overrides
// are recognised even when no config file mentions them.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.cors_origin", d.Server.CORSOrigin)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("calculator.cache_ttl", d.Calculator.CacheTTL)
	v.SetDefault("cache.redis_addr", d.Cache.RedisAddr)

	v.SetDefault("narrative.enabled", d.Narrative.Enabled)
	v.SetDefault("narrative.model", d.Narrative.Model)
	v.SetDefault("narrative.timeout", d.Narrative.Timeout)

	v.SetDefault("catalog.source", d.Catalog.Source)

	v.SetDefault("archive.driver", d.Archive.Driver)
	v.SetDefault("archive.sqlite_path", d.Archive.SQLitePath)
	v.SetDefault("archive.bigquery_project", d.Archive.BigQueryProject)
	v.SetDefault("archive.bigquery_dataset", d.Archive.BigQueryDataset)
	v.SetDefault("archive.retention", d.Archive.Retention)
	v.SetDefault("archive.prune_schedule", d.Archive.PruneSchedule)

	v.SetDefault("ratelimit.rps", d.RateLimit.RPS)
	v.SetDefault("ratelimit.burst", d.RateLimit.Burst)

	v.SetDefault("jobs.buffer_size", d.Jobs.BufferSize)
	v.SetDefault("jobs.workers", d.Jobs.Workers)
	v.SetDefault("jobs.max_retries", d.Jobs.MaxRetries)
	v.SetDefault("jobs.concurrency", d.Jobs.Concurrency)
	v.SetDefault("jobs.max_pairs", d.Jobs.MaxPairs)
}

// New returns a viper instance with defaults and environment overrides wired.
// path, when not empty, names a YAML config file that must exist.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	// REFUND_ARCHIVE_SQLITE_PATH for archive.sqlite_path
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return v, nil
}

// Load reads the configuration into a Config struct and validates it
func Load(path string) (*Config, error) {
	v, err := New(path)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper decodes and validates an already prepared viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *ServerConfig) Addr() string {
	return ":" + c.Port
}
