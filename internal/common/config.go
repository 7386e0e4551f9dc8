package common

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Fusion   FusionConfig
	Layout   LayoutConfig
	Retry    RetryConfig
	Breaker  BreakerConfigs
	Cache    CacheConfig
	Vision   VisionConfig
	Pipeline PipelineConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	SQLitePath       string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// FusionConfig holds the confidence-fusion weights and acceptance threshold.
type FusionConfig struct {
	LayoutWeight    float64
	OCRWeight       float64
	PatternWeight   float64
	AcceptThreshold float64
}

// LayoutConfig holds the column/gap segmentation parameters.
type LayoutConfig struct {
	MinGapWidth     float64 // minimum width of a qualifying gap band, px
	MinGapHeightPct float64 // fraction of page height that must be text-free
}

// RetryConfig holds the persistence retry policy.
type RetryConfig struct {
	MaxAttempts int
	Backoff     time.Duration
}

// BreakerConfig holds one circuit breaker's thresholds.
type BreakerConfig struct {
	WindowSize       int
	FailureRate      float64
	SlowRate         float64
	SlowCallDuration time.Duration
	Cooldown         time.Duration
	HalfOpenCalls    int
}

// BreakerConfigs groups the two independently configured breakers.
type BreakerConfigs struct {
	Primary  BreakerConfig
	Upstream BreakerConfig
}

// CacheConfig holds the result cache settings.
type CacheConfig struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

// VisionConfig holds the description-generator client settings.
type VisionConfig struct {
	Model          string
	APIKey         string
	BaseURL        string
	Timeout        time.Duration
	RequestsPerSec float64
}

// PipelineConfig holds batch processing settings.
type PipelineConfig struct {
	MaxConcurrentJobs int
}

// LoadConfig loads configuration from the config file (if any) and
// SHEETWISE_* environment variables, falling back to defaults.
func LoadConfig() *Config {
	v := viper.GetViper()
	setDefaults(v)
	v.SetEnvPrefix("SHEETWISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{
		Database: DatabaseConfig{
			DSN:              v.GetString("database.dsn"),
			SQLitePath:       v.GetString("database.sqlite_path"),
			MaxConns:         v.GetInt32("database.max_conns"),
			MinConns:         v.GetInt32("database.min_conns"),
			MaxConnLifetime:  v.GetDuration("database.max_conn_lifetime"),
			MaxConnIdleTime:  v.GetDuration("database.max_conn_idle_time"),
			DialTimeout:      v.GetDuration("database.dial_timeout"),
			StatementTimeout: v.GetDuration("database.statement_timeout"),
		},
		Fusion: FusionConfig{
			LayoutWeight:    v.GetFloat64("fusion.layout_weight"),
			OCRWeight:       v.GetFloat64("fusion.ocr_weight"),
			PatternWeight:   v.GetFloat64("fusion.pattern_weight"),
			AcceptThreshold: v.GetFloat64("fusion.accept_threshold"),
		},
		Layout: LayoutConfig{
			MinGapWidth:     v.GetFloat64("layout.min_gap_width"),
			MinGapHeightPct: v.GetFloat64("layout.min_gap_height_pct"),
		},
		Retry: RetryConfig{
			MaxAttempts: v.GetInt("retry.max_attempts"),
			Backoff:     v.GetDuration("retry.backoff"),
		},
		Breaker: BreakerConfigs{
			Primary: BreakerConfig{
				WindowSize:       v.GetInt("breaker.primary.window_size"),
				FailureRate:      v.GetFloat64("breaker.primary.failure_rate"),
				SlowRate:         v.GetFloat64("breaker.primary.slow_rate"),
				SlowCallDuration: v.GetDuration("breaker.primary.slow_call_duration"),
				Cooldown:         v.GetDuration("breaker.primary.cooldown"),
				HalfOpenCalls:    v.GetInt("breaker.primary.half_open_calls"),
			},
			Upstream: BreakerConfig{
				WindowSize:       v.GetInt("breaker.upstream.window_size"),
				FailureRate:      v.GetFloat64("breaker.upstream.failure_rate"),
				SlowRate:         v.GetFloat64("breaker.upstream.slow_rate"),
				SlowCallDuration: v.GetDuration("breaker.upstream.slow_call_duration"),
				Cooldown:         v.GetDuration("breaker.upstream.cooldown"),
				HalfOpenCalls:    v.GetInt("breaker.upstream.half_open_calls"),
			},
		},
		Cache: CacheConfig{
			TTL:             v.GetDuration("cache.ttl"),
			CleanupInterval: v.GetDuration("cache.cleanup_interval"),
		},
		Vision: VisionConfig{
			Model:          v.GetString("vision.model"),
			APIKey:         v.GetString("vision.api_key"),
			BaseURL:        v.GetString("vision.base_url"),
			Timeout:        v.GetDuration("vision.timeout"),
			RequestsPerSec: v.GetFloat64("vision.requests_per_sec"),
		},
		Pipeline: PipelineConfig{
			MaxConcurrentJobs: v.GetInt("pipeline.max_concurrent_jobs"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.sqlite_path", "")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("database.max_conn_idle_time", 5*time.Minute)
	v.SetDefault("database.dial_timeout", 3*time.Second)
	v.SetDefault("database.statement_timeout", time.Duration(0))

	v.SetDefault("fusion.layout_weight", 0.5)
	v.SetDefault("fusion.ocr_weight", 0.3)
	v.SetDefault("fusion.pattern_weight", 0.2)
	v.SetDefault("fusion.accept_threshold", 0.70)

	v.SetDefault("layout.min_gap_width", 30.0)
	v.SetDefault("layout.min_gap_height_pct", 0.55)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.backoff", 500*time.Millisecond)

	v.SetDefault("breaker.primary.window_size", 10)
	v.SetDefault("breaker.primary.failure_rate", 0.70)
	v.SetDefault("breaker.primary.slow_rate", 0.80)
	v.SetDefault("breaker.primary.slow_call_duration", 10*time.Second)
	v.SetDefault("breaker.primary.cooldown", 30*time.Second)
	v.SetDefault("breaker.primary.half_open_calls", 3)

	v.SetDefault("breaker.upstream.window_size", 10)
	v.SetDefault("breaker.upstream.failure_rate", 0.60)
	v.SetDefault("breaker.upstream.slow_rate", 1.0)
	v.SetDefault("breaker.upstream.slow_call_duration", 30*time.Second)
	v.SetDefault("breaker.upstream.cooldown", 60*time.Second)
	v.SetDefault("breaker.upstream.half_open_calls", 3)

	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.cleanup_interval", 10*time.Minute)

	v.SetDefault("vision.model", "gpt-4o-mini")
	v.SetDefault("vision.api_key", "")
	v.SetDefault("vision.base_url", "")
	v.SetDefault("vision.timeout", 30*time.Second)
	v.SetDefault("vision.requests_per_sec", 2.0)

	v.SetDefault("pipeline.max_concurrent_jobs", 4)
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" && c.Database.SQLitePath == "" {
		return NewAppError("CONFIG_ERROR", "one of database.dsn or database.sqlite_path is required", ErrInvalidInput)
	}
	if c.Fusion.AcceptThreshold < 0 || c.Fusion.AcceptThreshold > 1 {
		return NewAppError("CONFIG_ERROR", "fusion.accept_threshold must be in [0,1]", ErrInvalidInput)
	}
	if c.Retry.MaxAttempts < 1 {
		return NewAppError("CONFIG_ERROR", "retry.max_attempts must be >= 1", ErrInvalidInput)
	}
	if c.Breaker.Primary.WindowSize < 1 || c.Breaker.Upstream.WindowSize < 1 {
		return NewAppError("CONFIG_ERROR", "breaker window_size must be >= 1", ErrInvalidInput)
	}
	return nil
}
