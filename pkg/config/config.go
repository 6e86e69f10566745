// Package config loads and validates the datastash configuration.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (DATASTASH_*)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/datastash/datastash/internal/bytesize"
	"github.com/datastash/datastash/internal/logger"
	s3origin "github.com/datastash/datastash/pkg/origin/s3"
)

// Config is the full datastash configuration.
type Config struct {
	// Logging controls log output behavior.
	Logging logger.Config `mapstructure:"logging" yaml:"logging"`

	// Storage configures the partitioned file area and cache policy.
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Query configures result caching for the execution engine.
	Query QueryConfig `mapstructure:"query" yaml:"query"`

	// Sync configures the background sync coordinator.
	Sync SyncConfig `mapstructure:"sync" yaml:"sync"`

	// Origin configures the remote dataset source.
	Origin OriginConfig `mapstructure:"origin" yaml:"origin"`

	// API configures the HTTP control surface.
	API APIConfig `mapstructure:"api" yaml:"api"`

	// Metrics enables the Prometheus registry and /metrics endpoint.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`
}

// StorageConfig configures the file area and cache policy.
type StorageConfig struct {
	// Root is the private directory holding the three partitions.
	Root string `mapstructure:"root" yaml:"root" validate:"required"`

	// CacheQuota bounds the cache partition; 0 disables LRU eviction.
	CacheQuota bytesize.ByteSize `mapstructure:"cache_quota" yaml:"cache_quota"`

	// DefaultTTL applies to cache entries stored without an explicit TTL;
	// 0 means they never auto-expire.
	DefaultTTL time.Duration `mapstructure:"default_ttl" yaml:"default_ttl"`
}

// QueryConfig configures query-result caching.
type QueryConfig struct {
	// ResultTTL bounds cached query results; 0 defers to the storage
	// default TTL.
	ResultTTL time.Duration `mapstructure:"result_ttl" yaml:"result_ttl"`
}

// SyncConfig configures the sync coordinator.
type SyncConfig struct {
	// QueueSize bounds the pending task queue.
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size" validate:"gt=0"`

	// CompletedLogSize bounds the retained terminal-task log.
	CompletedLogSize int `mapstructure:"completed_log_size" yaml:"completed_log_size" validate:"gt=0"`

	// JournalDir persists pending tasks across restarts. Empty disables
	// the journal.
	JournalDir string `mapstructure:"journal_dir" yaml:"journal_dir"`
}

// OriginConfig configures the remote dataset source.
type OriginConfig struct {
	// Enabled switches dataset refresh/revalidation on.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// S3 configures the S3 origin. Required when enabled.
	S3 s3origin.Config `mapstructure:"s3" yaml:"s3"`
}

// APIConfig configures the HTTP control surface.
type APIConfig struct {
	// Enabled switches the HTTP server on.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP listen port.
	Port int `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		Logging: logger.Config{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
		Storage: StorageConfig{
			Root:       defaultRoot(),
			CacheQuota: 256 * bytesize.MiB,
			DefaultTTL: 24 * time.Hour,
		},
		Query: QueryConfig{
			ResultTTL: time.Hour,
		},
		Sync: SyncConfig{
			QueueSize:        256,
			CompletedLogSize: 128,
		},
		API: APIConfig{
			Enabled:      true,
			Port:         8650,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		ShutdownTimeout: 30 * time.Second,
	}
}

// defaultRoot places the storage area under the user data directory.
func defaultRoot() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "datastash")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "datastash-data"
	}
	return filepath.Join(home, ".local", "share", "datastash")
}

// Load reads the configuration from the given file (optional) and the
// environment, applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v, Default())

	v.SetEnvPrefix("DATASTASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers the default values so env-only keys resolve.
func setDefaults(v *viper.Viper, def Config) {
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.output", def.Logging.Output)
	v.SetDefault("storage.root", def.Storage.Root)
	v.SetDefault("storage.cache_quota", def.Storage.CacheQuota.Uint64())
	v.SetDefault("storage.default_ttl", def.Storage.DefaultTTL)
	v.SetDefault("query.result_ttl", def.Query.ResultTTL)
	v.SetDefault("sync.queue_size", def.Sync.QueueSize)
	v.SetDefault("sync.completed_log_size", def.Sync.CompletedLogSize)
	v.SetDefault("sync.journal_dir", def.Sync.JournalDir)
	v.SetDefault("origin.enabled", def.Origin.Enabled)
	v.SetDefault("api.enabled", def.API.Enabled)
	v.SetDefault("api.port", def.API.Port)
	v.SetDefault("api.read_timeout", def.API.ReadTimeout)
	v.SetDefault("api.write_timeout", def.API.WriteTimeout)
	v.SetDefault("metrics.enabled", def.Metrics.Enabled)
	v.SetDefault("shutdown_timeout", def.ShutdownTimeout)
}

// Validate checks structural constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Origin.Enabled && c.Origin.S3.Bucket == "" {
		return fmt.Errorf("invalid configuration: origin.s3.bucket is required when origin is enabled")
	}
	return nil
}
