// Package config is the application configuration of the contextmem tools:
// logging, the memory engine, the storage backend and the metrics listener.
package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/contextmemory/internal/context_builder"
	"github.com/lewisedginton/contextmemory/internal/context_store"
	"github.com/lewisedginton/contextmemory/internal/storage_manager"
	"github.com/lewisedginton/contextmemory/pkg/config"
	"github.com/lewisedginton/contextmemory/pkg/logger"
)

// ServiceName is attached to every log line.
const ServiceName = "contextmem"

// AppConfig holds all application configuration
type AppConfig struct {
	Common  config.CommonConfig  `yaml:"common,inline"`
	Memory  MemoryConfig         `yaml:"memory"`
	Storage StorageConfig        `yaml:"storage"`
	Metrics config.MetricsConfig `yaml:"metrics,inline"`
}

// MemoryConfig tunes the context store.
type MemoryConfig struct {
	MaxEntries         int     `env:"MEMORY_MAX_ENTRIES" yaml:"max_entries" default:"1000"`
	DefaultLimit       int     `env:"MEMORY_DEFAULT_LIMIT" yaml:"default_limit" default:"10"`
	MinImportance      float64 `env:"MEMORY_MIN_IMPORTANCE" yaml:"min_importance" default:"0.3"`
	RelevanceThreshold float64 `env:"MEMORY_RELEVANCE_THRESHOLD" yaml:"relevance_threshold" default:"0.3"`
	EvictionFraction   float64 `env:"MEMORY_EVICTION_FRACTION" yaml:"eviction_fraction" default:"0.2"`
	SnapshotKey        string  `env:"MEMORY_SNAPSHOT_KEY" yaml:"snapshot_key" default:"semantic_memory.json"`
	PreferencesKey     string  `env:"MEMORY_PREFERENCES_KEY" yaml:"preferences_key" default:"user_preferences.json"`
	DisableAutoPersist bool    `env:"MEMORY_DISABLE_AUTO_PERSIST" yaml:"disable_auto_persist"`
}

// StorageConfig holds storage/persistence configuration
type StorageConfig struct {
	Backend  string `env:"STORAGE_BACKEND" yaml:"backend" default:"local"`      // local, memory, s3, git, postgres or sqlite
	LocalDir string `env:"STORAGE_LOCAL_DIR" yaml:"local_dir" default:"./data"` // Base directory for local storage

	S3Bucket  string `env:"STORAGE_S3_BUCKET" yaml:"s3_bucket"`
	S3Prefix  string `env:"STORAGE_S3_PREFIX" yaml:"s3_prefix"`
	S3Region  string `env:"STORAGE_S3_REGION" yaml:"s3_region"`
	S3Profile string `env:"STORAGE_S3_PROFILE" yaml:"s3_profile"`

	GitPath        string `env:"STORAGE_GIT_PATH" yaml:"git_path"`
	GitAuthorName  string `env:"STORAGE_GIT_AUTHOR_NAME" yaml:"git_author_name"`
	GitAuthorEmail string `env:"STORAGE_GIT_AUTHOR_EMAIL" yaml:"git_author_email"`

	PostgresDSN      string `env:"STORAGE_POSTGRES_DSN" yaml:"postgres_dsn"`
	PostgresMaxConns int    `env:"STORAGE_POSTGRES_MAX_CONNS" yaml:"postgres_max_conns" default:"4"`

	SQLitePath string `env:"STORAGE_SQLITE_PATH" yaml:"sqlite_path" default:"./data/contextmem.db"`
}

// Validate validates the configuration and returns an error if invalid
func (c AppConfig) Validate() error {
	var result error

	if err := c.Common.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.Metrics.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.Memory.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.Storage.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	return result
}

// Validate checks the engine limits.
func (m MemoryConfig) Validate() error {
	var result error

	if m.MaxEntries < 1 {
		result = multierror.Append(result, fmt.Errorf("max_entries must be at least 1, got %d", m.MaxEntries))
	}
	if m.DefaultLimit < 1 {
		result = multierror.Append(result, fmt.Errorf("default_limit must be at least 1, got %d", m.DefaultLimit))
	}
	if m.MinImportance < 0 || m.MinImportance > 1 {
		result = multierror.Append(result, fmt.Errorf("min_importance must be within [0, 1], got %v", m.MinImportance))
	}
	if m.RelevanceThreshold < 0 || m.RelevanceThreshold >= 1 {
		result = multierror.Append(result, fmt.Errorf("relevance_threshold must be within [0, 1), got %v", m.RelevanceThreshold))
	}
	if m.EvictionFraction <= 0 || m.EvictionFraction > 1 {
		result = multierror.Append(result, fmt.Errorf("eviction_fraction must be within (0, 1], got %v", m.EvictionFraction))
	}
	if strings.TrimSpace(m.SnapshotKey) == "" {
		result = multierror.Append(result, fmt.Errorf("snapshot_key cannot be empty"))
	}
	if strings.TrimSpace(m.PreferencesKey) == "" {
		result = multierror.Append(result, fmt.Errorf("preferences_key cannot be empty"))
	}
	if m.SnapshotKey == m.PreferencesKey {
		result = multierror.Append(result, fmt.Errorf("snapshot_key and preferences_key must differ"))
	}

	return result
}

// Validate checks that the selected backend has what it needs.
func (s StorageConfig) Validate() error {
	var result error

	switch storage_manager.BackendType(s.Backend) {
	case storage_manager.BackendLocal:
		if s.LocalDir == "" {
			result = multierror.Append(result, fmt.Errorf("local_dir is required for the local backend"))
		}
	case storage_manager.BackendMemory:
	case storage_manager.BackendS3:
		if s.S3Bucket == "" {
			result = multierror.Append(result, fmt.Errorf("s3_bucket is required for the s3 backend"))
		}
	case storage_manager.BackendGit:
		if s.GitPath == "" {
			result = multierror.Append(result, fmt.Errorf("git_path is required for the git backend"))
		}
	case storage_manager.BackendPostgres:
		if s.PostgresDSN == "" {
			result = multierror.Append(result, fmt.Errorf("postgres_dsn is required for the postgres backend"))
		}
		if s.PostgresMaxConns < 0 {
			result = multierror.Append(result, fmt.Errorf("postgres_max_conns cannot be negative"))
		}
	case storage_manager.BackendSQLite:
		if s.SQLitePath == "" || s.SQLitePath == ":memory:" {
			result = multierror.Append(result, fmt.Errorf("sqlite_path must name a database file"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("backend must be one of [local, memory, s3, git, postgres, sqlite], got %q", s.Backend))
	}

	return result
}

// GetLogLevel returns the parsed logger level
func (c AppConfig) GetLogLevel() logger.Level {
	return logger.ParseLevel(c.Common.LogLevel)
}

// NewLogger builds the application logger.
func (c AppConfig) NewLogger() logger.Logger {
	return logger.NewLogger(logger.Config{
		Level:   c.GetLogLevel(),
		Format:  c.Common.LogFormat,
		Service: ServiceName,
	})
}

// StorageManagerConfig maps the storage settings onto storage_manager.Config.
func (c AppConfig) StorageManagerConfig(log logger.Logger) storage_manager.Config {
	s := c.Storage
	cfg := storage_manager.Config{
		Backend: storage_manager.BackendType(s.Backend),
		Logger:  log,
	}

	switch cfg.Backend {
	case storage_manager.BackendLocal:
		cfg.LocalConfig = &storage_manager.LocalConfig{BaseDir: s.LocalDir}
	case storage_manager.BackendS3:
		cfg.S3Config = &storage_manager.S3Config{
			Bucket:  s.S3Bucket,
			Prefix:  s.S3Prefix,
			Region:  s.S3Region,
			Profile: s.S3Profile,
		}
	case storage_manager.BackendGit:
		cfg.GitConfig = &storage_manager.GitProviderOptions{
			Path:          s.GitPath,
			AuthorName:    s.GitAuthorName,
			AuthorEmail:   s.GitAuthorEmail,
			InitIfMissing: true,
		}
	case storage_manager.BackendPostgres:
		cfg.PostgresConfig = &storage_manager.PostgresOptions{
			DSN:      s.PostgresDSN,
			MaxConns: int32(s.PostgresMaxConns), //nolint:gosec // G115: validated non-negative
			Logger:   log,
		}
	case storage_manager.BackendSQLite:
		cfg.SQLiteConfig = &storage_manager.SQLiteConfig{Path: s.SQLitePath}
	}

	return cfg
}

// StoreConfig returns a context_store.Config for the named store. The caller
// supplies the file provider, logger and metrics.
func (c AppConfig) StoreConfig(name string) context_store.Config {
	m := c.Memory
	return context_store.Config{
		Name:               name,
		SnapshotKey:        m.SnapshotKey,
		MaxEntries:         m.MaxEntries,
		DefaultLimit:       m.DefaultLimit,
		MinImportance:      m.MinImportance,
		RelevanceThreshold: m.RelevanceThreshold,
		EvictionFraction:   m.EvictionFraction,
		DisableAutoPersist: m.DisableAutoPersist,
	}
}

// NewPreferences returns the preference store kept next to the snapshot.
func (c AppConfig) NewPreferences(provider storage_manager.FileProvider) *context_builder.FilePreferences {
	return context_builder.NewFilePreferences(provider, c.Memory.PreferencesKey)
}

// LogConfig logs the current configuration (without sensitive data)
func (c AppConfig) LogConfig(log logger.Logger) {
	log.Info("Application configuration loaded",
		logger.StringField("log_level", c.Common.LogLevel),
		logger.StringField("log_format", c.Common.LogFormat),
		logger.StringField("storage_backend", c.Storage.Backend),
		logger.IntField("max_entries", c.Memory.MaxEntries),
		logger.Float64Field("min_importance", c.Memory.MinImportance),
		logger.Float64Field("relevance_threshold", c.Memory.RelevanceThreshold),
		logger.StringField("snapshot_key", c.Memory.SnapshotKey),
		logger.BoolField("auto_persist", !c.Memory.DisableAutoPersist),
		logger.BoolField("metrics_exposed", c.Metrics.ExposeMetrics),
		logger.IntField("metrics_port", c.Metrics.Port),
	)
}

// Load reads .env files, then the optional YAML file, then the environment.
func Load(path string, dotEnvFiles ...string) (AppConfig, error) {
	var cfg AppConfig
	if err := config.LoadDotEnv(dotEnvFiles...); err != nil {
		return cfg, fmt.Errorf("failed to load env files: %w", err)
	}
	if err := config.GetConfig(&cfg, path, false); err != nil {
		return cfg, err
	}
	return cfg, nil
}
