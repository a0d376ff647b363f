package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/lewisedginton/contextmemory/pkg/logger"
)

// BackendType represents the type of storage backend.
type BackendType string

const (
	// BackendLocal uses the local filesystem for storage.
	BackendLocal BackendType = "local"
	// BackendMemory keeps blobs in process memory.
	BackendMemory BackendType = "memory"
	// BackendS3 uses AWS S3 for storage.
	BackendS3 BackendType = "s3"
	// BackendGit commits every write to a git repository.
	BackendGit BackendType = "git"
	// BackendPostgres stores blobs in a Postgres table.
	BackendPostgres BackendType = "postgres"
	// BackendSQLite stores blobs in a SQLite file.
	BackendSQLite BackendType = "sqlite"
)

// Config holds the configuration for the StorageManager.
type Config struct {
	Backend BackendType

	LocalConfig    *LocalConfig
	S3Config       *S3Config
	GitConfig      *GitProviderOptions
	PostgresConfig *PostgresOptions
	SQLiteConfig   *SQLiteConfig

	Logger logger.Logger
}

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BaseDir is the root directory for all storage.
	BaseDir string
}

// S3Config holds configuration for S3 storage.
type S3Config struct {
	// Bucket is the S3 bucket name.
	Bucket string
	// Prefix is an optional prefix for all keys in the bucket.
	Prefix string
	// Region and Profile are used to build a client when Client is nil.
	Region  string
	Profile string
	// Client is the AWS S3 client.
	Client *s3.Client
}

// SQLiteConfig holds configuration for SQLite storage.
type SQLiteConfig struct {
	// Path is the database file.
	Path string
}

// StorageManager owns the configured backend and hands out prefix-scoped
// file providers to the stores that persist through it.
type StorageManager struct {
	backend  BackendType
	provider FileProvider
	log      logger.Logger
}

// New creates a new StorageManager with the given configuration.
func New(ctx context.Context, config Config) (*StorageManager, error) {
	log := config.Logger
	if log == nil {
		log = logger.NewDiscardLogger()
	}

	var provider FileProvider

	switch config.Backend {
	case BackendLocal:
		if config.LocalConfig == nil || config.LocalConfig.BaseDir == "" {
			return nil, fmt.Errorf("base directory is required for local backend")
		}
		if err := os.MkdirAll(config.LocalConfig.BaseDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		provider = NewLocalFileProvider(config.LocalConfig.BaseDir)

	case BackendMemory:
		provider = NewMemoryFileProvider()

	case BackendS3:
		if config.S3Config == nil || config.S3Config.Bucket == "" {
			return nil, fmt.Errorf("bucket is required for s3 backend")
		}
		client := config.S3Config.Client
		if client == nil {
			var err error
			client, err = LoadS3Client(ctx, config.S3Config.Region, config.S3Config.Profile)
			if err != nil {
				return nil, err
			}
		}
		provider = NewS3FileProvider(config.S3Config.Bucket, config.S3Config.Prefix, client)

	case BackendGit:
		if config.GitConfig == nil {
			return nil, fmt.Errorf("git config is required for git backend")
		}
		p, err := NewGitFileProvider(*config.GitConfig)
		if err != nil {
			return nil, err
		}
		provider = p

	case BackendPostgres:
		if config.PostgresConfig == nil {
			return nil, fmt.Errorf("postgres config is required for postgres backend")
		}
		opts := *config.PostgresConfig
		if opts.Logger == nil {
			opts.Logger = log
		}
		p, err := NewPostgresFileProvider(ctx, opts)
		if err != nil {
			return nil, err
		}
		provider = p

	case BackendSQLite:
		if config.SQLiteConfig == nil {
			return nil, fmt.Errorf("sqlite config is required for sqlite backend")
		}
		p, err := NewSQLiteFileProvider(config.SQLiteConfig.Path, log)
		if err != nil {
			return nil, err
		}
		provider = p

	default:
		return nil, fmt.Errorf("unsupported backend type: %q", config.Backend)
	}

	log.Info("Storage backend ready", logger.StringField("backend", string(config.Backend)))

	return &StorageManager{
		backend:  config.Backend,
		provider: provider,
		log:      log,
	}, nil
}

// NewWithProvider creates a new StorageManager with a custom FileProvider.
// This is useful for testing or when using a custom storage implementation.
func NewWithProvider(provider FileProvider) *StorageManager {
	return &StorageManager{
		provider: provider,
		log:      logger.NewDiscardLogger(),
	}
}

// GetProvider returns a prefix-scoped FileProvider for the given namespace.
// Each namespace gets its own isolated storage area within the backend.
func (m *StorageManager) GetProvider(namespace string) FileProvider {
	if namespace == "" {
		return m.provider
	}
	return NewPrefixedFileProvider(m.provider, namespace)
}

// GetRootProvider returns the root FileProvider without any prefix.
func (m *StorageManager) GetRootProvider() FileProvider {
	return m.provider
}

// Backend returns the configured backend type.
func (m *StorageManager) Backend() BackendType {
	return m.backend
}

// Ping checks the backend is reachable. Backends without a connection
// report healthy by listing the root.
func (m *StorageManager) Ping(ctx context.Context) error {
	if pinger, ok := m.provider.(interface{ Ping(context.Context) error }); ok {
		return pinger.Ping(ctx)
	}
	_, err := m.provider.List(ctx, "")
	return err
}

// Close releases backend connections, if any.
func (m *StorageManager) Close() error {
	if closer, ok := m.provider.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
