package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/lewisedginton/contextmemory/pkg/logger"
)

// pgxQuerier is the subset of *pgxpool.Pool the provider uses.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresFileProvider stores blobs as rows of the blobs table.
type PostgresFileProvider struct {
	db   pgxQuerier
	pool *pgxpool.Pool
}

// PostgresOptions configures NewPostgresFileProvider.
type PostgresOptions struct {
	// DSN is a libpq connection string or postgres:// URL.
	DSN string
	// MaxConns caps the pool size. Zero keeps the pgx default.
	MaxConns int32
	Logger   logger.Logger
}

// NewPostgresFileProvider connects to Postgres, applies the blob table
// migrations and returns a provider over the pool.
func NewPostgresFileProvider(ctx context.Context, opts PostgresOptions) (*PostgresFileProvider, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewDiscardLogger()
	}

	poolCfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		poolCfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := runMigrations(stdlib.OpenDB(*poolCfg.ConnConfig), "postgres", log); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresFileProvider{db: pool, pool: pool}, nil
}

// Read returns the blob stored at path.
func (p *PostgresFileProvider) Read(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := p.db.QueryRow(ctx, `SELECT data FROM blobs WHERE path = $1`, path).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// Write upserts the blob at path.
func (p *PostgresFileProvider) Write(ctx context.Context, path string, data []byte) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO blobs (path, data, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (path) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		path, data)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Exists reports whether a row exists for path.
func (p *PostgresFileProvider) Exists(ctx context.Context, path string) (bool, error) {
	var exists bool
	err := p.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM blobs WHERE path = $1)`, path).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", path, err)
	}
	return exists, nil
}

// Delete removes the row for path.
func (p *PostgresFileProvider) Delete(ctx context.Context, path string) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM blobs WHERE path = $1`, path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// List returns the sorted paths starting with prefix.
func (p *PostgresFileProvider) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := p.db.Query(ctx,
		`SELECT path FROM blobs WHERE left(path, length($1)) = $1 ORDER BY path`, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	paths, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan paths: %w", err)
	}
	if paths == nil {
		paths = []string{}
	}
	return paths, nil
}

// Ping checks the pool can reach the database.
func (p *PostgresFileProvider) Ping(ctx context.Context) error {
	if p.pool == nil {
		return nil
	}
	return p.pool.Ping(ctx)
}

// Close releases the connection pool.
func (p *PostgresFileProvider) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
