package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/lewisedginton/contextmemory/pkg/logger"
)

// SQLiteFileProvider stores blobs in a single-file SQLite database.
type SQLiteFileProvider struct {
	db *sql.DB
}

// NewSQLiteFileProvider opens (creating if needed) the database at path and
// applies the blob table migrations. path must name a file; in-memory
// databases are not shared across pooled connections.
func NewSQLiteFileProvider(path string, log logger.Logger) (*SQLiteFileProvider, error) {
	if path == "" || path == ":memory:" {
		return nil, fmt.Errorf("sqlite path must name a file")
	}
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	dsn := "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"

	migrateDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite for migrations: %w", err)
	}
	if err := runMigrations(migrateDB, "sqlite", log); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time keeps SQLITE_BUSY out of concurrent saves.
	db.SetMaxOpenConns(1)

	return &SQLiteFileProvider{db: db}, nil
}

// Read returns the blob stored at path.
func (p *SQLiteFileProvider) Read(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := p.db.QueryRowContext(ctx, `SELECT data FROM blobs WHERE path = ?`, path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// Write upserts the blob at path.
func (p *SQLiteFileProvider) Write(ctx context.Context, path string, data []byte) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO blobs (path, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (path) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		path, data)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Exists reports whether a row exists for path.
func (p *SQLiteFileProvider) Exists(ctx context.Context, path string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM blobs WHERE path = ?)`, path).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", path, err)
	}
	return exists, nil
}

// Delete removes the row for path.
func (p *SQLiteFileProvider) Delete(ctx context.Context, path string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM blobs WHERE path = ?`, path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// List returns the sorted paths starting with prefix.
func (p *SQLiteFileProvider) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT path FROM blobs WHERE substr(path, 1, length(?1)) = ?1 ORDER BY path`, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	defer func() { _ = rows.Close() }()

	paths := []string{}
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("failed to scan path: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

// Ping checks the database file is reachable.
func (p *SQLiteFileProvider) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database.
func (p *SQLiteFileProvider) Close() error {
	return p.db.Close()
}
