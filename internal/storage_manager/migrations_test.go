package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/contextmemory/pkg/logger"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "blobs.db"))
	require.NoError(t, err)
	require.NoError(t, db.Ping())
	return db
}

func TestRunMigrations_ClosesDBOnEarlyFailure(t *testing.T) {
	db := openSQLite(t)

	err := runMigrations(db, "oracle", logger.NewDiscardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported migration dialect")
	assert.Error(t, db.Ping(), "db should be closed")
}

func TestRunMigrations_ClosesDBAfterSuccess(t *testing.T) {
	db := openSQLite(t)

	require.NoError(t, runMigrations(db, "sqlite", logger.NewDiscardLogger()))
	assert.Error(t, db.Ping(), "db should be closed")
}
