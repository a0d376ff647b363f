package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/lewisedginton/contextmemory/pkg/logger"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

// runMigrations applies the embedded blob-table migrations for dialect
// ("postgres" or "sqlite") to db. It takes ownership of db and closes it
// before returning, so callers hand in a connection dedicated to migrating.
func runMigrations(db *sql.DB, dialect string, log logger.Logger) error {
	sourceDriver, err := iofs.New(migrationFS, "migrations/"+dialect)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("create embedded migration source: %w", err)
	}

	var driver database.Driver
	switch dialect {
	case "postgres":
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	case "sqlite":
		driver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	default:
		err = fmt.Errorf("unsupported migration dialect: %s", dialect)
	}
	if err != nil {
		_ = sourceDriver.Close()
		_ = db.Close()
		return fmt.Errorf("create %s driver: %w", dialect, err)
	}

	// From here the driver owns db: closing the driver closes db.
	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, dialect, driver)
	if err != nil {
		_ = sourceDriver.Close()
		_ = driver.Close()
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	log.Debug("Applying blob store migrations", logger.StringField("dialect", dialect))

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		log.Error("Failed to run migrations", logger.StringField("dialect", dialect), logger.ErrorField(err))
		return fmt.Errorf("run migrations: %w", err)
	}

	log.Info("Applied blob store migrations", logger.StringField("dialect", dialect))
	return nil
}
