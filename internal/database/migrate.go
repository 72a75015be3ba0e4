package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/novaconsult/nova-backend/internal/models"
)

//go:embed migrations/sqlite3/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Migrate brings the schema up to date. It runs at most once per DB value;
// later calls return the first result. Migrations use their own connection
// so closing the migrator never closes the shared pool.
func (db *DB) Migrate() error {
	db.migrateOnce.Do(func() {
		db.migrateErr = db.runMigrations()
		if db.migrateErr == nil {
			db.log.WithField("driver", db.driver).Info("Database schema is up to date")
		}
	})
	return db.migrateErr
}

func (db *DB) runMigrations() error {
	source, err := iofs.New(migrationsFS, "migrations/"+db.driver)
	if err != nil {
		return models.StorageConnectionError("create migration source", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, db.migrationURL)
	if err != nil {
		return models.StorageConnectionError("create migration instance", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			db.log.WithField("source_error", srcErr).WithField("db_error", dbErr).Warn("Failed to close migrator")
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return models.StorageConnectionError("run migrations", fmt.Errorf("%s: %w", db.driver, err))
	}

	return nil
}
