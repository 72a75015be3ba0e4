package database

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/novaconsult/nova-backend/internal/config"
	"github.com/novaconsult/nova-backend/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// DB wraps the database connection together with the lock retry policy
// every statement runs under.
type DB struct {
	*sqlx.DB

	driver       string
	migrationURL string
	retry        RetryPolicy
	log          *logrus.Logger

	migrateOnce sync.Once
	migrateErr  error
}

// Open creates a new database connection for the configured driver.
func Open(cfg config.DatabaseConfig, log *logrus.Logger) (*DB, error) {
	var (
		dsn          string
		migrationURL string
	)

	switch cfg.Driver {
	case DriverSQLite:
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, models.StorageConnectionError("create database directory", err)
			}
		}
		dsn = sqliteDSN(cfg)
		migrationURL = "sqlite3://" + dsn
	case DriverPostgres:
		dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)
		migrationURL = postgresURL(cfg)
	default:
		return nil, models.StorageConnectionError("open database", fmt.Errorf("unsupported driver %q", cfg.Driver))
	}

	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, models.StorageConnectionError("open database", err)
	}

	if cfg.Driver == DriverPostgres {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, models.StorageConnectionError("ping database", err)
	}

	log.WithFields(logrus.Fields{
		"driver": cfg.Driver,
		"path":   cfg.Path,
	}).Info("Database connection established")

	return &DB{
		DB:           db,
		driver:       cfg.Driver,
		migrationURL: migrationURL,
		retry:        NewRetryPolicy(cfg.MaxRetries, cfg.RetryBaseDelay),
		log:          log,
	}, nil
}

// sqliteDSN enables WAL so readers never block the single writer, waits on
// locks for the configured busy timeout and takes the write lock when a
// transaction begins instead of on its first write.
func sqliteDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_txlock=immediate", cfg.Path, cfg.BusyTimeoutMs)
}

func postgresURL(cfg config.DatabaseConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     "/" + cfg.Database,
		RawQuery: "sslmode=" + url.QueryEscape(cfg.SSLMode),
	}
	return u.String()
}

// Driver returns the driver name the connection was opened with.
func (db *DB) Driver() string {
	return db.driver
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// Transact runs fn inside a transaction under the retry policy. The
// transaction is committed when fn returns nil and rolled back otherwise,
// so a failed operation leaves no partial writes.
func (db *DB) Transact(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	return db.retry.Do(ctx, db.log, op, func() error {
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				db.log.WithError(rbErr).WithField("op", op).Warn("Rollback failed")
			}
			return err
		}
		return tx.Commit()
	})
}
