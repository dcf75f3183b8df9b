// Package db opens the SQLite database backing the moderation store and
// applies its embedded schema migrations.
package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDBPath returns the default path for the spindex database.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".spindex", "spindex.db"), nil
}

// SqliteConfig holds the options for opening the database.
type SqliteConfig struct {
	// DatabaseFileName is the full path of the database file.
	DatabaseFileName string

	// SkipMigrations skips applying migrations on open. Used by tools
	// that only read an existing database.
	SkipMigrations bool
}

// SqliteStore wraps the open database handle.
type SqliteStore struct {
	cfg *SqliteConfig

	// DB is the underlying database connection.
	DB *sql.DB
}

// NewSqliteStore opens the database, configures its pragmas, and applies any
// pending migrations.
func NewSqliteStore(cfg *SqliteConfig,
	log *slog.Logger) (*SqliteStore, error) {

	db, err := openSQLite(cfg.DatabaseFileName)
	if err != nil {
		return nil, err
	}

	if !cfg.SkipMigrations {
		driver, err := sqlite3.WithInstance(
			db, &sqlite3.Config{},
		)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf(
				"failed to create migration driver: %w", err,
			)
		}

		err = applyMigrations(
			sqlSchemas, driver, "migrations", "spindex",
			TargetLatest, defaultMigrateOptions(), log,
		)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf(
				"failed to apply migrations: %w", err,
			)
		}
	}

	return &SqliteStore{cfg: cfg, DB: db}, nil
}

// Close closes the underlying database connection.
func (s *SqliteStore) Close() error {
	return s.DB.Close()
}

// openSQLite opens a SQLite database connection with WAL mode enabled and
// appropriate pragmas for performance and reliability.
func openSQLite(dbPath string) (*sql.DB, error) {
	// Ensure the directory exists.
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf(
			"failed to create database directory: %w", err,
		)
	}

	// Open the database with foreign keys and WAL mode enabled via URI.
	dsn := fmt.Sprintf(
		"file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000",
		dbPath,
	)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for SQLite (single writer, multiple
	// readers).
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := configurePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf(
			"failed to configure database: %w", err,
		)
	}

	return db, nil
}

// configurePragmas sets additional SQLite pragmas for optimal performance.
func configurePragmas(db *sql.DB) error {
	pragmas := []string{
		// Synchronous mode: NORMAL provides good durability with
		// better performance than FULL.
		"PRAGMA synchronous = NORMAL",

		// Cache size: Negative value is in KiB, 64MB cache.
		"PRAGMA cache_size = -65536",

		// Temp store: Keep temporary tables in memory.
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf(
				"failed to execute %q: %w", pragma, err,
			)
		}
	}

	return nil
}
