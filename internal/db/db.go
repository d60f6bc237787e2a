// Package db persists patients, sessions, measurements and annotated
// events in a SQLite database.
package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

var (
	// ErrPatientExists is returned when inserting a patient whose
	// identifier is already in the database.
	ErrPatientExists = errors.New("patient already exists")
	// ErrInvalidPatientID is returned for empty patient identifiers.
	ErrInvalidPatientID = errors.New("invalid patient id")
)

// DB wraps the SQLite handle. All timestamps are stored as RFC 3339
// text in UTC.
type DB struct {
	*sql.DB
}

// Open opens or creates the database at path, applies pending schema
// migrations and seeds the lookup tables.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// a single connection sidesteps SQLITE_BUSY under concurrent writers
	sqlDB.SetMaxOpenConns(1)
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	db := &DB{sqlDB}
	if err := db.migrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := db.populateLookupTables(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrateUp() error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlitemigrate.WithInstance(db.DB, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("prepare migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("prepare migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (db *DB) populateLookupTables() error {
	return db.withTx(func(tx *sql.Tx) error {
		for _, et := range EventTypes() {
			if _, err := tx.Exec(
				"INSERT OR IGNORE INTO dim_event_type_lookup (event_type, event_description) VALUES (?, ?)",
				et.Type, et.Description,
			); err != nil {
				return fmt.Errorf("seed event type %s: %w", et.Type, err)
			}
		}
		for _, di := range DistractorInfos() {
			if _, err := tx.Exec(
				"INSERT OR IGNORE INTO dim_hw_distractor_lookup (distractor_type, displacement_mm_per_full_turn) VALUES (?, ?)",
				di.Type, di.DisplacementPerFullTurn,
			); err != nil {
				return fmt.Errorf("seed distractor %s: %w", di.Type, err)
			}
		}
		return nil
	})
}

// withTx runs fn in a transaction, committing on success.
func (db *DB) withTx(fn func(*sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
