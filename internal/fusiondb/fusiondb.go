// Package fusiondb persists fused estimates and derived twists to
// SQLite so runs can be inspected and replotted after the fact.
package fusiondb

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the estimate database.
type DB struct {
	*sql.DB
}

// Open opens or creates the database at path, applies the session
// PRAGMAs and brings the schema up to the latest embedded migration.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	d := &DB{db}

	migrations, err := Migrations()
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := d.MigrateUp(migrations); err != nil {
		db.Close()
		return nil, err
	}

	return d, nil
}

// Migrations returns the embedded schema migrations with the files at
// the root of the returned filesystem.
func Migrations() (fs.FS, error) {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	return sub, nil
}

// SchemaVersion reports the applied migration version and dirty state.
func (d *DB) SchemaVersion() (uint, bool, error) {
	migrations, err := Migrations()
	if err != nil {
		return 0, false, err
	}
	return d.MigrateVersion(migrations)
}

// isSQLiteBusy reports whether err is a transient lock contention
// error worth retrying.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy runs op, retrying with exponential backoff while it
// fails with SQLITE_BUSY. Gives up after five attempts.
func retryOnBusy(op func() error) error {
	const maxAttempts = 5
	delay := 10 * time.Millisecond

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
			delay *= 2
		}
		err = op()
		if err == nil || !isSQLiteBusy(err) {
			return err
		}
	}
	return err
}
