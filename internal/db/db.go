// Package db opens the analysis results database and manages its
// schema through versioned migrations.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the results database handle.
type DB struct {
	*sql.DB
}

// NewDB opens (or creates) the sqlite database at path and applies the
// connection pragmas. The schema is managed separately through
// MigrateUp.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if err := applyPragmas(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &DB{sqlDB}, nil
}

// applyPragmas sets the connection options every database needs:
// WAL journaling so readers do not block the writer, a busy timeout so
// concurrent writers retry instead of failing immediately, and relaxed
// synchronous mode appropriate for re-derivable analysis products.
func applyPragmas(sqlDB *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}
	return nil
}
