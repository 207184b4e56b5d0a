// Package persistence implements the SQLite-backed store behind the cache's
// write-behind and write-through policies: config rows, session rows, and
// audit rows, plus the migration and bootstrap wiring around them.
package persistence

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// OpenDB opens (or creates) a SQLite database at path with recommended
// pragmas: WAL journal mode, synchronous=NORMAL, foreign_keys=ON,
// busy_timeout=5000. A single connection is used — this process is the
// only writer.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q on %s: %w", p, path, err)
		}
	}

	return db, nil
}
