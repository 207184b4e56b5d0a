package persistence

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// Handle bundles the open database with the repo built on top of it, so
// callers have a single value to pass around and a single thing to close.
type Handle struct {
	DB   *sql.DB
	Repo *Repo
}

// Close releases the underlying database connection.
func (h *Handle) Close() error {
	if h == nil || h.DB == nil {
		return nil
	}
	return h.DB.Close()
}

// Bootstrap ensures stateDir exists, opens (or creates) the subsystem's
// database inside it, applies every pending migration, and returns a ready
// Handle.
func Bootstrap(stateDir string) (*Handle, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("bootstrap: mkdir %s: %w", stateDir, err)
	}

	dbPath := filepath.Join(stateDir, "cachesrv.db")
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &Handle{DB: db, Repo: NewRepo(db)}, nil
}
