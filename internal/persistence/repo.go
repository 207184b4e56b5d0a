package persistence

import (
	"database/sql"
	"fmt"
)

// ConfigRow is a single row of the config table as the config region's
// ConfigLoader consumes it.
type ConfigRow struct {
	Key      string
	Value    string
	Type     string
	Category string
}

// SessionUpdate is one session's batched heartbeat state, as written by the
// syncer's session drain.
type SessionUpdate struct {
	ID            string
	LastActiveNs  int64
	CurrentStatus string
	IPAddress     string
}

// AuditRecord is one audit-log entry, as written by the syncer's audit
// drain.
type AuditRecord struct {
	ID          string
	UserID      string
	Action      string
	Target      string
	Detail      string
	IP          string
	CreatedAtNs int64
}

// Repo wraps the subsystem's single SQLite database.
type Repo struct {
	db *sql.DB
}

// NewRepo builds a Repo over an already-opened, already-migrated database.
func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// --- config_entries ---

const upsertConfigRowSQL = `
INSERT INTO config_entries (key, value, value_type, category, updated_at_ns)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
	value         = excluded.value,
	value_type    = excluded.value_type,
	category      = excluded.category,
	updated_at_ns = excluded.updated_at_ns
`

// UpdateConfigRow writes a single config row, inserting or updating as needed.
func (r *Repo) UpdateConfigRow(row ConfigRow, updatedAtNs int64) error {
	_, err := r.db.Exec(upsertConfigRowSQL, row.Key, row.Value, row.Type, row.Category, updatedAtNs)
	if err != nil {
		return fmt.Errorf("update config row %s: %w", row.Key, err)
	}
	return nil
}

// LoadAllConfig reads every config row, for the config loader's startup and
// post-mutation reload passes.
func (r *Repo) LoadAllConfig() ([]ConfigRow, error) {
	rows, err := r.db.Query("SELECT key, value, value_type, category FROM config_entries")
	if err != nil {
		return nil, fmt.Errorf("load all config: %w", err)
	}
	defer rows.Close()

	var out []ConfigRow
	for rows.Next() {
		var row ConfigRow
		if err := rows.Scan(&row.Key, &row.Value, &row.Type, &row.Category); err != nil {
			return nil, fmt.Errorf("scan config row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// --- session_rows ---

const upsertSessionRowSQL = `
INSERT INTO session_rows (id, last_active_ns, current_status, ip_address)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	last_active_ns = excluded.last_active_ns,
	current_status = excluded.current_status,
	ip_address     = excluded.ip_address
`

// BulkUpdateSessions batch-upserts session heartbeat records in a single
// transaction.
func (r *Repo) BulkUpdateSessions(updates []SessionUpdate) error {
	return r.inTx(func(tx *sql.Tx) error {
		return bulkExecTx(tx, upsertSessionRowSQL, len(updates), func(stmt *sql.Stmt, i int) error {
			u := updates[i]
			_, err := stmt.Exec(u.ID, u.LastActiveNs, u.CurrentStatus, u.IPAddress)
			return err
		})
	})
}

// --- audit_rows ---

const insertAuditRowSQL = `
INSERT INTO audit_rows (id, user_id, action, target, detail, ip, created_at_ns)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING
`

// BulkInsertAudit batch-inserts audit records in a single transaction. A
// failure rolls back the whole batch; because the AuditBuffer has already
// handed its records off by the time this is called, a failed batch is lost
// (the business path is not blocked on audit durability).
func (r *Repo) BulkInsertAudit(records []AuditRecord) error {
	return r.inTx(func(tx *sql.Tx) error {
		return bulkExecTx(tx, insertAuditRowSQL, len(records), func(stmt *sql.Stmt, i int) error {
			rec := records[i]
			_, err := stmt.Exec(rec.ID, rec.UserID, rec.Action, rec.Target, rec.Detail, rec.IP, rec.CreatedAtNs)
			return err
		})
	})
}

// --- shared helpers ---

func (r *Repo) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// bulkExecTx runs a prepared statement against n rows inside an
// already-open transaction.
func bulkExecTx(tx *sql.Tx, query string, n int, execFn func(stmt *sql.Stmt, i int) error) error {
	if n == 0 {
		return nil
	}

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := execFn(stmt, i); err != nil {
			return fmt.Errorf("exec row %d: %w", i, err)
		}
	}
	return nil
}
