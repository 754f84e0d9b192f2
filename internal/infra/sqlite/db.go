// Package sqlite is the persistence layer: the project registry and the
// credit ledger, backed by an embedded SQLite database. All mutation of
// projects and credits goes through this package so the uniqueness and
// state-machine invariants are enforced in one place.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite handle. Safe for concurrent use; SQLite serializes
// writers and busy_timeout covers lock contention.
type DB struct {
	db *sql.DB
}

// Open creates (if needed) and opens the database under dir, applying all
// schema migrations.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(dir, "pledged.db")

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite has a single writer; one connection sidesteps lock churn
	// between concurrent transactions.
	db.SetMaxOpenConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying handle.
func (d *DB) Close() error { return d.db.Close() }

// migrate applies every schema statement. Each string is a single SQL
// statement (SQLite executes one at a time); all are idempotent.
func (d *DB) migrate() error {
	var stmts []string
	stmts = append(stmts, registryMigrations()...)
	stmts = append(stmts, ledgerMigrations()...)
	for _, s := range stmts {
		if _, err := d.db.Exec(s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// isUniqueViolation detects a UNIQUE constraint failure from the driver.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// formatTime stores timestamps as RFC 3339 text so lexical order matches
// chronological order.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
