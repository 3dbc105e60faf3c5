package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Sentinel errors returned by store lookups.
var (
	ErrNotFound             = errors.New("not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrDuplicateEmail       = errors.New("email already registered")
)

// DB wraps *sql.DB for MARGO CRM storage. Schema is owned by the app; the
// assistant only reaches the database through typed store methods.
type DB struct {
	*sql.DB
	path string
}

// pragmas applied to every pooled connection through the DSN.
var pragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"foreign_keys(1)",
}

// DSN builds the modernc.org/sqlite connection string for path.
func DSN(path string) string {
	var b strings.Builder
	b.WriteString(path)
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	for _, p := range pragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

// Open opens the SQLite database at path and applies the schema. Creates file if missing.
// Per-turn handles hold their own connection, so path must name a file; a
// private ":memory:" database would give every connection a different store.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	// Column migrations for databases created by earlier releases.
	var count int
	for _, col := range []struct{ table, name, def string }{
		{"tasks", "created_by_ai", "INTEGER NOT NULL DEFAULT 0"},
		{"notifications", "channel", "TEXT NOT NULL DEFAULT 'in_app'"},
		{"payroll", "paid_date", "TEXT"},
		{"expenses", "status", "TEXT NOT NULL DEFAULT 'pending'"},
	} {
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pragma_table_info(?) WHERE name=?", col.table, col.name).Scan(&count); err == nil && count == 0 {
			if _, err := db.ExecContext(ctx, "ALTER TABLE "+col.table+" ADD COLUMN "+col.name+" "+col.def); err != nil {
				db.Close()
				return nil, fmt.Errorf("migrating schema (%s.%s): %w", col.table, col.name, err)
			}
		}
	}

	return &DB{DB: db, path: path}, nil
}

// Close closes the database.
func (db *DB) Close() error {
	return db.DB.Close()
}

// Path returns the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

// timeLayout is fixed width so text comparison matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// nowFunc is replaced in tests that need deterministic timestamps.
var nowFunc = time.Now

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
