package store

import (
	"context"
	"database/sql"
	"fmt"
)

// querier is the subset of database/sql shared by *sql.DB, *sql.Conn and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Handle is the data-access handle passed to tool handlers. A handle from
// Acquire is pinned to one pooled connection, so every write made through it
// is visible to the next read through it. Handles are not safe for concurrent use.
type Handle struct {
	q    querier
	conn *sql.Conn
}

// Acquire reserves a dedicated connection for one assistant turn. The caller
// must Release it when the turn ends.
func (db *DB) Acquire(ctx context.Context) (*Handle, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	return &Handle{q: conn, conn: conn}, nil
}

// Shared returns a handle over the connection pool, for callers outside an
// assistant turn (login, seeding, REST reads). Release is a no-op on it.
func (db *DB) Shared() *Handle {
	return &Handle{q: db.DB}
}

// Release returns the handle's connection to the pool.
func (h *Handle) Release() error {
	if h == nil || h.conn == nil {
		return nil
	}
	err := h.conn.Close()
	h.conn = nil
	return err
}

// InTx runs fn inside a transaction on the handle's connection. fn receives a
// handle bound to the transaction.
func (h *Handle) InTx(ctx context.Context, fn func(tx *Handle) error) error {
	var (
		tx  *sql.Tx
		err error
	)
	switch q := h.q.(type) {
	case *sql.Conn:
		tx, err = q.BeginTx(ctx, nil)
	case *sql.DB:
		tx, err = q.BeginTx(ctx, nil)
	default:
		return fn(h)
	}
	if err != nil {
		return err
	}
	if err := fn(&Handle{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
