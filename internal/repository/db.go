package repository

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql used by repository methods that may
// run inside a caller-owned transaction. Both *sql.DB and *sql.Tx
// satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
