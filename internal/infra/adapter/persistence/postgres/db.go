package postgres

import (
	"context"
	"database/sql"
)

// DBTX is the database surface the repositories run against. Both *sql.DB
// and the circuit-breaker wrapper in resilience/circuitbreaker satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
