package core

import (
	"context"
	"database/sql"
)

type (
	// DBExecutor runs statements on a connection pool or inside a transaction.
	DBExecutor interface {
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	// DB is a database handle as seen by the app lifecycle (health checks & shutdown).
	DB interface {
		DBExecutor

		PingContext(ctx context.Context) error
		Close() error
	}
)
