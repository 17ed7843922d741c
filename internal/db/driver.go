// Package db abstracts the destination database behind a small driver
// interface so the writer and migrations run unchanged against
// client-server Postgres or an embedded single-file store.
package db

import "context"

// Rows is the minimal result-set surface the callers need.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Tx is one transaction on a driver connection.
type Tx interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Driver is the destination-database contract. Identifier quoting and
// the upsert statement shape are dialect-specific and must always come
// from the driver; callers never assemble SQL around raw names.
type Driver interface {
	// Name identifies the dialect ("postgres", "sqlite") for logs.
	Name() string

	// Connect opens the connection (pool). Calling it again after a
	// failure or Close establishes a fresh connection.
	Connect(ctx context.Context) error
	Close()
	Ping(ctx context.Context) error

	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Begin(ctx context.Context) (Tx, error)

	// QuoteIdentifier makes a table or column name safe for this
	// dialect.
	QuoteIdentifier(name string) string

	// UpsertTemplate renders the one-row insert-or-update statement
	// for a table. Conflicts on key update every non-key column.
	UpsertTemplate(table string, columns, key []string) string

	// BulkExec runs one statement for every row of args, atomically.
	BulkExec(ctx context.Context, sql string, rows [][]any) error
}
