// Copyright 2024 Devscast Community.
// Licensed under Apache 2.0, see LICENCE file for details.

package datazen

import (
	"context"
	"database/sql"
)

// Driver is the wire-level collaborator a Conn compiles queries for. It
// reports its binding convention and carries the physical transaction
// operations. All operations may block on I/O and honour the context.
type Driver interface {
	// Name identifies the driver in error messages.
	Name() string

	// BindingStyle returns the placeholder convention the driver accepts. It
	// is queried once per compilation.
	BindingStyle() BindingStyle

	// Escape returns the quote escape rule of the driver's SQL dialect.
	Escape() Escape

	// Begin starts the physical transaction.
	Begin(ctx context.Context) error

	// Commit commits the physical transaction.
	Commit(ctx context.Context) error

	// Rollback aborts the physical transaction.
	Rollback(ctx context.Context) error

	// Query sends a compiled query and returns the result rows.
	Query(ctx context.Context, query *CompiledQuery) (*sql.Rows, error)

	// Exec sends a compiled statement and returns the affected row count.
	Exec(ctx context.Context, query *CompiledQuery) (int64, error)

	// Close releases the physical connection.
	Close() error
}

// SavepointDriver is implemented by drivers that support savepoints inside a
// physical transaction. A driver must implement it for nested transactions to
// work, Conn.Begin fails at depth otherwise.
type SavepointDriver interface {
	Driver

	// CreateSavepoint creates a named savepoint.
	CreateSavepoint(ctx context.Context, name string) error

	// ReleaseSavepoint releases a named savepoint. Drivers without an
	// explicit release operation may implement this as a no-op.
	ReleaseSavepoint(ctx context.Context, name string) error

	// RollbackSavepoint rolls the transaction back to a named savepoint.
	RollbackSavepoint(ctx context.Context, name string) error
}
