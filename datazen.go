// Copyright 2024 Devscast Community.
// Licensed under Apache 2.0, see LICENCE file for details.

package datazen

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/devscast/datazen/internal/compile"
	"github.com/devscast/datazen/internal/parse"
)

// BindingStyle is the placeholder convention accepted by a driver, either
// purely positional "?" markers or vendor-native "@pN" named markers.
type BindingStyle = compile.BindingStyle

const (
	Positional = compile.Positional
	Named      = compile.Named
)

// Escape selects how an embedded quote is escaped inside string and
// identifier literals of a driver's SQL dialect.
type Escape = parse.Escape

const (
	EscapeDoubling  = parse.EscapeDoubling
	EscapeBackslash = parse.EscapeBackslash
)

// Type is a parameter binding type tag. The zero value is the string binding
// type, the default when no tag is supplied.
type Type = compile.Type

var (
	String      = compile.String
	Null        = compile.Null
	Integer     = compile.Integer
	Boolean     = compile.Boolean
	Binary      = compile.Binary
	ASCII       = compile.ASCII
	LargeObject = compile.LargeObject
)

// Array returns the array binding type with the given element scalar type.
func Array(elem Type) Type {
	return compile.Array(elem)
}

// Parameters is the value set supplied for one compilation, either named or
// positional, never both.
type Parameters = compile.Parameters

// NamedParameters carries values and optional type tags keyed by name.
type NamedParameters = compile.NamedParameters

// PositionalParameters carries values and optional type tags in marker order.
type PositionalParameters = compile.PositionalParameters

// CompiledQuery is final SQL text plus the bound values and type tags in the
// shape required by the target binding style.
type CompiledQuery = compile.CompiledQuery

// LexicalError is the error the scanner raises on malformed SQL text. Offset
// is the byte offset of the offending character.
type LexicalError = parse.Error

// Compilation errors, raised by Compile and the query methods of Conn.
var (
	ErrStyleMismatch              = compile.ErrStyleMismatch
	ErrMissingNamedParameter      = compile.ErrMissingNamedParameter
	ErrMissingPositionalParameter = compile.ErrMissingPositionalParameter
	ErrArrayBindingType           = compile.ErrArrayBindingType
)

// Transaction errors, raised by the transaction methods of Conn.
var (
	ErrNoActiveTransaction            = errors.New("no active transaction")
	ErrRollbackOnly                   = errors.New("transaction is rollback-only, commit is not permitted")
	ErrNestedTransactionsNotSupported = errors.New("nested transactions are not supported")
)

// Compile rewrites the query's parameter markers into the given binding style
// and resolves the supplied values and type tags. It is a pure function of
// its inputs.
func Compile(query string, params Parameters, style BindingStyle, escape Escape) (*CompiledQuery, error) {
	return compile.Compile(query, params, style, escape)
}

// Conn is a logical connection. It compiles queries for its driver and owns
// the nested transaction state layered over the driver's single physical
// transaction.
//
// The transaction methods of a Conn must not be used concurrently from
// multiple goroutines, transaction state transitions are serialized through a
// single mutex.
type Conn struct {
	driver     Driver
	autoCommit bool

	mu sync.Mutex
	// level is the logical transaction nesting level, 0 when no transaction
	// is active.
	level int
	// rollbackOnly forbids commit. It is only meaningful while level > 0.
	rollbackOnly bool
}

// Option configures a Conn.
type Option func(*Conn)

// WithAutoCommit sets the auto-commit mode. With auto-commit disabled,
// committing or rolling back the outermost transaction immediately begins a
// new one, the connection is permanently inside a transaction.
func WithAutoCommit(enabled bool) Option {
	return func(c *Conn) {
		c.autoCommit = enabled
	}
}

// Connect returns a connection using the given driver.
func Connect(driver Driver, opts ...Option) (*Conn, error) {
	if driver == nil {
		return nil, errors.New("cannot connect: nil driver")
	}
	c := &Conn{driver: driver, autoCommit: true}
	for _, opt := range opts {
		opt(c)
	}
	if !c.autoCommit {
		if err := c.driver.Begin(context.Background()); err != nil {
			return nil, err
		}
		c.level = 1
	}
	return c, nil
}

// Driver returns the underlying driver.
func (c *Conn) Driver() Driver {
	return c.driver
}

// Compile compiles the query for this connection's driver.
func (c *Conn) Compile(query string, params Parameters) (*CompiledQuery, error) {
	return compile.Compile(query, params, c.driver.BindingStyle(), c.driver.Escape())
}

// Query compiles the query and sends it to the driver, returning the result
// rows.
func (c *Conn) Query(ctx context.Context, query string, params Parameters) (*sql.Rows, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cq, err := c.Compile(query, params)
	if err != nil {
		return nil, err
	}
	return c.driver.Query(ctx, cq)
}

// Exec compiles the statement and sends it to the driver, returning the
// number of affected rows.
func (c *Conn) Exec(ctx context.Context, query string, params Parameters) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cq, err := c.Compile(query, params)
	if err != nil {
		return 0, err
	}
	return c.driver.Exec(ctx, cq)
}

// Close closes the driver connection. Any transaction state is discarded, the
// nesting level resets to zero.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.level = 0
	c.rollbackOnly = false
	return c.driver.Close()
}
