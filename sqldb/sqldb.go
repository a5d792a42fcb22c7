// Copyright 2024 Devscast Community.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package sqldb adapts a database/sql database to the datazen driver
// contract. Compiled statements are prepared once per SQL text and cached on
// the adapter.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/devscast/datazen"
)

// DB adapts a *sql.DB to the datazen Driver contract. While a physical
// transaction is active, queries are routed through it.
type DB struct {
	config Config
	sqldb  *sql.DB

	// txMutex guards tx. The transaction state machine itself is serialized
	// by the owning connection.
	txMutex sync.Mutex
	tx      *sql.Tx

	// stmtMutex guards stmts, the prepared statement cache keyed by SQL text.
	stmtMutex sync.RWMutex
	stmts     map[string]*sql.Stmt
}

// New adapts an open *sql.DB using the given configuration. The returned
// driver implements datazen.SavepointDriver when the configuration declares
// savepoint support.
func New(sqldb *sql.DB, config Config) datazen.Driver {
	db := &DB{config: config, sqldb: sqldb, stmts: map[string]*sql.Stmt{}}
	if config.Savepoints {
		return &savepointDB{db}
	}
	return db
}

// Open opens a database/sql database and adapts it using the configuration
// registered for the driver name.
func Open(driverName, dataSourceName string) (datazen.Driver, error) {
	config, ok := DriverConfig(driverName)
	if !ok {
		return nil, fmt.Errorf("cannot open %q: driver is not registered", driverName)
	}
	sqldb, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	return New(sqldb, config), nil
}

// PlainDB returns the underlying database object.
func (db *DB) PlainDB() *sql.DB {
	return db.sqldb
}

func (db *DB) Name() string {
	return db.config.Name
}

func (db *DB) BindingStyle() datazen.BindingStyle {
	return db.config.BindingStyle
}

func (db *DB) Escape() datazen.Escape {
	return db.config.Escape
}

// Begin starts the physical transaction.
func (db *DB) Begin(ctx context.Context) error {
	db.txMutex.Lock()
	defer db.txMutex.Unlock()
	if db.tx != nil {
		return fmt.Errorf("cannot begin: %q already has an open transaction", db.config.Name)
	}
	tx, err := db.sqldb.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	db.tx = tx
	return nil
}

// Commit commits the physical transaction.
func (db *DB) Commit(ctx context.Context) error {
	db.txMutex.Lock()
	defer db.txMutex.Unlock()
	if db.tx == nil {
		return sql.ErrTxDone
	}
	err := db.tx.Commit()
	db.tx = nil
	return err
}

// Rollback aborts the physical transaction.
func (db *DB) Rollback(ctx context.Context) error {
	db.txMutex.Lock()
	defer db.txMutex.Unlock()
	if db.tx == nil {
		return sql.ErrTxDone
	}
	err := db.tx.Rollback()
	db.tx = nil
	return err
}

// Query sends a compiled query to the database, through the open transaction
// when one is active.
func (db *DB) Query(ctx context.Context, query *datazen.CompiledQuery) (*sql.Rows, error) {
	db.txMutex.Lock()
	tx := db.tx
	db.txMutex.Unlock()
	if tx != nil {
		return tx.QueryContext(ctx, query.SQL, query.Params()...)
	}
	stmt, err := db.prepare(ctx, query.SQL)
	if err != nil {
		return nil, err
	}
	return stmt.QueryContext(ctx, query.Params()...)
}

// Exec sends a compiled statement to the database and returns the affected
// row count.
func (db *DB) Exec(ctx context.Context, query *datazen.CompiledQuery) (int64, error) {
	db.txMutex.Lock()
	tx := db.tx
	db.txMutex.Unlock()

	var result sql.Result
	if tx != nil {
		var err error
		result, err = tx.ExecContext(ctx, query.SQL, query.Params()...)
		if err != nil {
			return 0, err
		}
	} else {
		stmt, err := db.prepare(ctx, query.SQL)
		if err != nil {
			return 0, err
		}
		result, err = stmt.ExecContext(ctx, query.Params()...)
		if err != nil {
			return 0, err
		}
	}
	return result.RowsAffected()
}

// prepare returns the cached prepared statement for the SQL text, preparing
// it on first use.
func (db *DB) prepare(ctx context.Context, sqlText string) (*sql.Stmt, error) {
	db.stmtMutex.RLock()
	stmt, ok := db.stmts[sqlText]
	db.stmtMutex.RUnlock()
	if ok {
		return stmt, nil
	}
	stmt, err := db.sqldb.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	db.stmtMutex.Lock()
	defer db.stmtMutex.Unlock()
	// Check if a statement has been inserted by someone else since we last
	// checked.
	if alt, ok := db.stmts[sqlText]; ok {
		stmt.Close()
		return alt, nil
	}
	db.stmts[sqlText] = stmt
	return stmt, nil
}

// Close closes the cached prepared statements and the database.
func (db *DB) Close() error {
	db.txMutex.Lock()
	if db.tx != nil {
		db.tx.Rollback()
		db.tx = nil
	}
	db.txMutex.Unlock()

	db.stmtMutex.Lock()
	for _, stmt := range db.stmts {
		stmt.Close()
	}
	db.stmts = map[string]*sql.Stmt{}
	db.stmtMutex.Unlock()
	return db.sqldb.Close()
}

// savepointDB extends DB with the standard savepoint statements.
type savepointDB struct {
	*DB
}

func (db *savepointDB) CreateSavepoint(ctx context.Context, name string) error {
	return db.execOnTx(ctx, "SAVEPOINT "+name)
}

func (db *savepointDB) ReleaseSavepoint(ctx context.Context, name string) error {
	return db.execOnTx(ctx, "RELEASE SAVEPOINT "+name)
}

func (db *savepointDB) RollbackSavepoint(ctx context.Context, name string) error {
	return db.execOnTx(ctx, "ROLLBACK TO SAVEPOINT "+name)
}

// execOnTx runs a savepoint statement on the open transaction.
func (db *savepointDB) execOnTx(ctx context.Context, stmt string) error {
	db.txMutex.Lock()
	tx := db.tx
	db.txMutex.Unlock()
	if tx == nil {
		return sql.ErrTxDone
	}
	_, err := tx.ExecContext(ctx, stmt)
	return err
}
