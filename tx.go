// Copyright 2024 Devscast Community.
// Licensed under Apache 2.0, see LICENCE file for details.

package datazen

import (
	"context"
	"fmt"
	"strconv"
)

// savepointName returns the savepoint name used at the given nesting level.
func savepointName(level int) string {
	return "DATAZEN_" + strconv.Itoa(level)
}

// Begin starts a transaction. When a transaction is already active it creates
// a savepoint instead, incrementing the nesting level. State only changes
// after the physical call succeeds.
func (c *Conn) Begin(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.level == 0 {
		if err := c.driver.Begin(ctx); err != nil {
			return err
		}
		c.level = 1
		c.rollbackOnly = false
		return nil
	}

	sp, ok := c.driver.(SavepointDriver)
	if !ok {
		return fmt.Errorf("%w by driver %q", ErrNestedTransactionsNotSupported, c.driver.Name())
	}
	if err := sp.CreateSavepoint(ctx, savepointName(c.level+1)); err != nil {
		return err
	}
	c.level++
	return nil
}

// Commit commits the innermost transaction. At nesting level one this is a
// physical commit, deeper levels release the corresponding savepoint. Commit
// fails while the transaction is marked rollback-only.
func (c *Conn) Commit(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.level == 0:
		return ErrNoActiveTransaction
	case c.rollbackOnly:
		return ErrRollbackOnly
	case c.level == 1:
		if err := c.driver.Commit(ctx); err != nil {
			return err
		}
		c.level = 0
		if !c.autoCommit {
			return c.restart(ctx)
		}
		return nil
	default:
		if err := c.driver.(SavepointDriver).ReleaseSavepoint(ctx, savepointName(c.level)); err != nil {
			return err
		}
		c.level--
		return nil
	}
}

// Rollback rolls back the innermost transaction. At nesting level one this is
// a physical rollback which also clears the rollback-only flag, deeper levels
// roll back to the corresponding savepoint and keep the flag.
func (c *Conn) Rollback(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.level == 0:
		return ErrNoActiveTransaction
	case c.level == 1:
		if err := c.driver.Rollback(ctx); err != nil {
			return err
		}
		c.level = 0
		c.rollbackOnly = false
		if !c.autoCommit {
			return c.restart(ctx)
		}
		return nil
	default:
		if err := c.driver.(SavepointDriver).RollbackSavepoint(ctx, savepointName(c.level)); err != nil {
			return err
		}
		c.level--
		return nil
	}
}

// restart begins a fresh transaction after the outermost one ended while
// auto-commit is disabled. The caller must hold the mutex.
func (c *Conn) restart(ctx context.Context) error {
	if err := c.driver.Begin(ctx); err != nil {
		return err
	}
	c.level = 1
	c.rollbackOnly = false
	return nil
}

// SetRollbackOnly marks the active transaction rollback-only. Commit fails
// until the outermost transaction is rolled back.
func (c *Conn) SetRollbackOnly() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.level == 0 {
		return ErrNoActiveTransaction
	}
	c.rollbackOnly = true
	return nil
}

// IsTransactionActive reports whether a transaction is active.
func (c *Conn) IsTransactionActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level > 0
}

// NestingLevel returns the current transaction nesting level, zero when no
// transaction is active.
func (c *Conn) NestingLevel() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// IsRollbackOnly reports whether the active transaction is marked
// rollback-only.
func (c *Conn) IsRollbackOnly() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level > 0 && c.rollbackOnly
}

// Transactional runs fn inside a transaction. The transaction is committed
// when fn returns nil and rolled back when it returns an error, in which case
// the original error is returned after the rollback completes.
func (c *Conn) Transactional(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := c.Begin(ctx); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		// Re-raise the original failure, a rollback error must not mask it.
		_ = c.Rollback(ctx)
		return err
	}
	return c.Commit(ctx)
}
