/*
Datazen is a portable SQL execution layer. It takes application SQL written
with named (:foo) or positional (?) parameter markers, together with the
parameter values and optional binding type tags, and compiles it into the
exact form the active driver expects: rewritten placeholder text plus bound
values in matching shape.

A query uses either named or positional markers, never both. Markers inside
string literals, quoted or bracketed identifiers and comments are never
detected, and array-valued parameters expand into one placeholder per element:

	conn, err := datazen.Connect(drv)
	rows, err := conn.Query(ctx,
		"SELECT id, name FROM people WHERE id IN (:ids)",
		datazen.NamedParameters{
			Values: map[string]any{"ids": []any{1, 2, 3}},
			Types:  map[string]datazen.Type{"ids": datazen.Array(datazen.Integer)},
		})

On top of a single physical transaction, a connection layers logical nested
transactions backed by savepoints. Begin inside an active transaction creates
a savepoint, Rollback at depth rolls back to it, and SetRollbackOnly forbids
commit until the outermost transaction is rolled back:

	err := conn.Transactional(ctx, func(ctx context.Context) error {
		if _, err := conn.Exec(ctx, stmt, params); err != nil {
			return err
		}
		return conn.Transactional(ctx, audit)
	})

Concrete drivers live outside this package. The sqldb package adapts any
database/sql driver, including the sqlite3, dqlite and mysql drivers.
*/
package datazen
