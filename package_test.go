package datazen_test

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	. "gopkg.in/check.v1"

	"github.com/devscast/datazen"
	"github.com/devscast/datazen/sqldb"
)

type PackageSuite struct{}

var _ = Suite(&PackageSuite{})

func setupConn(c *C) *datazen.Conn {
	sqlDB, err := sql.Open("sqlite3", ":memory:")
	c.Assert(err, IsNil)
	// An in-memory sqlite database exists per connection, keep the pool to
	// one so every query sees the same database.
	sqlDB.SetMaxOpenConns(1)

	config, ok := sqldb.DriverConfig("sqlite3")
	c.Assert(ok, Equals, true)
	conn, err := datazen.Connect(sqldb.New(sqlDB, config))
	c.Assert(err, IsNil)

	createTable := `
CREATE TABLE people (
	id integer,
	name text,
	status text
);`
	_, err = conn.Exec(nil, createTable, nil)
	c.Assert(err, IsNil)

	inserts := []map[string]any{
		{"id": 1, "name": "Fred", "status": "active"},
		{"id": 2, "name": "Mark", "status": "active"},
		{"id": 3, "name": "Mary", "status": "inactive"},
		{"id": 4, "name": "James", "status": "active"},
	}
	for _, row := range inserts {
		_, err := conn.Exec(nil,
			"INSERT INTO people (id, name, status) VALUES (:id, :name, :status)",
			datazen.NamedParameters{
				Values: row,
				Types:  map[string]datazen.Type{"id": datazen.Integer},
			})
		c.Assert(err, IsNil)
	}
	return conn
}

func queryNames(c *C, conn *datazen.Conn, query string, params datazen.Parameters) []string {
	rows, err := conn.Query(nil, query, params)
	c.Assert(err, IsNil)
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		c.Assert(rows.Scan(&name), IsNil)
		names = append(names, name)
	}
	c.Assert(rows.Err(), IsNil)
	return names
}

func (s *PackageSuite) TestNamedParameters(c *C) {
	conn := setupConn(c)
	defer conn.Close()

	names := queryNames(c, conn,
		"SELECT name FROM people WHERE status = :status ORDER BY id",
		datazen.NamedParameters{Values: map[string]any{"status": "active"}})
	c.Assert(names, DeepEquals, []string{"Fred", "Mark", "James"})
}

func (s *PackageSuite) TestPositionalParameters(c *C) {
	conn := setupConn(c)
	defer conn.Close()

	names := queryNames(c, conn,
		"SELECT name FROM people WHERE id = ? OR name = ? ORDER BY id",
		datazen.PositionalParameters{Values: []any{1, "Mary"}})
	c.Assert(names, DeepEquals, []string{"Fred", "Mary"})
}

func (s *PackageSuite) TestArrayParameter(c *C) {
	conn := setupConn(c)
	defer conn.Close()

	names := queryNames(c, conn,
		"SELECT name FROM people WHERE id IN (:ids) ORDER BY id",
		datazen.NamedParameters{
			Values: map[string]any{"ids": []any{1, 3}},
			Types:  map[string]datazen.Type{"ids": datazen.Array(datazen.Integer)},
		})
	c.Assert(names, DeepEquals, []string{"Fred", "Mary"})

	names = queryNames(c, conn,
		"SELECT name FROM people WHERE id IN (:ids) ORDER BY id",
		datazen.NamedParameters{
			Values: map[string]any{"ids": []any{}},
			Types:  map[string]datazen.Type{"ids": datazen.Array(datazen.Integer)},
		})
	c.Assert(names, HasLen, 0)
}

func (s *PackageSuite) TestTransactionCommit(c *C) {
	conn := setupConn(c)
	defer conn.Close()
	ctx := context.Background()

	c.Assert(conn.Begin(ctx), IsNil)
	_, err := conn.Exec(ctx,
		"INSERT INTO people (id, name, status) VALUES (:id, :name, :status)",
		datazen.NamedParameters{
			Values: map[string]any{"id": 5, "name": "Dave", "status": "active"},
		})
	c.Assert(err, IsNil)
	c.Assert(conn.Commit(ctx), IsNil)

	names := queryNames(c, conn,
		"SELECT name FROM people WHERE id = :id",
		datazen.NamedParameters{Values: map[string]any{"id": 5}})
	c.Assert(names, DeepEquals, []string{"Dave"})
}

func (s *PackageSuite) TestSavepointRollback(c *C) {
	conn := setupConn(c)
	defer conn.Close()
	ctx := context.Background()

	c.Assert(conn.Begin(ctx), IsNil)
	_, err := conn.Exec(ctx,
		"INSERT INTO people (id, name, status) VALUES (5, 'Dave', 'active')", nil)
	c.Assert(err, IsNil)

	// The inner transaction is rolled back to its savepoint, the outer
	// insert survives the commit.
	c.Assert(conn.Begin(ctx), IsNil)
	_, err = conn.Exec(ctx,
		"INSERT INTO people (id, name, status) VALUES (6, 'Eve', 'active')", nil)
	c.Assert(err, IsNil)
	c.Assert(conn.Rollback(ctx), IsNil)
	c.Assert(conn.Commit(ctx), IsNil)

	names := queryNames(c, conn,
		"SELECT name FROM people WHERE id IN (:ids) ORDER BY id",
		datazen.NamedParameters{
			Values: map[string]any{"ids": []any{5, 6}},
			Types:  map[string]datazen.Type{"ids": datazen.Array(datazen.Integer)},
		})
	c.Assert(names, DeepEquals, []string{"Dave"})
}

func (s *PackageSuite) TestTransactionRollback(c *C) {
	conn := setupConn(c)
	defer conn.Close()
	ctx := context.Background()

	c.Assert(conn.Begin(ctx), IsNil)
	_, err := conn.Exec(ctx, "DELETE FROM people", nil)
	c.Assert(err, IsNil)
	c.Assert(conn.Rollback(ctx), IsNil)

	names := queryNames(c, conn, "SELECT name FROM people ORDER BY id", nil)
	c.Assert(names, HasLen, 4)
}

func (s *PackageSuite) TestTransactionalWithSQLite(c *C) {
	conn := setupConn(c)
	defer conn.Close()

	err := conn.Transactional(context.Background(), func(ctx context.Context) error {
		_, err := conn.Exec(ctx,
			"UPDATE people SET status = :status WHERE id = :id",
			datazen.NamedParameters{
				Values: map[string]any{"status": "retired", "id": 1},
			})
		return err
	})
	c.Assert(err, IsNil)

	names := queryNames(c, conn,
		"SELECT name FROM people WHERE status = 'retired'", nil)
	c.Assert(names, DeepEquals, []string{"Fred"})
}

func (s *PackageSuite) TestMarkersInsideLiteralsUntouched(c *C) {
	conn := setupConn(c)
	defer conn.Close()

	names := queryNames(c, conn,
		"SELECT name FROM people WHERE status = ':status' OR id = :id",
		datazen.NamedParameters{Values: map[string]any{"id": 2}})
	c.Assert(names, DeepEquals, []string{"Mark"})
}
