package dqlitedemo

import (
	"context"
	"fmt"
	"os"

	"github.com/canonical/go-dqlite/app"

	"github.com/devscast/datazen"
	"github.com/devscast/datazen/sqldb"
)

// example runs the binding layer against a single node dqlite cluster. The
// dqlite driver speaks the sqlite dialect, so the registered "dqlite"
// configuration applies.
func example() error {
	dir, err := os.MkdirTemp("", "dqlite-demo-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	ctx := context.Background()
	dqapp, err := app.New(dir, app.WithAddress("127.0.0.1:9001"))
	if err != nil {
		return err
	}
	defer dqapp.Close()
	if err := dqapp.Ready(ctx); err != nil {
		return err
	}

	db, err := dqapp.Open(ctx, "demo")
	if err != nil {
		return err
	}

	config, ok := sqldb.DriverConfig("dqlite")
	if !ok {
		return fmt.Errorf("dqlite driver is not registered")
	}
	conn, err := datazen.Connect(sqldb.New(db, config))
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Exec(ctx, "CREATE TABLE IF NOT EXISTS model (name text, value text)", nil)
	if err != nil {
		return err
	}

	err = conn.Transactional(ctx, func(ctx context.Context) error {
		_, err := conn.Exec(ctx,
			"INSERT INTO model (name, value) VALUES (:name, :value)",
			datazen.NamedParameters{
				Values: map[string]any{"name": "replicas", "value": "3"},
			})
		return err
	})
	if err != nil {
		return err
	}

	rows, err := conn.Query(ctx,
		"SELECT value FROM model WHERE name IN (:names)",
		datazen.NamedParameters{
			Values: map[string]any{"names": []any{"replicas", "region"}},
			Types:  map[string]datazen.Type{"names": datazen.Array(datazen.String)},
		})
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return err
		}
		fmt.Printf("replicas: %s\n", value)
	}
	return rows.Err()
}

func main() {
	err := example()
	if err != nil {
		panic(err)
	}
}
