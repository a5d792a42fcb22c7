package mysqldemo

import (
	"context"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/devscast/datazen"
	"github.com/devscast/datazen/sqldb"
)

// example runs the binding layer against a MySQL server. The mysql dialect
// escapes quotes with a backslash, which the registered "mysql" configuration
// selects, so markers inside literals like 'it''s \':ok\'' are left alone.
func example(dsn string) error {
	drv, err := sqldb.Open("mysql", dsn)
	if err != nil {
		return err
	}
	conn, err := datazen.Connect(drv)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx := context.Background()
	_, err = conn.Exec(ctx, "CREATE TABLE IF NOT EXISTS tags (name varchar(64))", nil)
	if err != nil {
		return err
	}

	err = conn.Transactional(ctx, func(ctx context.Context) error {
		for _, name := range []string{"go", "sql", "mysql"} {
			_, err := conn.Exec(ctx, "INSERT INTO tags (name) VALUES (:name)",
				datazen.NamedParameters{Values: map[string]any{"name": name}})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	rows, err := conn.Query(ctx, "SELECT name FROM tags WHERE name IN (:names)",
		datazen.NamedParameters{
			Values: map[string]any{"names": []any{"go", "sql"}},
			Types:  map[string]datazen.Type{"names": datazen.Array(datazen.String)},
		})
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		fmt.Println(name)
	}
	return rows.Err()
}

func main() {
	err := example("root@tcp(127.0.0.1:3306)/demo")
	if err != nil {
		panic(err)
	}
}
