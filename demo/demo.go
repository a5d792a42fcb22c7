package demo

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/devscast/datazen"
	"github.com/devscast/datazen/sqldb"
)

func example() error {
	drv, err := sqldb.Open("sqlite3", "file:demo?mode=memory")
	if err != nil {
		return err
	}
	if plain, ok := drv.(interface{ PlainDB() *sql.DB }); ok {
		// An in-memory sqlite database exists per connection.
		plain.PlainDB().SetMaxOpenConns(1)
	}
	conn, err := datazen.Connect(drv)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx := context.Background()
	_, err = conn.Exec(ctx, `
		CREATE TABLE people (
			name text,
			height_cm integer,
			home_town text
		);`, nil)
	if err != nil {
		return err
	}

	people := []map[string]any{
		{"name": "Jim", "height_cm": 150, "home_town": "Kabul"},
		{"name": "Saba", "height_cm": 162, "home_town": "Berlin"},
		{"name": "Dave", "height_cm": 169, "home_town": "Brasília"},
		{"name": "Sophie", "height_cm": 174, "home_town": "Berlin"},
		{"name": "Kiri", "height_cm": 168, "home_town": "Cape Town"},
	}

	// Insert the people inside a single transaction.
	err = conn.Transactional(ctx, func(ctx context.Context) error {
		for _, person := range people {
			_, err := conn.Exec(ctx, `
				INSERT INTO people (name, height_cm, home_town)
				VALUES (:name, :height_cm, :home_town);`,
				datazen.NamedParameters{Values: person})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Find people taller than Jim.
	rows, err := conn.Query(ctx, `
		SELECT name FROM people WHERE height_cm > :height`,
		datazen.NamedParameters{
			Values: map[string]any{"height": 150},
			Types:  map[string]datazen.Type{"height": datazen.Integer},
		})
	if err != nil {
		return err
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		fmt.Printf("%s is taller than Jim.\n", name)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	// Find people from a set of towns using an array parameter.
	rows, err = conn.Query(ctx, `
		SELECT name FROM people WHERE home_town IN (:towns)`,
		datazen.NamedParameters{
			Values: map[string]any{"towns": []any{"Berlin", "Cape Town"}},
			Types:  map[string]datazen.Type{"towns": datazen.Array(datazen.String)},
		})
	if err != nil {
		return err
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		fmt.Printf("%s lives in Berlin or Cape Town.\n", name)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	// A nested transaction rolls back to its savepoint without losing the
	// surrounding work.
	err = conn.Transactional(ctx, func(ctx context.Context) error {
		_, err := conn.Exec(ctx,
			"UPDATE people SET height_cm = :h WHERE name = :name",
			datazen.NamedParameters{Values: map[string]any{"h": 151, "name": "Jim"}})
		if err != nil {
			return err
		}
		discarded := conn.Transactional(ctx, func(ctx context.Context) error {
			_, err := conn.Exec(ctx, "DELETE FROM people", nil)
			if err != nil {
				return err
			}
			return fmt.Errorf("changed my mind")
		})
		fmt.Printf("inner transaction discarded: %v\n", discarded)
		return nil
	})
	return err
}

func main() {
	err := example()
	if err != nil {
		panic(err)
	}
}
