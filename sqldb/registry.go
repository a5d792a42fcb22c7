// Copyright 2024 Devscast Community.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqldb

import (
	"sync"

	"github.com/devscast/datazen"
)

// Config describes the binding conventions of a database/sql driver: the
// placeholder style it accepts, the quote escape rule of its dialect and
// whether it supports savepoints.
type Config struct {
	// Name identifies the driver in error messages.
	Name string
	// BindingStyle is the placeholder convention the driver accepts.
	BindingStyle datazen.BindingStyle
	// Escape is the quote escape rule of the driver's SQL dialect.
	Escape datazen.Escape
	// Savepoints reports whether the driver supports the standard SAVEPOINT,
	// RELEASE SAVEPOINT and ROLLBACK TO SAVEPOINT statements.
	Savepoints bool
}

// configByDriverName maps database/sql driver names to their binding
// conventions.
var configByDriverName = map[string]Config{
	"sqlite3": {
		Name:         "sqlite3",
		BindingStyle: datazen.Positional,
		Escape:       datazen.EscapeDoubling,
		Savepoints:   true,
	},
	"dqlite": {
		Name:         "dqlite",
		BindingStyle: datazen.Positional,
		Escape:       datazen.EscapeDoubling,
		Savepoints:   true,
	},
	"mysql": {
		Name:         "mysql",
		BindingStyle: datazen.Positional,
		Escape:       datazen.EscapeBackslash,
		Savepoints:   true,
	},
	"nrmysql": {
		Name:         "nrmysql",
		BindingStyle: datazen.Positional,
		Escape:       datazen.EscapeBackslash,
		Savepoints:   true,
	},
	// The sqlserver drivers take @pN markers. They use SAVE TRANSACTION
	// rather than the standard savepoint statements, so savepoints are off.
	"sqlserver": {
		Name:         "sqlserver",
		BindingStyle: datazen.Named,
		Escape:       datazen.EscapeDoubling,
	},
	"azuresql": {
		Name:         "azuresql",
		BindingStyle: datazen.Named,
		Escape:       datazen.EscapeDoubling,
	},
}

var registryMutex sync.RWMutex

// RegisterDriver adds or replaces the configuration used by Open for the
// given database/sql driver name.
func RegisterDriver(driverName string, config Config) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	configByDriverName[driverName] = config
}

// DriverConfig returns the registered configuration for a database/sql
// driver name.
func DriverConfig(driverName string) (Config, bool) {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	config, ok := configByDriverName[driverName]
	return config, ok
}
