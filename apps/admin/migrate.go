package main

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/theepangnani/emai-dev-03-sub000/storage/database"
)

var migrateFuncs = map[string]func(db *sqlx.DB) error{ // mockable
	"up":     database.Migrate,
	"down":   database.Rollback,
	"status": database.MigrationStatus,
}

func (cli *commandLine) migrate(command string) error {
	fn, ok := migrateFuncs[command]
	if !ok {
		return fmt.Errorf("%q: no such command", command)
	}
	if cli.db == nil {
		return errNoDatabase
	}
	return fn(cli.db)
}
