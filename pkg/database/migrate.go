package database

import (
	"embed"
	"fmt"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Migrate applies the schema for the handle's dialect. Every statement is
// idempotent, so it is safe to run on each start.
func Migrate(db *DB) error {
	name := "schema/sqlite.sql"
	if db.Driver == DriverPostgres {
		name = "schema/postgres.sql"
	}

	b, err := schemaFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}

	if _, err := db.Exec(string(b)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
