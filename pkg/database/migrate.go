package database

import (
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schema string

// SchemaVersion is stored in PRAGMA user_version after a successful Migrate.
// Bump it whenever schema.sql changes shape.
const SchemaVersion = 1

// Migrate applies the embedded schema. Every statement is idempotent, and a
// database already at SchemaVersion is left alone. Files written by a newer
// build are refused.
func Migrate(db *sql.DB) error {
	current, err := Version(db)
	if err != nil {
		return err
	}
	switch {
	case current == SchemaVersion:
		return nil
	case current > SchemaVersion:
		return fmt.Errorf("schema version %d is newer than supported %d", current, SchemaVersion)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migrate: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return tx.Commit()
}

// Version reports the schema version recorded in the file, 0 for a fresh one.
func Version(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}
