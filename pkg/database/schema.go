package database

import (
	"context"
	"fmt"
)

// schemaStatements create the entity tables. Sets and ordered id lists are
// stored as TEXT[] columns on the owning row.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id          TEXT PRIMARY KEY,
		email       TEXT NOT NULL DEFAULT '',
		notify      BOOLEAN NOT NULL DEFAULT FALSE,
		credentials BYTEA,
		sheet_ids   TEXT[] NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS users_notify_idx ON users (notify) WHERE notify`,
	`CREATE TABLE IF NOT EXISTS sheets (
		id           TEXT PRIMARY KEY,
		title        TEXT NOT NULL DEFAULT '',
		last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		stock_ids    TEXT[] NOT NULL DEFAULT '{}',
		user_ids     TEXT[] NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS stocks (
		id        TEXT PRIMARY KEY,
		price     DOUBLE PRECISION,
		sheet_ids TEXT[] NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS sheet_stocks (
		sheet_id    TEXT NOT NULL,
		symbol      TEXT NOT NULL,
		bound_lower DOUBLE PRECISION NOT NULL,
		bound_upper DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (sheet_id, symbol)
	)`,
}

// Migrate creates the schema if it does not exist yet
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schemaStatements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
