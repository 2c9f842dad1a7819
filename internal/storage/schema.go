package storage

import (
	"context"
	"fmt"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS members (
		id UUID PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		number_of_active_offers INT NOT NULL DEFAULT 0,
		version INT NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS offer_types (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		expiration_type TEXT NOT NULL,
		days_valid INT NOT NULL CHECK (days_valid >= 0),
		begin_date TEXT
	);

	CREATE TABLE IF NOT EXISTS offers (
		id UUID PRIMARY KEY,
		member_id UUID NOT NULL REFERENCES members(id),
		offer_type_id UUID NOT NULL REFERENCES offer_types(id),
		position INT NOT NULL,
		date_expiring TEXT NOT NULL,
		value BIGINT NOT NULL,
		UNIQUE (member_id, position)
	);

	CREATE TABLE IF NOT EXISTS events (
		id BIGSERIAL PRIMARY KEY,
		aggregate_id UUID NOT NULL,
		aggregate_type TEXT NOT NULL,
		event_type TEXT NOT NULL,
		event_data JSONB NOT NULL,
		version INT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (aggregate_id, version)
	);
`

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		number_of_active_offers INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS offer_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		expiration_type TEXT NOT NULL,
		days_valid INTEGER NOT NULL CHECK (days_valid >= 0),
		begin_date TEXT
	);

	CREATE TABLE IF NOT EXISTS offers (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL REFERENCES members(id),
		offer_type_id TEXT NOT NULL REFERENCES offer_types(id),
		position INTEGER NOT NULL,
		date_expiring TEXT NOT NULL,
		value INTEGER NOT NULL,
		UNIQUE (member_id, position)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		aggregate_id TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		event_type TEXT NOT NULL,
		event_data TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE (aggregate_id, version)
	);
`

// InitSchema creates the tables if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	schema := postgresSchema
	if s.db.DriverName() == DriverSQLite {
		schema = sqliteSchema
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
