package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied on every start; statements must stay idempotent.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
	`CREATE TABLE IF NOT EXISTS operators (
		id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deleted_at    TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		operator_id  UUID NOT NULL REFERENCES operators(id) ON DELETE CASCADE,
		first_name   TEXT NOT NULL,
		last_name    TEXT NOT NULL DEFAULT 'Resident',
		display_name TEXT NOT NULL DEFAULT '',
		grid_url     TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL DEFAULT 'offline',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deleted_at   TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS accounts_avatar_key ON accounts (operator_id, first_name, last_name) WHERE deleted_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS accounts_operator_idx ON accounts (operator_id) WHERE deleted_at IS NULL`,
}

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("error applying schema: %w", err)
		}
	}
	return nil
}
