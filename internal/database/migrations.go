package database

import (
	"context"
	"database/sql"
	"fmt"

	"log/slog"
)

// migrations run in order; each entry is applied once and recorded in
// schema_migrations by name.
var migrations = []struct {
	name string
	sql  string
}{
	{
		name: "001_create_vault_secrets",
		sql: `
			CREATE TABLE IF NOT EXISTS vault_secrets (
				id UUID PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				ciphertext BYTEA NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL,
				created_at TIMESTAMPTZ NOT NULL
			)`,
	},
	{
		name: "002_create_connectors",
		sql: `
			CREATE TABLE IF NOT EXISTS connectors (
				id UUID PRIMARY KEY,
				organization_id TEXT NOT NULL,
				provider TEXT NOT NULL,
				category TEXT NOT NULL,
				name TEXT NOT NULL,
				config JSONB NOT NULL DEFAULT '{}',
				credential_refs JSONB NOT NULL DEFAULT '{}',
				active BOOLEAN NOT NULL DEFAULT TRUE,
				last_used_at TIMESTAMPTZ,
				last_error TEXT NOT NULL DEFAULT '',
				rate_per_hour INTEGER NOT NULL DEFAULT 0,
				rate_per_day INTEGER NOT NULL DEFAULT 0,
				updated_at TIMESTAMPTZ NOT NULL,
				created_at TIMESTAMPTZ NOT NULL
			)`,
	},
	{
		name: "003_create_usage_events",
		sql: `
			CREATE TABLE IF NOT EXISTS usage_events (
				id BIGSERIAL PRIMARY KEY,
				connector_id UUID NOT NULL,
				operation TEXT NOT NULL,
				occurred_at TIMESTAMPTZ NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_usage_events_connector_time
				ON usage_events (connector_id, occurred_at)`,
	},
	{
		name: "004_index_connectors_org",
		sql: `
			CREATE INDEX IF NOT EXISTS idx_connectors_org
				ON connectors (organization_id)`,
	},
}

// Migrate applies all pending migrations.
func Migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	pending := 0
	for _, m := range migrations {
		if applied[m.name] {
			continue
		}

		if _, err := db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.name, err)
		}
		if _, err := db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.name); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", m.name, err)
		}

		logger.Info("applied migration", "version", m.name)
		pending++
	}

	if pending == 0 {
		logger.Info("no pending migrations")
	}

	return nil
}
