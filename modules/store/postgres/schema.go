package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaVersion = 1

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id                TEXT        PRIMARY KEY,
		owner_id          TEXT        NOT NULL,
		instructions      JSONB       NOT NULL DEFAULT '{}',
		status            TEXT        NOT NULL,
		interval_hours    INTEGER,
		max_executions    INTEGER     NOT NULL DEFAULT 0,
		execution_count   INTEGER     NOT NULL DEFAULT 0,
		last_execution_at TIMESTAMPTZ,
		next_execution_at TIMESTAMPTZ,
		is_active         BOOLEAN     NOT NULL DEFAULT TRUE,
		started_at        TIMESTAMPTZ,
		completed_at      TIMESTAMPTZ,
		execution_result  JSONB,
		error             TEXT        NOT NULL DEFAULT '',
		created_at        TIMESTAMPTZ NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_tasks_due
		ON tasks (status, is_active, next_execution_at)
		WHERE interval_hours IS NOT NULL`,

	`CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks (owner_id)`,

	`CREATE TABLE IF NOT EXISTS postings (
		id                 TEXT        PRIMARY KEY,
		task_id            TEXT        NOT NULL,
		owner_id           TEXT        NOT NULL,
		canonical_key      TEXT        NOT NULL,
		title              TEXT        NOT NULL DEFAULT '',
		company            TEXT        NOT NULL DEFAULT '',
		location           TEXT        NOT NULL DEFAULT '',
		salary             TEXT        NOT NULL DEFAULT '',
		url                TEXT        NOT NULL DEFAULT '',
		work_type          TEXT        NOT NULL DEFAULT '',
		description        TEXT        NOT NULL DEFAULT '',
		source_platform    TEXT        NOT NULL DEFAULT '',
		posted_at          TIMESTAMPTZ,
		match_score        INTEGER,
		analysis           JSONB,
		saved              BOOLEAN     NOT NULL DEFAULT FALSE,
		application_status TEXT        NOT NULL DEFAULT 'not_applied',
		created_at         TIMESTAMPTZ NOT NULL,
		UNIQUE (owner_id, canonical_key)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_postings_task ON postings (task_id)`,

	`CREATE TABLE IF NOT EXISTS resumes (
		id         TEXT        PRIMARY KEY,
		owner_id   TEXT        NOT NULL,
		name       TEXT        NOT NULL DEFAULT '',
		content    TEXT        NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
}

// migrate applies schemaStatements once per schema version.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("postgres: create schema_version: %w", err)
	}

	var current int
	if err := pool.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("postgres: read schema version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := pool.Exec(ctx,
		"INSERT INTO schema_version (version) VALUES ($1) ON CONFLICT DO NOTHING", schemaVersion); err != nil {
		return fmt.Errorf("postgres: record schema version: %w", err)
	}
	return nil
}
