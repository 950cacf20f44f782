package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// Timestamps are stored as fixed-width UTC text so that string comparison
// orders them chronologically.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id                TEXT    PRIMARY KEY,
		owner_id          TEXT    NOT NULL,
		instructions      TEXT    NOT NULL DEFAULT '{}',
		status            TEXT    NOT NULL,
		interval_hours    INTEGER,
		max_executions    INTEGER NOT NULL DEFAULT 0,
		execution_count   INTEGER NOT NULL DEFAULT 0,
		last_execution_at TEXT,
		next_execution_at TEXT,
		is_active         INTEGER NOT NULL DEFAULT 1,
		started_at        TEXT,
		completed_at      TEXT,
		execution_result  TEXT,
		error             TEXT    NOT NULL DEFAULT '',
		created_at        TEXT    NOT NULL,
		updated_at        TEXT    NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_tasks_due
		ON tasks(status, is_active, next_execution_at)
		WHERE interval_hours IS NOT NULL`,

	`CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner_id)`,

	`CREATE TABLE IF NOT EXISTS postings (
		id                 TEXT    PRIMARY KEY,
		task_id            TEXT    NOT NULL,
		owner_id           TEXT    NOT NULL,
		canonical_key      TEXT    NOT NULL,
		title              TEXT    NOT NULL DEFAULT '',
		company            TEXT    NOT NULL DEFAULT '',
		location           TEXT    NOT NULL DEFAULT '',
		salary             TEXT    NOT NULL DEFAULT '',
		url                TEXT    NOT NULL DEFAULT '',
		work_type          TEXT    NOT NULL DEFAULT '',
		description        TEXT    NOT NULL DEFAULT '',
		source_platform    TEXT    NOT NULL DEFAULT '',
		posted_at          TEXT,
		match_score        INTEGER,
		analysis           TEXT,
		saved              INTEGER NOT NULL DEFAULT 0,
		application_status TEXT    NOT NULL DEFAULT 'not_applied',
		created_at         TEXT    NOT NULL,
		UNIQUE (owner_id, canonical_key)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_postings_task ON postings(task_id)`,

	`CREATE TABLE IF NOT EXISTS resumes (
		id         TEXT PRIMARY KEY,
		owner_id   TEXT NOT NULL,
		name       TEXT NOT NULL DEFAULT '',
		content    TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
}

// migrate creates or updates the database schema to the latest version.
// All DDL uses IF NOT EXISTS, making migration idempotent.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}
	return nil
}
