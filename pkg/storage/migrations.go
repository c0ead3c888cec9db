package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is valid for both PostgreSQL and SQLite. JSON payloads are kept in
// TEXT columns so the same statements serve both drivers.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS permissions (
		permission_id TEXT PRIMARY KEY,
		permission_key TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		aws_account_id TEXT NOT NULL,
		permission_set_name_id TEXT NOT NULL,
		managed_policy_names TEXT NOT NULL DEFAULT '[]',
		custom_policy_names TEXT NOT NULL DEFAULT '[]',
		session_duration TEXT NOT NULL DEFAULT '',
		group_id TEXT NOT NULL DEFAULT '',
		permission_set_arn TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_permissions_account_name
		ON permissions (aws_account_id, name)`,
	`CREATE TABLE IF NOT EXISTS approval_requests (
		request_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		request_user_id TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_approval_requests_status
		ON approval_requests (status)`,
}

// Migrate creates the tables and indexes if they do not exist
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
