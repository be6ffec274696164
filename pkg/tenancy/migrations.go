package tenancy

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates the tenant graph schema if it does not exist. Safe to run
// on every startup; all statements are idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS agencies (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			company_email TEXT NOT NULL,
			white_label   BOOLEAN NOT NULL DEFAULT false,
			plan          TEXT NOT NULL DEFAULT '',
			agency_logo   TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS sub_accounts (
			id               TEXT PRIMARY KEY,
			agency_id        TEXT NOT NULL REFERENCES agencies(id) ON DELETE CASCADE,
			name             TEXT NOT NULL,
			company_email    TEXT NOT NULL DEFAULT '',
			sub_account_logo TEXT NOT NULL DEFAULT '',
			created_at       TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at       TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sub_accounts_agency_id ON sub_accounts(agency_id)`,
		`CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			email      TEXT NOT NULL UNIQUE,
			avatar_url TEXT NOT NULL DEFAULT '',
			role       TEXT NOT NULL,
			agency_id  TEXT REFERENCES agencies(id) ON DELETE CASCADE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,
		// At most one AGENCY_OWNER per agency.
		`CREATE UNIQUE INDEX IF NOT EXISTS users_one_owner_per_agency
			ON users(agency_id) WHERE role = 'AGENCY_OWNER'`,
		`CREATE TABLE IF NOT EXISTS permissions (
			id             TEXT PRIMARY KEY,
			email          TEXT NOT NULL,
			sub_account_id TEXT NOT NULL REFERENCES sub_accounts(id) ON DELETE CASCADE,
			access         BOOLEAN NOT NULL DEFAULT false,
			UNIQUE (email, sub_account_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_permissions_email ON permissions(email)`,
		`CREATE TABLE IF NOT EXISTS invitations (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL UNIQUE,
			agency_id  TEXT NOT NULL REFERENCES agencies(id) ON DELETE CASCADE,
			role       TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'PENDING',
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id             TEXT PRIMARY KEY,
			notification   TEXT NOT NULL,
			user_id        TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			agency_id      TEXT NOT NULL REFERENCES agencies(id) ON DELETE CASCADE,
			sub_account_id TEXT REFERENCES sub_accounts(id) ON DELETE CASCADE,
			created_at     TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_agency_created
			ON notifications(agency_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS sidebar_options (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL,
			icon           TEXT NOT NULL DEFAULT '',
			link           TEXT NOT NULL,
			agency_id      TEXT REFERENCES agencies(id) ON DELETE CASCADE,
			sub_account_id TEXT REFERENCES sub_accounts(id) ON DELETE CASCADE,
			created_at     TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sidebar_options_agency_id ON sidebar_options(agency_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sidebar_options_sub_account_id ON sidebar_options(sub_account_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}
