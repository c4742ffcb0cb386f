package store

import (
	"database/sql"
	"fmt"
)

// InitMigration initializes the store schema. In production this would use a
// proper migration library like go-migrate.
func InitMigration(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS monitors (
			id TEXT PRIMARY KEY,
			owner_id BIGINT NOT NULL,
			display_name TEXT NOT NULL,
			address TEXT NOT NULL,
			balance NUMERIC(24,7) NOT NULL DEFAULT 0,
			watermark BIGINT NOT NULL DEFAULT 0,
			total_transactions_seen BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_monitors_owner ON monitors (owner_id)`,
		`CREATE TABLE IF NOT EXISTS balance_history (
			monitor_id TEXT NOT NULL REFERENCES monitors (id) ON DELETE CASCADE,
			balance NUMERIC(24,7) NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_balance_history_monitor ON balance_history (monitor_id, recorded_at DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
