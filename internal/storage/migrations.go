package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS packages (
					id TEXT PRIMARY KEY,
					period TEXT NOT NULL DEFAULT '',
					counterparty_id TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL DEFAULT 'pending',
					declared_total INTEGER NOT NULL DEFAULT 0,
					statement_total INTEGER,
					invoice_count INTEGER NOT NULL DEFAULT 0,
					charge_count INTEGER NOT NULL DEFAULT 0,
					review_count INTEGER NOT NULL DEFAULT 0,
					raw_document TEXT NOT NULL,
					created_at DATETIME NOT NULL,
					last_reconciled_at DATETIME,
					archived_at DATETIME
				)`,
				`CREATE INDEX idx_packages_period ON packages(period)`,
				`CREATE INDEX idx_packages_status ON packages(status)`,

				`CREATE TABLE IF NOT EXISTS invoices (
					package_id TEXT NOT NULL,
					position INTEGER NOT NULL,
					invoice_id TEXT NOT NULL DEFAULT '',
					key TEXT NOT NULL,
					declared_total INTEGER NOT NULL,
					confidence TEXT,
					consistent INTEGER,
					PRIMARY KEY (package_id, position),
					FOREIGN KEY (package_id) REFERENCES packages(id)
				)`,
				`CREATE INDEX idx_invoices_lookup ON invoices(package_id, invoice_id)`,
				`CREATE INDEX idx_invoices_key ON invoices(package_id, key)`,

				`CREATE TABLE IF NOT EXISTS line_items (
					package_id TEXT NOT NULL,
					invoice_position INTEGER NOT NULL,
					position INTEGER NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					amount INTEGER NOT NULL,
					PRIMARY KEY (package_id, invoice_position, position),
					FOREIGN KEY (package_id, invoice_position) REFERENCES invoices(package_id, position)
				)`,

				`CREATE TABLE IF NOT EXISTS statement_charges (
					package_id TEXT NOT NULL,
					position INTEGER NOT NULL,
					key TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					amount INTEGER NOT NULL,
					confidence REAL NOT NULL DEFAULT 0,
					PRIMARY KEY (package_id, position),
					FOREIGN KEY (package_id) REFERENCES packages(id)
				)`,
				`CREATE INDEX idx_statement_charges_key ON statement_charges(package_id, key)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add operator overrides and run history",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS overrides (
					id TEXT PRIMARY KEY,
					package_id TEXT NOT NULL,
					key TEXT NOT NULL,
					author TEXT NOT NULL,
					note TEXT NOT NULL DEFAULT '',
					original_invoice_total INTEGER NOT NULL,
					original_charge_amount INTEGER NOT NULL,
					corrected_amount INTEGER NOT NULL,
					created_at DATETIME NOT NULL,
					FOREIGN KEY (package_id) REFERENCES packages(id)
				)`,
				`CREATE INDEX idx_overrides_package ON overrides(package_id, key)`,

				`CREATE TABLE IF NOT EXISTS reconciliation_runs (
					seq INTEGER PRIMARY KEY AUTOINCREMENT,
					id TEXT UNIQUE NOT NULL,
					package_id TEXT NOT NULL,
					status TEXT NOT NULL,
					discrepancy_count INTEGER NOT NULL DEFAULT 0,
					failure_count INTEGER NOT NULL DEFAULT 0,
					run_at DATETIME NOT NULL,
					FOREIGN KEY (package_id) REFERENCES packages(id)
				)`,
				`CREATE INDEX idx_runs_package ON reconciliation_runs(package_id, seq)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Add derived discrepancy and review item cache",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS discrepancies (
					package_id TEXT NOT NULL,
					key TEXT NOT NULL,
					kind TEXT NOT NULL,
					severity TEXT NOT NULL,
					payload TEXT NOT NULL,
					PRIMARY KEY (package_id, key),
					FOREIGN KEY (package_id) REFERENCES packages(id)
				)`,

				`CREATE TABLE IF NOT EXISTS review_items (
					package_id TEXT NOT NULL,
					seq INTEGER NOT NULL,
					period TEXT NOT NULL DEFAULT '',
					counterparty_id TEXT NOT NULL DEFAULT '',
					reason TEXT NOT NULL,
					urgent INTEGER NOT NULL DEFAULT 0,
					amount INTEGER NOT NULL DEFAULT 0,
					produced_at DATETIME NOT NULL,
					payload TEXT NOT NULL,
					PRIMARY KEY (package_id, seq),
					FOREIGN KEY (package_id) REFERENCES packages(id)
				)`,
				`CREATE INDEX idx_review_items_scope ON review_items(period, counterparty_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     4,
		Description: "Move invoice consistency into the derived cache",
		Up: func(tx *sql.Tx) error {
			// Extracted invoices stay as imported; each run rewrites these checks.
			queries := []string{
				`CREATE TABLE IF NOT EXISTS invoice_checks (
					package_id TEXT NOT NULL,
					position INTEGER NOT NULL,
					consistent INTEGER NOT NULL,
					PRIMARY KEY (package_id, position),
					FOREIGN KEY (package_id, position) REFERENCES invoices(package_id, position)
				)`,
				`INSERT INTO invoice_checks (package_id, position, consistent)
					SELECT package_id, position, consistent FROM invoices WHERE consistent IS NOT NULL`,
				`ALTER TABLE invoices DROP COLUMN consistent`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// SchemaVersion returns the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// Update version
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
