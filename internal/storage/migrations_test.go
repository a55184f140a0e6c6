package storage

import (
	"context"
	"testing"
)

func TestMigrate_ReachesExpectedVersion(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	version, err := store.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != ExpectedSchemaVersion {
		t.Errorf("SchemaVersion() = %d, want %d", version, ExpectedSchemaVersion)
	}

	// Migrating twice is a no-op
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrate_CreatesTables(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	tables := []string{
		"packages", "invoices", "line_items", "statement_charges",
		"overrides", "reconciliation_runs", "discrepancies", "review_items",
		"invoice_checks",
	}
	for _, table := range tables {
		t.Run(table, func(t *testing.T) {
			var count int
			err := store.db.QueryRow(`
				SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?
			`, table).Scan(&count)
			if err != nil {
				t.Fatalf("Failed to check table: %v", err)
			}
			if count != 1 {
				t.Errorf("table %s was not created", table)
			}
		})
	}
}

func TestMigrate_Versions(t *testing.T) {
	if len(migrations) != ExpectedSchemaVersion {
		t.Fatalf("have %d migrations, want %d", len(migrations), ExpectedSchemaVersion)
	}
	for i, m := range migrations {
		if m.Version != i+1 {
			t.Errorf("migration at index %d has version %d", i, m.Version)
		}
		if m.Description == "" {
			t.Errorf("migration %d has no description", m.Version)
		}
	}
}

func TestMigrate_ForeignKeysEnforced(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	_, err := store.db.Exec(`
		INSERT INTO statement_charges (package_id, position, key, amount) VALUES ('missing', 0, 'K', 100)
	`)
	if err == nil {
		t.Error("expected foreign key violation inserting a charge without its package")
	}
}
