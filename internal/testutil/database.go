// Package testutil provides test utilities for tally: an isolated, migrated
// database and helpers to seed it with packages.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/tally/internal/loader"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/service"
	"github.com/Veraticus/tally/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database seeded with the given
// raw packages. It automatically handles migrations and cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t, packages.Feedlot("PKG-1"))
func SetupTestDB(t *testing.T, raws ...*model.RawPackage) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{Packages: raws})
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup    func(context.Context, service.Storage) error
	Packages       []*model.RawPackage
	SkipMigrations bool
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	// Create in-memory SQLite storage
	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	ctx := context.Background()

	// Register cleanup
	t.Cleanup(func() {
		_ = store.Close()
	})

	// Run migrations unless skipped
	if !opts.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
	}

	db := &TestDB{Storage: store, t: t}
	for _, raw := range opts.Packages {
		db.MustImport(raw)
	}

	// Run custom setup
	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	return db
}

// MustImport loads and saves a raw package or fails the test.
func (db *TestDB) MustImport(raw *model.RawPackage) *model.Package {
	db.t.Helper()

	res, err := loader.Normalize(raw)
	if err != nil {
		db.t.Fatalf("failed to load package: %v", err)
	}
	if err := db.Storage.SavePackage(context.Background(), raw, res.Package); err != nil {
		db.t.Fatalf("failed to save package %q: %v", raw.ID, err)
	}
	return res.Package
}
