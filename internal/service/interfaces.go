// Package service defines the interfaces for all application services.
package service

import (
	"context"

	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/queue"
)

// PackageFilter defines filtering options for package queries.
type PackageFilter struct {
	ID              string
	Period          string
	CounterpartyID  string
	Status          model.PackageStatus
	Limit           int
	Offset          int
	IncludeArchived bool
}

// ReviewItemFilter narrows cached review items. Archived packages are never
// included.
type ReviewItemFilter struct {
	PackageID      string
	Period         string
	CounterpartyID string
}

// RunResult is everything one reconciliation of a package derives. Saving it
// replaces the package's previous derived state.
type RunResult struct {
	Run           model.ReconciliationRun
	Invoices      []model.Invoice
	Discrepancies []model.Discrepancy
	Items         []model.ReviewQueueItem
	ReviewCount   int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Package operations
	SavePackage(ctx context.Context, raw *model.RawPackage, pkg *model.Package) error
	GetRawPackage(ctx context.Context, id string) (*model.RawPackage, error)
	GetPackage(ctx context.Context, id string) (*model.PackageSummary, error)
	ListPackages(ctx context.Context, filter PackageFilter) ([]model.PackageSummary, error)
	ArchivePackage(ctx context.Context, id string) error
	GetInvoices(ctx context.Context, packageID string) ([]model.Invoice, error)
	GetInvoiceDetail(ctx context.Context, packageID, invoiceID string) (*model.InvoiceDetail, error)
	GetStatementCharges(ctx context.Context, packageID string) ([]model.StatementCharge, error)

	// Override operations
	SaveOverride(ctx context.Context, override *model.Override) error
	GetOverrides(ctx context.Context, packageID string) ([]model.Override, error)

	// Derived results
	SaveRunResult(ctx context.Context, result *RunResult) error
	GetDiscrepancies(ctx context.Context, packageID string) ([]model.Discrepancy, error)
	GetReviewItems(ctx context.Context, filter ReviewItemFilter) ([]model.ReviewQueueItem, error)
	GetRuns(ctx context.Context, packageID string, limit int) ([]model.ReconciliationRun, error)
	ConsecutiveFailedRuns(ctx context.Context, packageID string) (int, error)

	// Database management
	Migrate(ctx context.Context) error
	SchemaVersion(ctx context.Context) (int, error)
	Close() error
}

// QueueWriter publishes a review queue outside the database.
type QueueWriter interface {
	Write(ctx context.Context, q *queue.Queue) error
}
