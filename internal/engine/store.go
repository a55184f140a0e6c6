package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/tally/internal/loader"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/queue"
	"github.com/Veraticus/tally/internal/service"
)

// ErrNoPackages is returned when a stored run matches no active package.
var ErrNoPackages = errors.New("no packages to reconcile")

// Import normalizes a raw document and stores it with its extracted
// records. Records the loader rejected are reported in the result but the
// package is still stored, so its next run raises them for review.
func Import(ctx context.Context, store service.Storage, raw *model.RawPackage) (*loader.Result, error) {
	res, err := loader.Normalize(raw)
	if err != nil {
		return nil, err
	}
	if err := store.SavePackage(ctx, raw, res.Package); err != nil {
		return nil, err
	}
	slog.Info("Imported package",
		"package_id", res.Package.ID,
		"invoices", len(res.Package.Invoices),
		"charges", len(res.Package.Charges),
		"rejected", len(res.Failures))
	return res, nil
}

// ReconcileStored reconciles the active stored packages matching filter and
// publishes each package's derived state. Packages that finished before a
// cancellation are still published.
func (e *Engine) ReconcileStored(ctx context.Context, store service.Storage, filter service.PackageFilter) (*Report, error) {
	filter.IncludeArchived = false
	summaries, err := store.ListPackages(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	if len(summaries) == 0 {
		return nil, ErrNoPackages
	}

	inputs := make([]Input, 0, len(summaries))
	for _, s := range summaries {
		in, err := storedInput(ctx, store, s.ID)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}

	report, runErr := e.Run(ctx, inputs)
	if report == nil {
		return nil, runErr
	}

	// Publishing uses a fresh context so a cancelled run still records the
	// packages it finished.
	saveCtx := context.WithoutCancel(ctx)
	for _, res := range report.Results {
		if err := store.SaveRunResult(saveCtx, RunResult(res, report)); err != nil {
			return report, fmt.Errorf("failed to save results for package %s: %w", res.PackageID, err)
		}
	}
	for _, pe := range report.Errors {
		slog.Warn("Stored package could not be loaded",
			"package_id", summaries[pe.Position].ID,
			"error", pe.Message)
	}

	return report, runErr
}

func storedInput(ctx context.Context, store service.Storage, id string) (Input, error) {
	raw, err := store.GetRawPackage(ctx, id)
	if err != nil {
		return Input{}, fmt.Errorf("failed to load package %s: %w", id, err)
	}
	overrides, err := store.GetOverrides(ctx, id)
	if err != nil {
		return Input{}, fmt.Errorf("failed to load overrides for package %s: %w", id, err)
	}
	prior, err := store.ConsecutiveFailedRuns(ctx, id)
	if err != nil {
		return Input{}, fmt.Errorf("failed to load run history for package %s: %w", id, err)
	}
	return Input{Raw: raw, Overrides: overrides, PriorFailedRuns: prior}, nil
}

// RunResult converts one package's outcome into the record storage
// publishes.
func RunResult(res PackageResult, report *Report) *service.RunResult {
	return &service.RunResult{
		Run: model.ReconciliationRun{
			RunAt:            report.ProducedAt,
			PackageID:        res.PackageID,
			Status:           res.Status,
			DiscrepancyCount: len(res.Discrepancies),
			FailureCount:     len(res.Failures),
		},
		Invoices:      res.Invoices,
		Discrepancies: res.Discrepancies,
		Items:         res.Items,
		ReviewCount:   res.ReviewCount,
	}
}

// StoredQueue rebuilds the review queue from the items the latest runs
// published, restricted to scope.
func (e *Engine) StoredQueue(ctx context.Context, store service.Storage, scope queue.Scope) (*queue.Queue, error) {
	return e.StoredQueueRecent(ctx, store, scope, e.policy.RecentItems)
}

// StoredQueueRecent is StoredQueue with an explicit recent-items count. A
// count of zero or less falls back to the policy.
func (e *Engine) StoredQueueRecent(ctx context.Context, store service.Storage, scope queue.Scope, recent int) (*queue.Queue, error) {
	if recent <= 0 {
		recent = e.policy.RecentItems
	}
	items, err := store.GetReviewItems(ctx, service.ReviewItemFilter{
		Period:         scope.Period,
		CounterpartyID: scope.CounterpartyID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load review items: %w", err)
	}
	return queue.Build(items, scope, recent), nil
}
