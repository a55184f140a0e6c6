// Package engine runs the reconciliation pipeline over batches of packages.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Veraticus/tally/internal/classify"
	"github.com/Veraticus/tally/internal/config"
	"github.com/Veraticus/tally/internal/loader"
	"github.com/Veraticus/tally/internal/match"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/queue"
	"github.com/Veraticus/tally/internal/status"
	"github.com/Veraticus/tally/internal/validate"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Input is one package to reconcile.
type Input struct {
	Raw       *model.RawPackage
	Overrides []model.Override
	// PriorFailedRuns counts consecutive non-complete runs before this one.
	PriorFailedRuns int
}

// PackageResult is the derived state for one package. Package is the loaded
// record; everything else is recomputed on every run.
type PackageResult struct {
	Package       *model.Package             `json:"-"`
	MatchCounts   map[model.MatchKind]int    `json:"match_counts"`
	PackageID     string                     `json:"package_id"`
	Period        string                     `json:"period"`
	Counterparty  string                     `json:"counterparty_id"`
	Status        model.PackageStatus        `json:"status"`
	BlockReason   string                     `json:"block_reason,omitempty"`
	Invoices      []model.Invoice            `json:"invoices"`
	Failures      []model.ValidationFailure  `json:"failures"`
	Discrepancies []model.Discrepancy        `json:"discrepancies"`
	Overrides     []classify.OverrideOutcome `json:"overrides"`
	Items         []model.ReviewQueueItem    `json:"items"`
	ReviewCount   int                        `json:"review_count"`
}

// PackageError reports a document that could not be loaded at all.
type PackageError struct {
	Err      error  `json:"-"`
	Message  string `json:"error"`
	Position int    `json:"position"`
}

// Summary counts packages by outcome.
type Summary struct {
	Packages int `json:"packages"`
	Complete int `json:"complete"`
	Review   int `json:"review"`
	Blocked  int `json:"blocked"`
	Errors   int `json:"errors"`
}

// Report is the outcome of one batch run. Results follow input order.
type Report struct {
	ProducedAt time.Time       `json:"produced_at"`
	Queue      *queue.Queue    `json:"queue"`
	Results    []PackageResult `json:"results"`
	Errors     []PackageError  `json:"errors"`
	Summary    Summary         `json:"summary"`
}

// ProgressFunc is called after each package finishes.
type ProgressFunc func(done, total int)

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used to stamp queue items.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) { e.progress = fn }
}

// WithMetrics shares a metrics recorder across engines.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracer overrides the global otel tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// Engine reconciles packages under a fixed policy.
type Engine struct {
	tracer   trace.Tracer
	metrics  *Metrics
	now      func() time.Time
	progress ProgressFunc
	policy   config.Policy
}

// New validates the policy and builds an engine. An invalid policy fails
// here, before any package is touched.
func New(policy config.Policy, opts ...Option) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		policy:  policy,
		metrics: NewMetrics(),
		now:     time.Now,
		tracer:  otel.Tracer("github.com/Veraticus/tally/internal/engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Policy returns the engine's policy.
func (e *Engine) Policy() config.Policy {
	return e.policy
}

// Metrics returns the engine's stage metrics.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Run reconciles every input. Packages run in parallel, bounded by the
// policy's worker count. Cancelling ctx stops new packages from starting;
// the returned report then holds the packages that finished, along with
// ctx's error.
func (e *Engine) Run(ctx context.Context, inputs []Input) (*Report, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Run", trace.WithAttributes(attribute.Int("packages", len(inputs))))
	defer span.End()

	start := time.Now()
	producedAt := e.now().UTC()
	slog.Info("Starting reconciliation run", "packages", len(inputs), "workers", e.policy.Workers)

	slots := make([]*PackageResult, len(inputs))
	loadErrs := make([]error, len(inputs))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.policy.Workers)

	for i := range inputs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := e.reconcile(gctx, inputs[i])
			if err != nil {
				loadErrs[i] = err
			} else {
				slots[i] = res
			}
			if e.progress != nil {
				e.progress(int(done.Add(1)), len(inputs))
			}
			return nil
		})
	}
	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	report := e.assemble(slots, loadErrs, producedAt)

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "run aborted")
		slog.Warn("Reconciliation run aborted", "error", runErr, "finished", len(report.Results))
		return report, fmt.Errorf("reconciliation aborted: %w", runErr)
	}

	slog.Info("Reconciliation run complete",
		"packages", report.Summary.Packages,
		"complete", report.Summary.Complete,
		"review", report.Summary.Review,
		"blocked", report.Summary.Blocked,
		"errors", report.Summary.Errors,
		"duration", time.Since(start))
	return report, nil
}

// assemble publishes finished packages in input order. Queue sequence
// numbers are assigned here so they do not depend on worker scheduling.
func (e *Engine) assemble(slots []*PackageResult, loadErrs []error, producedAt time.Time) *Report {
	report := &Report{ProducedAt: producedAt, Results: []PackageResult{}, Errors: []PackageError{}}
	var all []model.ReviewQueueItem
	seq := 0

	for i, res := range slots {
		if err := loadErrs[i]; err != nil {
			report.Errors = append(report.Errors, PackageError{Err: err, Message: err.Error(), Position: i})
			report.Summary.Errors++
			continue
		}
		if res == nil {
			continue
		}

		res.Items = queue.Items(res.Package, res.Failures, res.Discrepancies, e.policy.UrgencyFloor, producedAt, seq)
		seq += len(res.Items)
		all = append(all, res.Items...)

		report.Results = append(report.Results, *res)
		report.Summary.Packages++
		switch res.Status {
		case model.StatusComplete:
			report.Summary.Complete++
		case model.StatusBlocked:
			report.Summary.Blocked++
		default:
			report.Summary.Review++
		}
	}

	report.Queue = queue.Build(all, queue.Scope{}, e.policy.RecentItems)
	return report
}

// Reconcile runs the pipeline for a single package.
func (e *Engine) Reconcile(ctx context.Context, in Input) (*PackageResult, error) {
	res, err := e.reconcile(ctx, in)
	if err != nil {
		return nil, err
	}
	res.Items = queue.Items(res.Package, res.Failures, res.Discrepancies, e.policy.UrgencyFloor, e.now().UTC(), 0)
	return res, nil
}

func (e *Engine) reconcile(ctx context.Context, in Input) (*PackageResult, error) {
	_, span := e.tracer.Start(ctx, "engine.reconcile")
	defer span.End()
	pkgStart := time.Now()

	t := time.Now()
	loaded, err := loader.Normalize(in.Raw)
	e.metrics.Observe(StageLoad, time.Since(t))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		slog.Warn("Skipping package that could not be loaded", "error", err)
		return nil, err
	}
	pkg := loaded.Package
	span.SetAttributes(attribute.String("package.id", pkg.ID))

	t = time.Now()
	validated := validate.Validate(pkg, validate.Options{
		RejectedKeys: loaded.RejectedKeys,
		Epsilon:      e.policy.LineItemEpsilon,
	})
	e.metrics.Observe(StageValidate, time.Since(t))

	t = time.Now()
	matches := match.Match(validated.Invoices, validated.Charges)
	e.metrics.Observe(StageMatch, time.Since(t))

	t = time.Now()
	classified := classify.Classify(matches, in.Overrides, classify.Options{
		UrgencyFloor:          e.policy.UrgencyFloor,
		MaterialityThreshold:  e.policy.MaterialityThreshold,
		MaxDigitSubstitutions: e.policy.MaxDigitSubstitutions,
		StatementCrossCheck:   pkg.HasStatementCrossCheck(),
	})
	e.metrics.Observe(StageClassify, time.Since(t))

	failures := make([]model.ValidationFailure, 0, len(loaded.Failures)+len(validated.Failures))
	failures = append(failures, loaded.Failures...)
	failures = append(failures, validated.Failures...)

	t = time.Now()
	outcome := status.Aggregate(status.Input{
		Discrepancies:   classified.Discrepancies,
		Failures:        failures,
		PriorFailedRuns: in.PriorFailedRuns,
	}, status.Escalation{
		BlockingKinds:           e.policy.Escalation.BlockingKinds,
		MissingCounterpartLimit: e.policy.Escalation.MissingCounterpartLimit,
		MaxFailedRuns:           e.policy.Escalation.MaxFailedRuns,
	})
	e.metrics.Observe(StageAggregate, time.Since(t))
	pkg.Status = outcome.Status

	e.metrics.Observe(StagePackage, time.Since(pkgStart))
	span.SetAttributes(
		attribute.String("package.status", string(outcome.Status)),
		attribute.Int("package.review_count", outcome.ReviewCount),
	)

	slog.Debug("Reconciled package",
		"package_id", pkg.ID,
		"status", outcome.Status,
		"discrepancies", len(classified.Discrepancies),
		"failures", len(failures))

	return &PackageResult{
		Package:       pkg,
		PackageID:     pkg.ID,
		Period:        pkg.Period,
		Counterparty:  pkg.CounterpartyID,
		Status:        outcome.Status,
		BlockReason:   outcome.BlockReason,
		ReviewCount:   outcome.ReviewCount,
		MatchCounts:   match.Counts(matches),
		Invoices:      nonNil(validated.Checked),
		Failures:      nonNil(failures),
		Discrepancies: nonNil(classified.Discrepancies),
		Overrides:     nonNil(classified.Overrides),
	}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
