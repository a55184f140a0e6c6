package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var renderAt = time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)

func TestRenderQueue(t *testing.T) {
	q := queue.Build([]model.ReviewQueueItem{
		{PackageID: "PKG-1", Key: "20-3926", InvoiceID: "13335", Reason: queue.ReasonLikelyTranscription,
			Amount: 200, ProducedAt: renderAt},
		{PackageID: "PKG-1", Key: "20-3927", Reason: queue.ReasonMissingInvoice,
			Amount: 30136, Urgent: true, ProducedAt: renderAt, Seq: 1},
	}, queue.Scope{}, 10)

	var buf bytes.Buffer
	require.NoError(t, RenderQueue(&buf, q))
	out := buf.String()

	assert.Contains(t, out, "Review queue")
	assert.Contains(t, out, queue.ReasonMissingInvoice)
	assert.Contains(t, out, "$301.36")
	assert.Contains(t, out, "$303.36 exposure")
	assert.Contains(t, out, "13335")
}

func TestRenderQueue_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderQueue(&buf, queue.Build(nil, queue.Scope{}, 10)))
	assert.Contains(t, buf.String(), "Nothing needs review.")
}

func TestRenderPackages(t *testing.T) {
	tests := []struct {
		name     string
		pkgs     []model.PackageSummary
		expected []string
	}{
		{
			name:     "empty",
			expected: []string{"No packages found."},
		},
		{
			name: "mixed",
			pkgs: []model.PackageSummary{
				{ID: "PKG-1", Period: "2024-03", CounterpartyID: "ACME", Status: model.StatusReview,
					InvoiceCount: 1, ChargeCount: 2, DeclaredTotal: 574739, ReviewCount: 2, LastReconciledAt: &renderAt},
				{ID: "PKG-2", Period: "2024-03", CounterpartyID: "ACME", Status: model.StatusPending, ArchivedAt: &renderAt},
			},
			expected: []string{"PKG-1", "review", "$5,747.39", "PKG-2", "(archived)", "never"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, RenderPackages(&buf, tt.pkgs))
			for _, want := range tt.expected {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestRenderPackageDetail(t *testing.T) {
	p := &model.PackageSummary{ID: "PKG-1", Period: "2024-03", CounterpartyID: "ACME", Status: model.StatusBlocked}
	discrepancies := []model.Discrepancy{{
		Key: "20-3926", InvoiceID: "13335", Kind: model.KindAmountMismatch, Severity: model.SeverityNormal,
		InvoiceTotal: 544803, ChargeAmount: 544603, Difference: 200,
	}}
	runs := []model.ReconciliationRun{{RunAt: renderAt, Status: model.StatusBlocked, DiscrepancyCount: 1}}

	var buf bytes.Buffer
	require.NoError(t, RenderPackageDetail(&buf, p, discrepancies, runs))
	out := buf.String()
	for _, want := range []string{"Package PKG-1", "blocked", "$5,448.03", "$2.00", "Discrepancies", "Runs"} {
		assert.Contains(t, out, want)
	}
}

func TestRenderInvoice(t *testing.T) {
	d := &model.InvoiceDetail{
		PackageID: "PKG-1",
		Invoice: model.Invoice{
			ID: "13335", Key: "20-3926", DeclaredTotal: 544803,
			LineItems: []model.LineItem{{Description: "Feed", Amount: 542659}, {Amount: 871}, {Amount: 1273}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderInvoice(&buf, d))
	out := buf.String()
	assert.Contains(t, out, "Invoice 13335 (PKG-1)")
	assert.Contains(t, out, "$5,426.59")
	assert.Contains(t, out, "Line item total")
}

func TestRenderReport(t *testing.T) {
	r := &engine.Report{
		Results: []engine.PackageResult{
			{PackageID: "PKG-1", Status: model.StatusReview, ReviewCount: 2},
			{PackageID: "PKG-2", Status: model.StatusBlocked, BlockReason: "failed 3 runs in a row"},
		},
		Errors:  []engine.PackageError{{Position: 2, Message: "malformed record: package_id is required"}},
		Summary: engine.Summary{Packages: 3, Review: 1, Blocked: 1, Errors: 1},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderReport(&buf, r))
	out := buf.String()
	for _, want := range []string{"2 to review", "failed 3 runs in a row", "package #3", "3 packages", "(1 could not be loaded)"} {
		assert.Contains(t, out, want)
	}
}

func TestRenderOverrides(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderOverrides(&buf, nil))
	assert.Contains(t, buf.String(), "No overrides recorded.")

	buf.Reset()
	require.NoError(t, RenderOverrides(&buf, []model.Override{{
		CreatedAt: renderAt, Key: "20-3926", Author: "ops", OriginalInvoiceTotal: 544803,
		OriginalChargeAmount: 544603, CorrectedAmount: 544803, Note: "statement typo",
	}}))
	assert.Contains(t, buf.String(), "statement typo")
	assert.Contains(t, buf.String(), "$5,446.03")
}
