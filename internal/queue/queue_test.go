package queue

import (
	"testing"
	"time"

	"github.com/Veraticus/tally/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var producedAt = time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)

func samplePackage() *model.Package {
	return &model.Package{ID: "PKG-1", Period: "2024-03", CounterpartyID: "ACME"}
}

func sampleItems() []model.ReviewQueueItem {
	failures := []model.ValidationFailure{
		{Kind: model.FailureLineItemMismatch, Key: "A", InvoiceID: "1", Amount: 1},
		{Kind: model.FailureMissingExtraction, Key: "B", Amount: 2000},
	}
	discrepancies := []model.Discrepancy{
		{Key: "20-3926", Kind: model.KindAmountMismatch, InvoiceID: "13335", AbsDifference: 200,
			Severity: model.SeverityNormal, LikelyTranscriptionError: true},
		{Key: "20-3927", Kind: model.KindMissingCounterpart, MissingSide: model.SideInvoice,
			AbsDifference: 30136, Severity: model.SeverityUrgent},
		{Key: "20-3928", Kind: model.KindAmountMismatch, AbsDifference: 900000,
			Severity: model.SeverityNormal, LikelyTranscriptionError: true},
	}
	return Items(samplePackage(), failures, discrepancies, 10000, producedAt, 0)
}

func TestItems(t *testing.T) {
	items := sampleItems()
	require.Len(t, items, 5)

	for i, item := range items {
		assert.Equal(t, i, item.Seq)
		assert.Equal(t, "PKG-1", item.PackageID)
		assert.Equal(t, "2024-03", item.Period)
		assert.Equal(t, producedAt, item.ProducedAt)
	}

	assert.Equal(t, model.ItemFromValidation, items[0].Source)
	assert.Equal(t, ReasonLineItems, items[0].Reason)
	assert.False(t, items[0].Urgent, "a one cent line item mismatch is below the floor")
	assert.True(t, items[1].Urgent)
	assert.Equal(t, ReasonMissingExtraction, items[1].Reason)

	assert.Equal(t, model.ItemFromDiscrepancy, items[2].Source)
	assert.Equal(t, ReasonLikelyTranscription, items[2].Reason)
	assert.Equal(t, model.Cents(200), items[2].Amount)
	assert.Equal(t, ReasonMissingInvoice, items[3].Reason)
	assert.True(t, items[3].Urgent)
}

func TestBuild_GroupOrdering(t *testing.T) {
	q := Build(sampleItems(), Scope{}, 10)

	require.Len(t, q.ByReason, 4)
	// Urgent groups first by exposure, then the rest by exposure.
	assert.Equal(t, ReasonMissingInvoice, q.ByReason[0].Reason)
	assert.Equal(t, ReasonMissingExtraction, q.ByReason[1].Reason)
	assert.Equal(t, ReasonLikelyTranscription, q.ByReason[2].Reason)
	assert.Equal(t, ReasonLineItems, q.ByReason[3].Reason)

	g := q.ByReason[2]
	assert.Equal(t, 2, g.Count)
	assert.Equal(t, model.Cents(900200), g.Exposure)
	assert.False(t, g.Urgent)
	assert.Equal(t, "20-3928", g.Items[0].Key, "largest amount first within a group")

	assert.Equal(t, 5, q.Total)
	assert.Equal(t, 2, q.UrgentCount)
	assert.Equal(t, model.Cents(1+2000+200+30136+900000), q.Exposure)
}

func TestBuild_RecentItems(t *testing.T) {
	items := sampleItems()
	later := Items(&model.Package{ID: "PKG-2", Period: "2024-04"},
		[]model.ValidationFailure{{Kind: model.FailureDuplicateKey, Key: "Z", Amount: 5}},
		nil, 10000, producedAt.Add(time.Minute), 0)
	items = append(items, later...)

	tests := []struct {
		name     string
		recent   int
		wantKeys []string
	}{
		{name: "none", recent: 0, wantKeys: []string{}},
		{name: "newest first", recent: 3, wantKeys: []string{"Z", "20-3928", "20-3927"}},
		{name: "more than available", recent: 100, wantKeys: []string{"Z", "20-3928", "20-3927", "20-3926", "B", "A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Build(items, Scope{}, tt.recent)
			keys := make([]string, 0, len(q.RecentItems))
			for _, item := range q.RecentItems {
				keys = append(keys, item.Key)
			}
			assert.Equal(t, tt.wantKeys, keys)
		})
	}
}

func TestBuild_Scope(t *testing.T) {
	items := append(sampleItems(), Items(&model.Package{ID: "PKG-2", Period: "2024-04", CounterpartyID: "BETA"},
		[]model.ValidationFailure{{Kind: model.FailureUnparseableRecord, RecordRef: "charge[0]"}},
		nil, 10000, producedAt, 0)...)

	tests := []struct {
		name      string
		scope     Scope
		wantTotal int
	}{
		{name: "everything", scope: Scope{}, wantTotal: 6},
		{name: "period", scope: Scope{Period: "2024-04"}, wantTotal: 1},
		{name: "counterparty", scope: Scope{CounterpartyID: "ACME"}, wantTotal: 5},
		{name: "controller sees urgent only", scope: Scope{Role: RoleController}, wantTotal: 3},
		{name: "no match", scope: Scope{Period: "1999-01"}, wantTotal: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Build(items, tt.scope, 10)
			assert.Equal(t, tt.wantTotal, q.Total)
			assert.NotNil(t, q.ByReason)
			assert.NotNil(t, q.RecentItems)
		})
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("")
	require.NoError(t, err)
	assert.Equal(t, RoleOperator, r)

	r, err = ParseRole(" Controller ")
	require.NoError(t, err)
	assert.Equal(t, RoleController, r)

	_, err = ParseRole("admin")
	assert.Error(t, err)
}
