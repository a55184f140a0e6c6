package validate

import (
	"testing"

	"github.com/Veraticus/tally/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invoice(id, key string, total model.Cents, items ...model.Cents) model.Invoice {
	inv := model.Invoice{ID: id, Key: key, DeclaredTotal: total}
	for _, amt := range items {
		inv.LineItems = append(inv.LineItems, model.LineItem{Description: "item", Amount: amt})
	}
	return inv
}

func charge(key string, amount model.Cents) model.StatementCharge {
	return model.StatementCharge{Key: key, Amount: amount}
}

func failuresOfKind(fs []model.ValidationFailure, kind model.FailureKind) []model.ValidationFailure {
	var out []model.ValidationFailure
	for _, f := range fs {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

func TestValidate_LineItems(t *testing.T) {
	tests := []struct {
		name           string
		inv            model.Invoice
		epsilon        model.Cents
		wantFailures   int
		wantConsistent bool
	}{
		{
			name:           "invoice 13335 sums exactly",
			inv:            invoice("13335", "20-3926", 544803, 542659, 871, 1273),
			wantConsistent: true,
		},
		{
			name:         "off by one cent",
			inv:          invoice("1", "A", 10001, 5000, 5000),
			wantFailures: 1,
		},
		{
			name:         "off by a lot",
			inv:          invoice("2", "B", 90000, 5000, 5000),
			wantFailures: 1,
		},
		{
			name:           "within configured epsilon",
			inv:            invoice("3", "C", 10001, 5000, 5000),
			epsilon:        1,
			wantConsistent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg := &model.Package{ID: "P", Invoices: []model.Invoice{tt.inv}}
			res := Validate(pkg, Options{Epsilon: tt.epsilon})

			mismatches := failuresOfKind(res.Failures, model.FailureLineItemMismatch)
			assert.Len(t, mismatches, tt.wantFailures)
			require.Len(t, res.Invoices, 1, "failed invoices still proceed to matching")
			assert.Equal(t, tt.wantConsistent, res.Invoices[0].Consistent)
		})
	}
}

func TestValidate_MismatchDetail(t *testing.T) {
	pkg := &model.Package{ID: "P", Invoices: []model.Invoice{invoice("9", "K", 10500, 10000)}}
	res := Validate(pkg, Options{})

	require.Len(t, res.Failures, 1)
	f := res.Failures[0]
	assert.Equal(t, model.FailureLineItemMismatch, f.Kind)
	assert.Equal(t, "K", f.Key)
	assert.Equal(t, "9", f.InvoiceID)
	assert.Equal(t, model.Cents(500), f.Amount)
	assert.Contains(t, f.Explanation, "$100.00")
	assert.Contains(t, f.Explanation, "$105.00")
}

func TestValidate_DoesNotMutateInput(t *testing.T) {
	pkg := &model.Package{ID: "P", Invoices: []model.Invoice{invoice("1", "A", 100, 100)}}
	_ = Validate(pkg, Options{})
	assert.False(t, pkg.Invoices[0].Consistent)
}

func TestValidate_IncompleteInvoice(t *testing.T) {
	pkg := &model.Package{ID: "P", Invoices: []model.Invoice{invoice("1", "A", 2500)}}
	res := Validate(pkg, Options{})

	require.Len(t, res.Failures, 1)
	assert.Equal(t, model.FailureIncompleteRecord, res.Failures[0].Kind)
	assert.False(t, res.Invoices[0].Consistent)
}

func TestValidate_DuplicateKeys(t *testing.T) {
	pkg := &model.Package{
		ID: "P",
		Invoices: []model.Invoice{
			invoice("1", "A", 100, 100),
			invoice("2", "A", 200, 200),
			invoice("3", "B", 300, 300),
			invoice("4", "C", 400, 400),
		},
		Charges: []model.StatementCharge{
			charge("A", 100),
			charge("B", 300),
			charge("C", 400),
			charge("C", 400),
		},
	}

	res := Validate(pkg, Options{})

	dups := failuresOfKind(res.Failures, model.FailureDuplicateKey)
	require.Len(t, dups, 2)
	assert.Equal(t, "A", dups[0].Key)
	assert.Equal(t, "invoices", dups[0].RecordRef)
	assert.Equal(t, model.Cents(300), dups[0].Amount)
	assert.Equal(t, "C", dups[1].Key)
	assert.Equal(t, "statement", dups[1].RecordRef)

	assert.Equal(t, []string{"A", "C"}, res.DuplicateKeys)
	require.Len(t, res.Invoices, 1)
	assert.Equal(t, "B", res.Invoices[0].Key)
	require.Len(t, res.Charges, 1)
	assert.Equal(t, "B", res.Charges[0].Key)
}

func TestValidate_Completeness(t *testing.T) {
	pkg := &model.Package{
		ID:           "P",
		Invoices:     []model.Invoice{invoice("1", "A", 100, 100)},
		Charges:      []model.StatementCharge{charge("A", 100), charge("20-3927", 30136)},
		ExpectedKeys: []string{"A", "20-3927", "REJECTED"},
	}

	res := Validate(pkg, Options{RejectedKeys: []string{"REJECTED"}})

	missing := failuresOfKind(res.Failures, model.FailureMissingExtraction)
	require.Len(t, missing, 1)
	assert.Equal(t, "20-3927", missing[0].Key)
	assert.Equal(t, model.Cents(30136), missing[0].Amount)
}

func TestValidate_StatementTotal(t *testing.T) {
	printed := model.Cents(1000)
	pkg := &model.Package{
		ID:             "P",
		Charges:        []model.StatementCharge{charge("A", 900)},
		DeclaredTotal:  900,
		StatementTotal: &printed,
	}

	res := Validate(pkg, Options{})
	got := failuresOfKind(res.Failures, model.FailureStatementTotalMismatch)
	require.Len(t, got, 1)
	assert.Equal(t, model.Cents(100), got[0].Amount)

	printed = 900
	res = Validate(pkg, Options{})
	assert.Empty(t, failuresOfKind(res.Failures, model.FailureStatementTotalMismatch))
}
