// Package validate performs the per-package consistency checks that run before
// matching: line items against declared totals, page completeness, and key
// uniqueness.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Veraticus/tally/internal/model"
)

// Options configures the validator.
type Options struct {
	// RejectedKeys are keys of invoices the loader could not parse. Their
	// pages were extracted, so they are not reported as missing.
	RejectedKeys []string
	// Epsilon is the tolerated line-item rounding, in cents.
	Epsilon model.Cents
}

// Result is the validated record set for one package.
type Result struct {
	// Invoices carry their Consistent flag. Records whose key is duplicated
	// on either side are removed from Invoices and Charges.
	Invoices []model.Invoice
	Charges  []model.StatementCharge
	// Checked is every invoice with its Consistent flag, duplicates included.
	Checked  []model.Invoice
	Failures []model.ValidationFailure
	// DuplicateKeys lists every key withheld from matching.
	DuplicateKeys []string
}

// Validate checks one package. It never mutates pkg and never fails: every
// problem becomes a ValidationFailure and the pipeline continues.
func Validate(pkg *model.Package, opts Options) *Result {
	res := &Result{}

	invoices := make([]model.Invoice, len(pkg.Invoices))
	for i, inv := range pkg.Invoices {
		inv.Consistent = true
		if f, ok := checkLineItems(inv, opts.Epsilon); ok {
			inv.Consistent = false
			res.Failures = append(res.Failures, f)
		}
		invoices[i] = inv
	}
	res.Checked = invoices

	if f, ok := checkStatementTotal(pkg); ok {
		res.Failures = append(res.Failures, f)
	}

	dupFailures, dupKeys := checkDuplicates(invoices, pkg.Charges)
	res.Failures = append(res.Failures, dupFailures...)
	res.DuplicateKeys = dupKeys

	res.Failures = append(res.Failures, checkCompleteness(pkg, invoices, opts.RejectedKeys)...)

	excluded := make(map[string]struct{}, len(dupKeys))
	for _, k := range dupKeys {
		excluded[k] = struct{}{}
	}
	for _, inv := range invoices {
		if _, ok := excluded[inv.Key]; !ok {
			res.Invoices = append(res.Invoices, inv)
		}
	}
	for _, c := range pkg.Charges {
		if _, ok := excluded[c.Key]; !ok {
			res.Charges = append(res.Charges, c)
		}
	}

	return res
}

// checkLineItems is the B2-style check.
func checkLineItems(inv model.Invoice, epsilon model.Cents) (model.ValidationFailure, bool) {
	if len(inv.LineItems) == 0 {
		return model.ValidationFailure{
			Kind:        model.FailureIncompleteRecord,
			Key:         inv.Key,
			InvoiceID:   inv.ID,
			RecordRef:   invoiceRef(inv),
			Amount:      inv.DeclaredTotal.Abs(),
			Explanation: fmt.Sprintf("Invoice %s has no line items to check against its total %s", displayID(inv), inv.DeclaredTotal.Dollars()),
		}, true
	}

	sum := inv.LineItemTotal()
	diff := sum - inv.DeclaredTotal
	if diff.Abs() <= epsilon {
		return model.ValidationFailure{}, false
	}

	return model.ValidationFailure{
		Kind:      model.FailureLineItemMismatch,
		Key:       inv.Key,
		InvoiceID: inv.ID,
		RecordRef: invoiceRef(inv),
		Amount:    diff.Abs(),
		Explanation: fmt.Sprintf("Line items on invoice %s sum to %s but the declared total is %s (off by %s)",
			displayID(inv), sum.Dollars(), inv.DeclaredTotal.Dollars(), diff.Abs().Dollars()),
	}, true
}

func checkStatementTotal(pkg *model.Package) (model.ValidationFailure, bool) {
	if pkg.StatementTotal == nil || *pkg.StatementTotal == pkg.DeclaredTotal {
		return model.ValidationFailure{}, false
	}
	diff := *pkg.StatementTotal - pkg.DeclaredTotal
	return model.ValidationFailure{
		Kind:      model.FailureStatementTotalMismatch,
		RecordRef: "statement",
		Amount:    diff.Abs(),
		Explanation: fmt.Sprintf("Statement charges sum to %s but the printed statement total is %s",
			pkg.DeclaredTotal.Dollars(), pkg.StatementTotal.Dollars()),
	}, true
}

func checkDuplicates(invoices []model.Invoice, charges []model.StatementCharge) ([]model.ValidationFailure, []string) {
	invByKey := make(map[string][]model.Invoice)
	for _, inv := range invoices {
		invByKey[inv.Key] = append(invByKey[inv.Key], inv)
	}
	chargeByKey := make(map[string][]model.StatementCharge)
	for _, c := range charges {
		chargeByKey[c.Key] = append(chargeByKey[c.Key], c)
	}

	var failures []model.ValidationFailure
	dup := make(map[string]struct{})

	for _, key := range sortedKeys(invByKey) {
		group := invByKey[key]
		if len(group) < 2 {
			continue
		}
		dup[key] = struct{}{}
		ids := make([]string, len(group))
		var exposure model.Cents
		for i, inv := range group {
			ids[i] = displayID(inv)
			exposure += inv.DeclaredTotal.Abs()
		}
		failures = append(failures, model.ValidationFailure{
			Kind:        model.FailureDuplicateKey,
			Key:         key,
			RecordRef:   "invoices",
			Amount:      exposure,
			Explanation: fmt.Sprintf("Key %s appears on %d invoices (%s); none can be matched", key, len(group), strings.Join(ids, ", ")),
		})
	}

	for _, key := range sortedKeys(chargeByKey) {
		group := chargeByKey[key]
		if len(group) < 2 {
			continue
		}
		dup[key] = struct{}{}
		var exposure model.Cents
		for _, c := range group {
			exposure += c.Amount.Abs()
		}
		failures = append(failures, model.ValidationFailure{
			Kind:        model.FailureDuplicateKey,
			Key:         key,
			RecordRef:   "statement",
			Amount:      exposure,
			Explanation: fmt.Sprintf("Key %s appears on %d statement charges; none can be matched", key, len(group)),
		})
	}

	keys := make([]string, 0, len(dup))
	for k := range dup {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return failures, keys
}

// checkCompleteness is the CompletenessCheck: every key extraction signaled
// a page for must have produced an invoice.
func checkCompleteness(pkg *model.Package, invoices []model.Invoice, rejected []string) []model.ValidationFailure {
	have := make(map[string]struct{}, len(invoices)+len(rejected))
	for _, inv := range invoices {
		have[inv.Key] = struct{}{}
	}
	for _, k := range rejected {
		have[k] = struct{}{}
	}

	chargeTotals := make(map[string]model.Cents)
	for _, c := range pkg.Charges {
		chargeTotals[c.Key] += c.Amount.Abs()
	}

	expected := append([]string(nil), pkg.ExpectedKeys...)
	sort.Strings(expected)

	var failures []model.ValidationFailure
	for _, key := range expected {
		if _, ok := have[key]; ok {
			continue
		}
		failures = append(failures, model.ValidationFailure{
			Kind:        model.FailureMissingExtraction,
			Key:         key,
			Amount:      chargeTotals[key],
			Explanation: fmt.Sprintf("Extraction recognized an invoice page for key %s but produced no invoice", key),
		})
	}
	return failures
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func invoiceRef(inv model.Invoice) string {
	if inv.ID != "" {
		return "invoice " + inv.ID
	}
	return fmt.Sprintf("invoice[%d]", inv.Position)
}

func displayID(inv model.Invoice) string {
	if inv.ID != "" {
		return inv.ID
	}
	return fmt.Sprintf("#%d", inv.Position+1)
}
