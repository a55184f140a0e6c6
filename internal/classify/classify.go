// Package classify turns match results into discrepancies: amount mismatches
// with a transcription-error heuristic, and missing counterparts.
package classify

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/Veraticus/tally/internal/model"
)

// Options holds the classification thresholds.
type Options struct {
	UrgencyFloor          model.Cents
	MaterialityThreshold  float64
	MaxDigitSubstitutions int
	// StatementCrossCheck is true when the statement printed a total that
	// agrees with its charges.
	StatementCrossCheck bool
}

// Result is the classifier output for one package.
type Result struct {
	// Discrepancies holds at most one entry per key, sorted by key.
	Discrepancies []model.Discrepancy
	// Overrides lists the latest override per key and whether it was applied,
	// sorted by key.
	Overrides []OverrideOutcome
}

// Classify applies overrides and classifies every match result. The inputs
// are not modified.
func Classify(matches []model.MatchResult, overrides []model.Override, opts Options) *Result {
	res := &Result{}
	latest := latestOverrides(overrides)
	byKey := make(map[string]model.MatchResult, len(matches))
	for _, m := range matches {
		byKey[m.Key] = m
	}

	applied := make(map[string]model.Cents)
	for _, key := range sortedKeys(latest) {
		o := latest[key]
		m, ok := byKey[key]
		ok = ok && Applies(o, m)
		if ok {
			applied[key] = o.CorrectedAmount
		} else {
			slog.Debug("Ignoring stale override", "key", key, "override_id", o.ID, "package_id", o.PackageID)
		}
		res.Overrides = append(res.Overrides, OverrideOutcome{Override: o, Applied: ok})
	}

	for _, m := range matches {
		var d *model.Discrepancy
		switch m.Kind {
		case model.MatchMatched:
			if corrected, ok := applied[m.Key]; ok {
				d = amountMismatch(m, corrected, corrected, opts)
			} else {
				d = amountMismatch(m, m.Invoice.DeclaredTotal, m.Charge.Amount, opts)
			}
		case model.MatchInvoiceOnly, model.MatchChargeOnly:
			d = missingCounterpart(m)
		}
		if d != nil {
			res.Discrepancies = append(res.Discrepancies, *d)
		}
	}

	sort.SliceStable(res.Discrepancies, func(i, j int) bool {
		return res.Discrepancies[i].Key < res.Discrepancies[j].Key
	})
	return res
}

func amountMismatch(m model.MatchResult, invoiceTotal, chargeAmount model.Cents, opts Options) *model.Discrepancy {
	diff := invoiceTotal - chargeAmount
	if diff == 0 {
		return nil
	}

	inv := m.Invoice
	rel := RelativeDifference(invoiceTotal, chargeAmount)
	digits := DigitSubstitution(invoiceTotal, chargeAmount, opts.MaxDigitSubstitutions)
	likely := inv.Consistent && (digits || (rel < opts.MaterialityThreshold && !opts.StatementCrossCheck))

	source := model.SourceUnresolved
	if inv.Consistent && !opts.StatementCrossCheck {
		source = model.SourceInvoice
	}

	severity := model.SeverityNormal
	if diff.Abs() > opts.UrgencyFloor || !likely {
		severity = model.SeverityUrgent
	}

	explanation := fmt.Sprintf("Invoice %s total %s does not match statement charge %s (difference %s)",
		invoiceLabel(inv), invoiceTotal.Dollars(), chargeAmount.Dollars(), diff.Dollars())
	switch {
	case likely && digits:
		explanation += "; amounts differ in a few digit positions, likely a transcription error"
	case likely:
		explanation += fmt.Sprintf("; difference is %.1f%% of the charge, likely a transcription error", rel*100)
	}
	if !inv.Consistent {
		explanation += "; invoice line items do not support its total"
	}

	return &model.Discrepancy{
		Key:                      m.Key,
		Kind:                     model.KindAmountMismatch,
		InvoiceID:                inv.ID,
		Severity:                 severity,
		SuggestedSource:          source,
		Explanation:              explanation,
		InvoiceTotal:             invoiceTotal,
		ChargeAmount:             chargeAmount,
		Difference:               diff,
		AbsDifference:            diff.Abs(),
		RelativeDifference:       rel,
		LikelyTranscriptionError: likely,
		InvoiceConsistent:        inv.Consistent,
	}
}

func missingCounterpart(m model.MatchResult) *model.Discrepancy {
	d := &model.Discrepancy{
		Key:                m.Key,
		Kind:               model.KindMissingCounterpart,
		Severity:           model.SeverityUrgent,
		SuggestedSource:    model.SourceUnresolved,
		RelativeDifference: 1,
	}

	if m.Kind == model.MatchChargeOnly {
		d.MissingSide = model.SideInvoice
		d.ChargeAmount = m.Charge.Amount
		d.Explanation = fmt.Sprintf("Missing invoice: statement charges %s for key %s but no invoice was found",
			m.Charge.Amount.Dollars(), m.Key)
	} else {
		d.MissingSide = model.SideStatement
		d.InvoiceID = m.Invoice.ID
		d.InvoiceTotal = m.Invoice.DeclaredTotal
		d.InvoiceConsistent = m.Invoice.Consistent
		d.Explanation = fmt.Sprintf("Missing statement charge: invoice %s bills %s for key %s but the statement has no charge",
			invoiceLabel(m.Invoice), m.Invoice.DeclaredTotal.Dollars(), m.Key)
	}

	d.Difference = d.InvoiceTotal - d.ChargeAmount
	d.AbsDifference = d.Difference.Abs()
	return d
}

// RelativeDifference is |a-b| relative to the statement amount b. When b is
// zero the invoice amount is the base; two zeros have no difference.
func RelativeDifference(a, b model.Cents) float64 {
	diff := (a - b).Abs()
	if diff == 0 {
		return 0
	}
	base := b.Abs()
	if base == 0 {
		base = a.Abs()
	}
	return float64(diff) / float64(base)
}

// DigitSubstitution reports whether a and b, written as cent digit strings,
// have the same sign and length and differ in at most maxPositions places.
func DigitSubstitution(a, b model.Cents, maxPositions int) bool {
	if a == b {
		return true
	}
	if (a < 0) != (b < 0) {
		return false
	}
	sa := strconv.FormatInt(int64(a.Abs()), 10)
	sb := strconv.FormatInt(int64(b.Abs()), 10)
	if len(sa) != len(sb) {
		return false
	}

	differing := 0
	for i := 0; i < len(sa); i++ {
		if sa[i] != sb[i] {
			differing++
		}
	}
	return differing <= maxPositions
}

func invoiceLabel(inv *model.Invoice) string {
	if inv.ID != "" {
		return inv.ID
	}
	return fmt.Sprintf("#%d", inv.Position+1)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
