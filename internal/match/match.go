// Package match pairs validated invoices with statement charges by exact
// normalized reference key.
package match

import (
	"sort"

	"github.com/Veraticus/tally/internal/model"
)

// Match emits exactly one MatchResult per distinct key in the union of
// invoice and charge keys, sorted by key. Callers must remove duplicate keys
// first; if a key still repeats, the first record in input order wins.
func Match(invoices []model.Invoice, charges []model.StatementCharge) []model.MatchResult {
	byInvoice := make(map[string]*model.Invoice, len(invoices))
	for i := range invoices {
		if _, ok := byInvoice[invoices[i].Key]; !ok {
			byInvoice[invoices[i].Key] = &invoices[i]
		}
	}
	byCharge := make(map[string]*model.StatementCharge, len(charges))
	for i := range charges {
		if _, ok := byCharge[charges[i].Key]; !ok {
			byCharge[charges[i].Key] = &charges[i]
		}
	}

	keys := make([]string, 0, len(byInvoice)+len(byCharge))
	for k := range byInvoice {
		keys = append(keys, k)
	}
	for k := range byCharge {
		if _, ok := byInvoice[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	results := make([]model.MatchResult, 0, len(keys))
	for _, key := range keys {
		inv := byInvoice[key]
		charge := byCharge[key]

		r := model.MatchResult{Key: key, Invoice: inv, Charge: charge}
		switch {
		case inv != nil && charge != nil:
			r.Kind = model.MatchMatched
		case inv != nil:
			r.Kind = model.MatchInvoiceOnly
		default:
			r.Kind = model.MatchChargeOnly
		}
		results = append(results, r)
	}
	return results
}

// Counts tallies results by kind.
func Counts(results []model.MatchResult) map[model.MatchKind]int {
	counts := make(map[model.MatchKind]int, 3)
	for _, r := range results {
		counts[r.Kind]++
	}
	return counts
}
