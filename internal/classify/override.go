package classify

import (
	"sort"

	"github.com/Veraticus/tally/internal/loader"
	"github.com/Veraticus/tally/internal/model"
)

// OverrideOutcome records what happened to the latest override for a key.
type OverrideOutcome struct {
	Override model.Override
	Applied  bool
}

// latestOverrides keeps the newest override per normalized key. Ties on
// CreatedAt are broken by ID so the choice is stable across runs.
func latestOverrides(overrides []model.Override) map[string]model.Override {
	sorted := append([]model.Override(nil), overrides...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	latest := make(map[string]model.Override, len(sorted))
	for _, o := range sorted {
		o.Key = loader.NormalizeKey(o.Key)
		latest[o.Key] = o
	}
	return latest
}

// Applies reports whether o may be layered over the matched pair r. Only
// matched pairs can be corrected, and only while the extracted values still
// equal the originals the operator saw.
func Applies(o model.Override, r model.MatchResult) bool {
	if r.Kind != model.MatchMatched || r.Invoice == nil || r.Charge == nil {
		return false
	}
	return o.OriginalInvoiceTotal == r.Invoice.DeclaredTotal &&
		o.OriginalChargeAmount == r.Charge.Amount
}
