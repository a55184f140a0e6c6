// Package status derives a package's reconciliation status from its current
// findings. The status is a projection: it is recomputed from scratch on
// every run and carries no transition history.
package status

import (
	"fmt"

	"github.com/Veraticus/tally/internal/model"
)

// Escalation configures the rules that may block a package. The zero value
// never blocks.
type Escalation struct {
	// BlockingKinds are discrepancy or failure kinds an operator has marked
	// as structurally blocking.
	BlockingKinds []string
	// MissingCounterpartLimit blocks when a missing counterpart exceeds it.
	MissingCounterpartLimit model.Cents
	// MaxFailedRuns blocks once this many consecutive runs, including the
	// current one, did not complete.
	MaxFailedRuns int
}

// Input is the current finding set for a package.
type Input struct {
	Discrepancies []model.Discrepancy
	Failures      []model.ValidationFailure
	// PriorFailedRuns counts consecutive non-complete runs before this one.
	PriorFailedRuns int
}

// Outcome is the derived status and, when blocked, the rule that fired.
type Outcome struct {
	Status      model.PackageStatus `json:"status"`
	BlockReason string              `json:"block_reason,omitempty"`
	ReviewCount int                 `json:"review_count"`
}

// Aggregate computes the package status.
func Aggregate(in Input, esc Escalation) Outcome {
	findings := len(in.Discrepancies) + len(in.Failures)
	out := Outcome{ReviewCount: findings}
	if findings == 0 {
		out.Status = model.StatusComplete
		return out
	}

	out.Status = model.StatusReview
	if reason, ok := blockReason(in, esc); ok {
		out.Status = model.StatusBlocked
		out.BlockReason = reason
	}
	return out
}

func blockReason(in Input, esc Escalation) (string, bool) {
	blocking := make(map[string]struct{}, len(esc.BlockingKinds))
	for _, k := range esc.BlockingKinds {
		blocking[k] = struct{}{}
	}
	for _, d := range in.Discrepancies {
		if _, ok := blocking[string(d.Kind)]; ok {
			return fmt.Sprintf("%s on key %s is marked blocking", d.Kind, d.Key), true
		}
	}
	for _, f := range in.Failures {
		if _, ok := blocking[string(f.Kind)]; ok {
			return fmt.Sprintf("%s is marked blocking", f.Kind), true
		}
	}

	if esc.MissingCounterpartLimit > 0 {
		for _, d := range in.Discrepancies {
			if d.Kind == model.KindMissingCounterpart && d.AbsDifference > esc.MissingCounterpartLimit {
				return fmt.Sprintf("missing counterpart for key %s is %s, above the %s limit",
					d.Key, d.AbsDifference.Dollars(), esc.MissingCounterpartLimit.Dollars()), true
			}
		}
	}

	if esc.MaxFailedRuns > 0 && in.PriorFailedRuns+1 >= esc.MaxFailedRuns {
		return fmt.Sprintf("%d consecutive runs without completing", in.PriorFailedRuns+1), true
	}

	return "", false
}
