// Package queue builds the ordered review queue from discrepancies and
// validation failures. Everything here is derived and recomputed per run.
package queue

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/tally/internal/model"
)

// Normalized reasons used for grouping.
const (
	ReasonLikelyTranscription = "Amount mismatch (likely transcription error)"
	ReasonAmountMismatch      = "Amount mismatch"
	ReasonMissingInvoice      = "Missing invoice"
	ReasonMissingCharge       = "Missing statement charge"
	ReasonLineItems           = "Line items do not sum to total"
	ReasonNoLineItems         = "Invoice has no line items"
	ReasonDuplicateKey        = "Duplicate reference key"
	ReasonMissingExtraction   = "Invoice page not extracted"
	ReasonUnparseable         = "Unparseable record"
	ReasonStatementTotal      = "Statement total does not match charges"
)

// Role selects which items a consumer sees.
type Role string

// Supported roles. Operators see everything; controllers only urgent items.
const (
	RoleOperator   Role = "operator"
	RoleController Role = "controller"
)

// ParseRole validates a role name. The empty string means operator.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case "", RoleOperator:
		return RoleOperator, nil
	case RoleController:
		return RoleController, nil
	default:
		return "", fmt.Errorf("unknown role %q (want operator or controller)", s)
	}
}

// Scope filters the queue. Empty fields match everything.
type Scope struct {
	Period         string `json:"period,omitempty"`
	CounterpartyID string `json:"counterparty_id,omitempty"`
	Role           Role   `json:"role,omitempty"`
}

func (s Scope) includes(item model.ReviewQueueItem) bool {
	if s.Period != "" && item.Period != s.Period {
		return false
	}
	if s.CounterpartyID != "" && item.CounterpartyID != s.CounterpartyID {
		return false
	}
	if s.Role == RoleController && !item.Urgent {
		return false
	}
	return true
}

// Group aggregates items that share a normalized reason.
type Group struct {
	Reason   string                  `json:"reason"`
	Items    []model.ReviewQueueItem `json:"items"`
	Count    int                     `json:"count"`
	Exposure model.Cents             `json:"exposure"`
	Urgent   bool                    `json:"urgent"`
}

// Queue is the ordered review queue.
type Queue struct {
	Scope       Scope                   `json:"scope"`
	ByReason    []Group                 `json:"by_reason"`
	RecentItems []model.ReviewQueueItem `json:"recent_items"`
	Total       int                     `json:"total"`
	UrgentCount int                     `json:"urgent_count"`
	Exposure    model.Cents             `json:"exposure"`
}

// Items projects one package's findings into queue items. Validation
// failures come first because they are produced first; Seq numbers follow
// that order starting at startSeq.
func Items(pkg *model.Package, failures []model.ValidationFailure, discrepancies []model.Discrepancy,
	urgencyFloor model.Cents, producedAt time.Time, startSeq int) []model.ReviewQueueItem {
	items := make([]model.ReviewQueueItem, 0, len(failures)+len(discrepancies))
	seq := startSeq

	for _, f := range failures {
		items = append(items, model.ReviewQueueItem{
			ProducedAt:     producedAt,
			PackageID:      pkg.ID,
			Period:         pkg.Period,
			CounterpartyID: pkg.CounterpartyID,
			InvoiceID:      f.InvoiceID,
			Key:            f.Key,
			Source:         model.ItemFromValidation,
			Kind:           string(f.Kind),
			Reason:         FailureReason(f.Kind),
			Explanation:    f.Explanation,
			Amount:         f.Amount,
			Seq:            seq,
			Urgent:         failureUrgent(f, urgencyFloor),
		})
		seq++
	}

	for _, d := range discrepancies {
		items = append(items, model.ReviewQueueItem{
			ProducedAt:     producedAt,
			PackageID:      pkg.ID,
			Period:         pkg.Period,
			CounterpartyID: pkg.CounterpartyID,
			InvoiceID:      d.InvoiceID,
			Key:            d.Key,
			Source:         model.ItemFromDiscrepancy,
			Kind:           string(d.Kind),
			Reason:         DiscrepancyReason(d),
			Explanation:    d.Explanation,
			Amount:         d.AbsDifference,
			Seq:            seq,
			Urgent:         d.IsUrgent(),
		})
		seq++
	}

	return items
}

// DiscrepancyReason maps a discrepancy to its group reason.
func DiscrepancyReason(d model.Discrepancy) string {
	if d.Kind == model.KindMissingCounterpart {
		if d.MissingSide == model.SideInvoice {
			return ReasonMissingInvoice
		}
		return ReasonMissingCharge
	}
	if d.LikelyTranscriptionError {
		return ReasonLikelyTranscription
	}
	return ReasonAmountMismatch
}

// FailureReason maps a validation failure kind to its group reason.
func FailureReason(kind model.FailureKind) string {
	switch kind {
	case model.FailureLineItemMismatch:
		return ReasonLineItems
	case model.FailureIncompleteRecord:
		return ReasonNoLineItems
	case model.FailureDuplicateKey:
		return ReasonDuplicateKey
	case model.FailureMissingExtraction:
		return ReasonMissingExtraction
	case model.FailureStatementTotalMismatch:
		return ReasonStatementTotal
	default:
		return ReasonUnparseable
	}
}

// Arithmetic failures are urgent only above the floor; anything that hides
// a record from matching is always urgent.
func failureUrgent(f model.ValidationFailure, floor model.Cents) bool {
	switch f.Kind {
	case model.FailureLineItemMismatch, model.FailureStatementTotalMismatch:
		return f.Amount > floor
	default:
		return true
	}
}

// Build groups and orders the items visible in scope. Groups containing an
// urgent item are pinned first; then groups are ordered by exposure
// descending. RecentItems holds the newest recent items, newest first.
func Build(items []model.ReviewQueueItem, scope Scope, recent int) *Queue {
	q := &Queue{Scope: scope, ByReason: []Group{}, RecentItems: []model.ReviewQueueItem{}}

	visible := make([]model.ReviewQueueItem, 0, len(items))
	for _, item := range items {
		if scope.includes(item) {
			visible = append(visible, item)
		}
	}

	groups := make(map[string]*Group)
	for _, item := range visible {
		g, ok := groups[item.Reason]
		if !ok {
			g = &Group{Reason: item.Reason}
			groups[item.Reason] = g
		}
		g.Items = append(g.Items, item)
		g.Count++
		g.Exposure += item.Amount
		g.Urgent = g.Urgent || item.Urgent

		q.Total++
		q.Exposure += item.Amount
		if item.Urgent {
			q.UrgentCount++
		}
	}

	for _, g := range groups {
		sort.SliceStable(g.Items, func(i, j int) bool { return itemLess(g.Items[i], g.Items[j]) })
		q.ByReason = append(q.ByReason, *g)
	}
	sort.SliceStable(q.ByReason, func(i, j int) bool {
		a, b := q.ByReason[i], q.ByReason[j]
		if a.Urgent != b.Urgent {
			return a.Urgent
		}
		if a.Exposure != b.Exposure {
			return a.Exposure > b.Exposure
		}
		return a.Reason < b.Reason
	})

	newest := append([]model.ReviewQueueItem(nil), visible...)
	sort.SliceStable(newest, func(i, j int) bool {
		a, b := newest[i], newest[j]
		if !a.ProducedAt.Equal(b.ProducedAt) {
			return a.ProducedAt.After(b.ProducedAt)
		}
		return a.Seq > b.Seq
	})
	if recent < 0 {
		recent = 0
	}
	if recent < len(newest) {
		newest = newest[:recent]
	}
	q.RecentItems = append(q.RecentItems, newest...)

	return q
}

func itemLess(a, b model.ReviewQueueItem) bool {
	if a.Urgent != b.Urgent {
		return a.Urgent
	}
	if a.Amount != b.Amount {
		return a.Amount > b.Amount
	}
	if a.PackageID != b.PackageID {
		return a.PackageID < b.PackageID
	}
	if a.Key != b.Key {
		return a.Key < b.Key
	}
	return a.Seq < b.Seq
}
