package sheets

import (
	"strings"

	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/queue"
	"github.com/shopspring/decimal"
)

// GroupRow is one line of the By Reason table.
type GroupRow struct {
	Reason   string
	Exposure decimal.Decimal
	Count    int
	Urgent   bool
}

// ItemRow is one line of the Items table.
type ItemRow struct {
	PackageID      string
	Period         string
	CounterpartyID string
	Key            string
	InvoiceID      string
	Reason         string
	Explanation    string
	Amount         decimal.Decimal
	Urgent         bool
}

// TabData holds everything written for one queue export.
type TabData struct {
	ScopeLabel string
	Exposure   decimal.Decimal
	Groups     []GroupRow
	Items      []ItemRow
	Total      int
	Urgent     int
}

// NewTabData flattens a queue into rows. Items keep the queue's group order.
func NewTabData(q *queue.Queue) TabData {
	data := TabData{
		ScopeLabel: ScopeLabel(q.Scope),
		Exposure:   q.Exposure.Decimal(),
		Total:      q.Total,
		Urgent:     q.UrgentCount,
		Groups:     make([]GroupRow, 0, len(q.ByReason)),
		Items:      make([]ItemRow, 0, q.Total),
	}

	for _, g := range q.ByReason {
		data.Groups = append(data.Groups, GroupRow{
			Reason:   g.Reason,
			Count:    g.Count,
			Exposure: g.Exposure.Decimal(),
			Urgent:   g.Urgent,
		})
		for _, item := range g.Items {
			data.Items = append(data.Items, itemRow(item))
		}
	}
	return data
}

func itemRow(item model.ReviewQueueItem) ItemRow {
	return ItemRow{
		PackageID:      item.PackageID,
		Period:         item.Period,
		CounterpartyID: item.CounterpartyID,
		Key:            item.Key,
		InvoiceID:      item.InvoiceID,
		Reason:         item.Reason,
		Explanation:    item.Explanation,
		Amount:         item.Amount.Decimal(),
		Urgent:         item.Urgent,
	}
}

// ScopeLabel describes a queue scope for report headers.
func ScopeLabel(s queue.Scope) string {
	var parts []string
	if s.Period != "" {
		parts = append(parts, "period "+s.Period)
	}
	if s.CounterpartyID != "" {
		parts = append(parts, "counterparty "+s.CounterpartyID)
	}
	if s.Role == queue.RoleController {
		parts = append(parts, "urgent only")
	}
	if len(parts) == 0 {
		return "All packages"
	}
	return strings.Join(parts, ", ")
}
