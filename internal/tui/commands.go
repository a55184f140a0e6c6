package tui

import (
	"errors"

	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/queue"
	"github.com/Veraticus/tally/internal/service"
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) loadQueue() tea.Cmd {
	return m.reloadQueue("")
}

// reloadQueue loads the queue and leaves note on the status line.
func (m Model) reloadQueue(note string) tea.Cmd {
	ctx, store, eng, scope := m.ctx, m.storage, m.engine, m.scope
	return func() tea.Msg {
		q, err := eng.StoredQueue(ctx, store, scope)
		if err != nil {
			return errorMsg{err: err}
		}
		return queueLoadedMsg{queue: q, note: note}
	}
}

// loadInvoice fetches the invoice behind an item. Items with no invoice
// (a charge with no bill) are shown from the queue row alone.
func (m Model) loadInvoice(item model.ReviewQueueItem) tea.Cmd {
	if item.InvoiceID == "" {
		return nil
	}
	ctx, store := m.ctx, m.storage
	return func() tea.Msg {
		detail, err := store.GetInvoiceDetail(ctx, item.PackageID, item.InvoiceID)
		if err != nil {
			return errorMsg{err: err}
		}
		return invoiceLoadedMsg{detail: detail}
	}
}

func (m Model) reconcileScope() tea.Cmd {
	ctx, store, eng, scope := m.ctx, m.storage, m.engine, m.scope
	return func() tea.Msg {
		report, err := eng.ReconcileStored(ctx, store, service.PackageFilter{
			Period:         scope.Period,
			CounterpartyID: scope.CounterpartyID,
		})
		if errors.Is(err, engine.ErrNoPackages) {
			return reconciledMsg{}
		}
		if err != nil {
			return errorMsg{err: err}
		}
		return reconciledMsg{summary: report.Summary}
	}
}

func toggleRole(r queue.Role) queue.Role {
	if r == queue.RoleController {
		return queue.RoleOperator
	}
	return queue.RoleController
}
