package tui

import (
	"fmt"
	"strings"

	"github.com/Veraticus/tally/internal/queue"
	"github.com/charmbracelet/lipgloss"
)

// View renders the current screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var body string
	if m.state == StateDetail {
		body = m.detailView()
	} else {
		body = m.listView()
	}

	footer := m.statusLine()
	if m.state == StateList {
		footer = lipgloss.JoinVertical(lipgloss.Left, footer, m.theme.Help.Render(m.help.View(m.keymap)))
	} else {
		footer = lipgloss.JoinVertical(lipgloss.Left, footer, m.theme.Help.Render("Esc back • q quit"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, footer)
}

func (m Model) listView() string {
	title := m.theme.Title.Render("Review queue: " + scopeLine(m.scope))
	if m.queue == nil {
		return title
	}
	if m.queue.Total == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title, m.theme.Subtitle.Render("Nothing needs review."))
	}

	summary := fmt.Sprintf("%d items, %s, %s exposure across %d reasons",
		m.queue.Total,
		m.theme.Urgent.Render(fmt.Sprintf("%d urgent", m.queue.UrgentCount)),
		m.queue.Exposure.Dollars(),
		len(m.queue.ByReason))
	return lipgloss.JoinVertical(lipgloss.Left, title, summary, m.table.View())
}

func (m Model) detailView() string {
	it := m.selected
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", m.theme.Bold.Render(it.Reason))
	fmt.Fprintf(&b, "Package:      %s (%s, %s)\n", it.PackageID, it.Period, it.CounterpartyID)
	if it.Key != "" {
		fmt.Fprintf(&b, "Key:          %s\n", it.Key)
	}
	if it.InvoiceID != "" {
		fmt.Fprintf(&b, "Invoice:      %s\n", it.InvoiceID)
	}
	fmt.Fprintf(&b, "Amount:       %s\n", it.Amount.Dollars())
	if it.Urgent {
		fmt.Fprintf(&b, "Priority:     %s\n", m.theme.Urgent.Render("urgent"))
	}
	fmt.Fprintf(&b, "Produced:     %s\n", it.ProducedAt.Local().Format("2006-01-02 15:04"))
	if it.Explanation != "" {
		fmt.Fprintf(&b, "\n%s\n", it.Explanation)
	}

	if d := m.detail; d != nil {
		fmt.Fprintf(&b, "\n%s\n", m.theme.Bold.Render("Line items"))
		for _, li := range d.LineItems {
			desc := li.Description
			if desc == "" {
				desc = "(no description)"
			}
			fmt.Fprintf(&b, "  %-40s %12s\n", desc, li.Amount.Dollars())
		}
		fmt.Fprintf(&b, "  %-40s %12s\n", "Sum", d.LineItemTotal().Dollars())
		fmt.Fprintf(&b, "  %-40s %12s", "Declared total", d.DeclaredTotal.Dollars())
	}

	return m.theme.RoundedBox.Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) statusLine() string {
	if m.lastErr != nil {
		return m.theme.StatusError.Render("Error: " + m.lastErr.Error())
	}
	return m.theme.Status.Render(m.status)
}

func scopeLine(s queue.Scope) string {
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
		return "all packages"
	}
	return strings.Join(parts, ", ")
}
