package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/queue"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const timeLayout = "2006-01-02 15:04"

// Table renders rows under headers with the shared table styles.
func Table(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.HiddenBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return TableCellStyle
		}).
		String()
}

// RenderQueue writes the grouped review queue followed by its recent items.
func RenderQueue(w io.Writer, q *queue.Queue) error {
	var b strings.Builder
	b.WriteString(FormatTitle("Review queue") + "\n")
	if q.Total == 0 {
		b.WriteString(FormatSuccess("Nothing needs review.") + "\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	groups := make([][]string, 0, len(q.ByReason))
	for _, g := range q.ByReason {
		urgent := ""
		if g.Urgent {
			urgent = ErrorStyle.Render(UrgentIcon)
		}
		groups = append(groups, []string{g.Reason, strconv.Itoa(g.Count), g.Exposure.Dollars(), urgent})
	}
	b.WriteString(Table([]string{"Reason", "Items", "Exposure", "Urgent"}, groups) + "\n")
	fmt.Fprintf(&b, "%s items, %s urgent, %s exposure\n\n",
		BoldStyle.Render(strconv.Itoa(q.Total)),
		ErrorStyle.Render(strconv.Itoa(q.UrgentCount)),
		BoldStyle.Render(q.Exposure.Dollars()))

	if len(q.RecentItems) > 0 {
		b.WriteString(BoldStyle.Render("Most recent") + "\n")
		b.WriteString(Table([]string{"Package", "Key", "Invoice", "Reason", "Amount", "Produced"},
			itemRows(q.RecentItems)) + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func itemRows(items []model.ReviewQueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		reason := it.Reason
		if it.Urgent {
			reason = ErrorStyle.Render(UrgentIcon+" ") + reason
		}
		rows = append(rows, []string{
			it.PackageID, it.Key, it.InvoiceID, reason, it.Amount.Dollars(),
			it.ProducedAt.Local().Format(timeLayout),
		})
	}
	return rows
}

// RenderPackages writes one line per package summary.
func RenderPackages(w io.Writer, pkgs []model.PackageSummary) error {
	if len(pkgs) == 0 {
		_, err := fmt.Fprintln(w, FormatInfo("No packages found."))
		return err
	}

	rows := make([][]string, 0, len(pkgs))
	for _, p := range pkgs {
		status := FormatStatus(p.Status)
		if p.ArchivedAt != nil {
			status += SubtleStyle.Render(" (archived)")
		}
		last := SubtleStyle.Render("never")
		if p.LastReconciledAt != nil {
			last = p.LastReconciledAt.Local().Format(timeLayout)
		}
		rows = append(rows, []string{
			p.ID, p.Period, p.CounterpartyID, status,
			strconv.Itoa(p.InvoiceCount), strconv.Itoa(p.ChargeCount),
			p.DeclaredTotal.Dollars(), strconv.Itoa(p.ReviewCount), last,
		})
	}
	_, err := fmt.Fprintln(w, Table(
		[]string{"Package", "Period", "Counterparty", "Status", "Invoices", "Charges", "Statement", "Review", "Reconciled"},
		rows))
	return err
}

// RenderPackageDetail writes a package summary, its open discrepancies and
// its recent runs.
func RenderPackageDetail(w io.Writer, p *model.PackageSummary, discrepancies []model.Discrepancy, runs []model.ReconciliationRun) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Period:        %s\n", p.Period)
	fmt.Fprintf(&b, "Counterparty:  %s\n", p.CounterpartyID)
	fmt.Fprintf(&b, "Status:        %s\n", FormatStatus(p.Status))
	fmt.Fprintf(&b, "Invoices:      %d\n", p.InvoiceCount)
	fmt.Fprintf(&b, "Charges:       %d (%s)\n", p.ChargeCount, p.DeclaredTotal.Dollars())
	fmt.Fprintf(&b, "Needs review:  %d", p.ReviewCount)
	if p.ArchivedAt != nil {
		fmt.Fprintf(&b, "\nArchived:      %s", p.ArchivedAt.Local().Format(timeLayout))
	}
	out := RenderBox("Package "+p.ID, b.String()) + "\n"

	if len(discrepancies) > 0 {
		rows := make([][]string, 0, len(discrepancies))
		for _, d := range discrepancies {
			rows = append(rows, []string{
				d.Key, d.InvoiceID, string(d.Kind), severity(d.Severity),
				d.InvoiceTotal.Dollars(), d.ChargeAmount.Dollars(), d.Difference.Dollars(), string(d.SuggestedSource),
			})
		}
		out += BoldStyle.Render("Discrepancies") + "\n" +
			Table([]string{"Key", "Invoice", "Kind", "Severity", "Invoice total", "Charge", "Difference", "Check"}, rows) + "\n"
	}

	if len(runs) > 0 {
		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			rows = append(rows, []string{
				r.RunAt.Local().Format(timeLayout), FormatStatus(r.Status),
				strconv.Itoa(r.DiscrepancyCount), strconv.Itoa(r.FailureCount),
			})
		}
		out += BoldStyle.Render("Runs") + "\n" +
			Table([]string{"At", "Status", "Discrepancies", "Failures"}, rows) + "\n"
	}

	_, err := io.WriteString(w, out)
	return err
}

// RenderInvoice writes an invoice with its line items and discrepancy.
func RenderInvoice(w io.Writer, d *model.InvoiceDetail) error {
	rows := make([][]string, 0, len(d.LineItems)+1)
	for _, li := range d.LineItems {
		rows = append(rows, []string{li.Description, li.Amount.Dollars()})
	}
	rows = append(rows, []string{BoldStyle.Render("Line item total"), BoldStyle.Render(d.LineItemTotal().Dollars())})

	var b strings.Builder
	fmt.Fprintf(&b, "Lot key:        %s\n", d.Key)
	fmt.Fprintf(&b, "Declared total: %s\n\n", d.DeclaredTotal.Dollars())
	b.WriteString(Table([]string{"Description", "Amount"}, rows))
	if d.Discrepancy != nil {
		fmt.Fprintf(&b, "\n\n%s %s", severity(d.Discrepancy.Severity), d.Discrepancy.Explanation)
	}

	_, err := fmt.Fprintln(w, RenderBox(fmt.Sprintf("Invoice %s (%s)", d.ID, d.PackageID), b.String()))
	return err
}

// RenderOverrides writes the corrections recorded for a package.
func RenderOverrides(w io.Writer, overrides []model.Override) error {
	if len(overrides) == 0 {
		_, err := fmt.Fprintln(w, FormatInfo("No overrides recorded."))
		return err
	}
	rows := make([][]string, 0, len(overrides))
	for _, o := range overrides {
		rows = append(rows, []string{
			o.CreatedAt.Local().Format(timeLayout), o.Key, o.Author,
			o.OriginalInvoiceTotal.Dollars(), o.OriginalChargeAmount.Dollars(), o.CorrectedAmount.Dollars(), o.Note,
		})
	}
	_, err := fmt.Fprintln(w, Table([]string{"At", "Key", "Author", "Invoice", "Charge", "Corrected", "Note"}, rows))
	return err
}

// RenderReport summarizes a reconciliation run.
func RenderReport(w io.Writer, r *engine.Report) error {
	rows := make([][]string, 0, len(r.Results))
	for _, res := range r.Results {
		note := res.BlockReason
		if note == "" && res.ReviewCount > 0 {
			note = fmt.Sprintf("%d to review", res.ReviewCount)
		}
		rows = append(rows, []string{
			res.PackageID, FormatStatus(res.Status),
			strconv.Itoa(len(res.Discrepancies)), strconv.Itoa(len(res.Failures)), note,
		})
	}

	var b strings.Builder
	b.WriteString(Table([]string{"Package", "Status", "Discrepancies", "Failures", "Notes"}, rows) + "\n")
	for _, pe := range r.Errors {
		b.WriteString(FormatError(fmt.Sprintf("package #%d: %s", pe.Position+1, pe.Message)) + "\n")
	}
	s := r.Summary
	fmt.Fprintf(&b, "%d packages: %s, %s, %s",
		s.Packages,
		SuccessStyle.Render(fmt.Sprintf("%d complete", s.Complete)),
		WarningStyle.Render(fmt.Sprintf("%d review", s.Review)),
		ErrorStyle.Render(fmt.Sprintf("%d blocked", s.Blocked)))
	if s.Errors > 0 {
		fmt.Fprintf(&b, " (%d could not be loaded)", s.Errors)
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func severity(s model.Severity) string {
	if s == model.SeverityUrgent {
		return ErrorStyle.Render(string(s))
	}
	return string(s)
}
