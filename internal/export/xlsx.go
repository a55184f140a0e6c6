// Package export writes the review queue to local files.
package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/tally/internal/queue"
	"github.com/Veraticus/tally/internal/service"
	"github.com/xuri/excelize/v2"
)

// Sheet names in the workbook.
const (
	GroupsSheet = "By Reason"
	ItemsSheet  = "Items"
)

var (
	groupHeader = []any{"Reason", "Count", "Exposure", "Urgent"}
	itemHeader  = []any{"Package", "Period", "Counterparty", "Key", "Invoice", "Reason", "Amount", "Urgent", "Explanation", "Produced"}
)

var _ service.QueueWriter = (*XLSXWriter)(nil)

// XLSXWriter writes the queue as an Excel workbook to an io.Writer.
type XLSXWriter struct {
	out io.Writer
}

// NewXLSXWriter returns a writer that streams the workbook to out.
func NewXLSXWriter(out io.Writer) *XLSXWriter {
	return &XLSXWriter{out: out}
}

// Write implements service.QueueWriter.
func (x *XLSXWriter) Write(_ context.Context, q *queue.Queue) error {
	return WriteXLSX(x.out, q)
}

// WriteXLSX renders q as a workbook with one sheet of groups and one of
// items. Items keep the queue's group order.
func WriteXLSX(out io.Writer, q *queue.Queue) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", GroupsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(ItemsSheet); err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	moneyFmt := "$#,##0.00"
	money, err := f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFmt})
	if err != nil {
		return fmt.Errorf("failed to create currency style: %w", err)
	}

	if err := writeRow(f, GroupsSheet, 1, groupHeader); err != nil {
		return err
	}
	row := 2
	for _, g := range q.ByReason {
		if err := writeRow(f, GroupsSheet, row, []any{g.Reason, g.Count, g.Exposure.Decimal().InexactFloat64(), yesNo(g.Urgent)}); err != nil {
			return err
		}
		row++
	}
	if err := writeRow(f, GroupsSheet, row+1, []any{"Total", q.Total, q.Exposure.Decimal().InexactFloat64(), fmt.Sprintf("%d urgent", q.UrgentCount)}); err != nil {
		return err
	}
	if err := styleSheet(f, GroupsSheet, bold, money, "C", row+1, len(groupHeader)); err != nil {
		return err
	}

	if err := writeRow(f, ItemsSheet, 1, itemHeader); err != nil {
		return err
	}
	row = 2
	for _, g := range q.ByReason {
		for _, item := range g.Items {
			values := []any{
				item.PackageID,
				item.Period,
				item.CounterpartyID,
				item.Key,
				item.InvoiceID,
				item.Reason,
				item.Amount.Decimal().InexactFloat64(),
				yesNo(item.Urgent),
				item.Explanation,
				item.ProducedAt.UTC().Format("2006-01-02 15:04:05"),
			}
			if err := writeRow(f, ItemsSheet, row, values); err != nil {
				return err
			}
			row++
		}
	}
	if err := styleSheet(f, ItemsSheet, bold, money, "G", row-1, len(itemHeader)); err != nil {
		return err
	}

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	slog.Debug("Wrote queue workbook", "groups", len(q.ByReason), "items", q.Total)
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// styleSheet bolds the header, formats the money column through lastRow and
// widens the columns.
func styleSheet(f *excelize.File, sheet string, bold, money int, moneyCol string, lastRow, cols int) error {
	lastCol, err := excelize.ColumnNumberToName(cols)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	if lastRow >= 2 {
		if err := f.SetCellStyle(sheet, moneyCol+"2", fmt.Sprintf("%s%d", moneyCol, lastRow), money); err != nil {
			return fmt.Errorf("failed to style %s amounts: %w", sheet, err)
		}
	}
	return f.SetColWidth(sheet, "A", lastCol, 18)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
