// Package cli renders tally's terminal output with lipgloss.
package cli

import (
	"github.com/Veraticus/tally/internal/model"
	"github.com/charmbracelet/lipgloss"
)

// Ledger palette.
var (
	ledgerGreen = lipgloss.Color("#2E8B57")
	settled     = lipgloss.Color("#4ECDC4")
	pending     = lipgloss.Color("#FFE66D")
	flagged     = lipgloss.Color("#FF6B6B")
	note        = lipgloss.Color("#95E1D3")
	faint       = lipgloss.Color("#666666")
	rule        = lipgloss.Color("#333333")
)

var (
	SuccessStyle = lipgloss.NewStyle().Foreground(settled)
	WarningStyle = lipgloss.NewStyle().Foreground(pending)
	ErrorStyle   = lipgloss.NewStyle().Foreground(flagged)
	InfoStyle    = lipgloss.NewStyle().Foreground(note)
	SubtleStyle  = lipgloss.NewStyle().Foreground(faint)
	BoldStyle    = lipgloss.NewStyle().Bold(true)

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(ledgerGreen)
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(ledgerGreen)
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(rule).
			Padding(1, 2)

	// TableHeaderStyle and TableCellStyle style the cells built by Table.
	TableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ledgerGreen).PaddingRight(2)
	TableCellStyle   = lipgloss.NewStyle().PaddingRight(2)
)

// UrgentIcon flags urgent queue items.
const UrgentIcon = "!"

func message(style lipgloss.Style, icon, text string) string {
	return style.Render(icon + " " + text)
}

// FormatSuccess renders a success line.
func FormatSuccess(text string) string { return message(SuccessStyle, "✓", text) }

// FormatError renders an error line.
func FormatError(text string) string { return message(ErrorStyle, "✗", text) }

// FormatWarning renders a warning line.
func FormatWarning(text string) string { return message(WarningStyle, "⚠️", text) }

// FormatInfo renders an informational line.
func FormatInfo(text string) string { return message(InfoStyle, "ℹ️", text) }

// FormatTitle renders a section title with a blank line below it.
func FormatTitle(title string) string {
	return titleStyle.MarginBottom(1).Render("📒 " + title)
}

// FormatPrompt renders a question waiting for input.
func FormatPrompt(prompt string) string {
	return promptStyle.Render(prompt + " → ")
}

// FormatStatus colors a package status: complete is green, review yellow,
// blocked bold red and anything else faint.
func FormatStatus(status model.PackageStatus) string {
	style := SubtleStyle
	switch status {
	case model.StatusComplete:
		style = SuccessStyle
	case model.StatusReview:
		style = WarningStyle
	case model.StatusBlocked:
		style = ErrorStyle.Bold(true)
	}
	return style.Render(string(status))
}

// RenderBox frames content under a title.
func RenderBox(title, content string) string {
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), content))
}
