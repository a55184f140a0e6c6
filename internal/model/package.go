// Package model defines the core domain models used throughout the application.
package model

import "time"

// PackageStatus is the reconciliation state of a package.
type PackageStatus string

// Package status constants.
const (
	// StatusPending means the package has been imported but never reconciled.
	StatusPending PackageStatus = "pending"
	// StatusComplete means no discrepancies and no unresolved validation failures.
	StatusComplete PackageStatus = "complete"
	// StatusReview means at least one finding needs an operator decision.
	StatusReview PackageStatus = "review"
	// StatusBlocked means an escalation policy fired for the package.
	StatusBlocked PackageStatus = "blocked"
)

// IsTerminal reports whether the status is complete or blocked.
func (s PackageStatus) IsTerminal() bool {
	return s == StatusComplete || s == StatusBlocked
}

// Package is one billing cycle for one counterparty: a batch of invoices and
// the statement that covers them.
type Package struct {
	StatementTotal *Cents
	ID             string
	Period         string
	CounterpartyID string
	Status         PackageStatus
	Invoices       []Invoice
	Charges        []StatementCharge
	ExpectedKeys   []string
	DeclaredTotal  Cents
}

// Invoice is one billed document.
type Invoice struct {
	Confidence    map[string]float64 `json:"confidence,omitempty"`
	ID            string             `json:"invoice_id"`
	Key           string             `json:"key"`
	LineItems     []LineItem         `json:"line_items"`
	DeclaredTotal Cents              `json:"declared_total"`
	Position      int                `json:"position"`
	Consistent    bool               `json:"consistent"`
}

// LineItemTotal sums the invoice's line items.
func (i Invoice) LineItemTotal() Cents {
	var total Cents
	for _, li := range i.LineItems {
		total += li.Amount
	}
	return total
}

// LineItem is a charge component of an invoice.
type LineItem struct {
	Description string `json:"description"`
	Amount      Cents  `json:"amount"`
}

// StatementCharge is one row of the counterparty's statement.
type StatementCharge struct {
	Key         string  `json:"key"`
	Description string  `json:"description"`
	Amount      Cents   `json:"amount"`
	Confidence  float64 `json:"confidence"`
	Position    int     `json:"position"`
}

// HasStatementCrossCheck reports whether the statement printed its own total
// and that total agrees with the sum of its charges.
func (p *Package) HasStatementCrossCheck() bool {
	return p.StatementTotal != nil && *p.StatementTotal == p.DeclaredTotal
}

// PackageSummary is the list/detail projection of a stored package.
type PackageSummary struct {
	CreatedAt        time.Time     `json:"created_at"`
	LastReconciledAt *time.Time    `json:"last_reconciled_at,omitempty"`
	ArchivedAt       *time.Time    `json:"archived_at,omitempty"`
	ID               string        `json:"id"`
	Period           string        `json:"period"`
	CounterpartyID   string        `json:"counterparty_id"`
	Status           PackageStatus `json:"status"`
	DeclaredTotal    Cents         `json:"declared_total"`
	InvoiceCount     int           `json:"invoice_count"`
	ChargeCount      int           `json:"charge_count"`
	ReviewCount      int           `json:"review_count"`
}

// InvoiceDetail is an invoice together with its package reference and any
// discrepancy the latest run attached to its key.
type InvoiceDetail struct {
	Discrepancy *Discrepancy `json:"discrepancy,omitempty"`
	PackageID   string       `json:"package_id"`
	Invoice
}
