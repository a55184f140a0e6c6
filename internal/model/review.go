package model

import "time"

// ItemSource tells whether a queue item came from a discrepancy or from a
// validation failure.
type ItemSource string

// Queue item sources.
const (
	ItemFromDiscrepancy ItemSource = "discrepancy"
	ItemFromValidation  ItemSource = "validation"
)

// ReviewQueueItem is a discrepancy or validation failure projected for the
// review queue. It is derived and recomputed on every run.
type ReviewQueueItem struct {
	ProducedAt     time.Time  `json:"produced_at"`
	PackageID      string     `json:"package_id"`
	Period         string     `json:"period"`
	CounterpartyID string     `json:"counterparty_id"`
	InvoiceID      string     `json:"invoice_id,omitempty"`
	Key            string     `json:"key,omitempty"`
	Source         ItemSource `json:"source"`
	Kind           string     `json:"kind"`
	Reason         string     `json:"reason"`
	Explanation    string     `json:"explanation"`
	Amount         Cents      `json:"amount"`
	Seq            int        `json:"seq"`
	Urgent         bool       `json:"urgent"`
}

// Override is an operator-recorded correction for one reference key. The
// original extracted values are captured so that a stale override (one whose
// originals no longer match the extracted data) is never applied.
type Override struct {
	CreatedAt            time.Time `json:"created_at"`
	ID                   string    `json:"id"`
	PackageID            string    `json:"package_id"`
	Key                  string    `json:"key"`
	Author               string    `json:"author"`
	Note                 string    `json:"note,omitempty"`
	OriginalInvoiceTotal Cents     `json:"original_invoice_total"`
	OriginalChargeAmount Cents     `json:"original_charge_amount"`
	CorrectedAmount      Cents     `json:"corrected_amount"`
}

// ReconciliationRun is one recorded pipeline execution for a package.
type ReconciliationRun struct {
	RunAt            time.Time     `json:"run_at"`
	ID               string        `json:"id"`
	PackageID        string        `json:"package_id"`
	Status           PackageStatus `json:"status"`
	DiscrepancyCount int           `json:"discrepancy_count"`
	FailureCount     int           `json:"failure_count"`
}
