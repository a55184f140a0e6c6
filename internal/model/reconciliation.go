package model

// MatchKind tags the outcome of pairing one reference key.
type MatchKind string

// Match kinds.
const (
	MatchMatched     MatchKind = "matched"
	MatchInvoiceOnly MatchKind = "invoice-only"
	MatchChargeOnly  MatchKind = "charge-only"
)

// MatchResult is the pairing outcome for one reference key. Invoice and
// Charge are set according to Kind.
type MatchResult struct {
	Invoice *Invoice
	Charge  *StatementCharge
	Key     string
	Kind    MatchKind
}

// DiscrepancyKind classifies a finding on a match result.
type DiscrepancyKind string

// Discrepancy kinds.
const (
	KindAmountMismatch     DiscrepancyKind = "AmountMismatch"
	KindMissingCounterpart DiscrepancyKind = "MissingCounterpart"
)

// Severity orders findings for review.
type Severity string

// Severity levels.
const (
	SeverityUrgent Severity = "urgent"
	SeverityNormal Severity = "normal"
)

// SuggestedSource names the side an operator should probably trust.
type SuggestedSource string

// Suggested sources of truth.
const (
	SourceInvoice    SuggestedSource = "invoice"
	SourceUnresolved SuggestedSource = "unresolved"
)

// Side names one of the two record sets.
type Side string

// Record sides.
const (
	SideInvoice   Side = "invoice"
	SideStatement Side = "statement"
)

// Discrepancy is a derived finding for one reference key. It is recomputed on
// every run and never edited in place.
type Discrepancy struct {
	Key                      string          `json:"key"`
	Kind                     DiscrepancyKind `json:"kind"`
	InvoiceID                string          `json:"invoice_id,omitempty"`
	Severity                 Severity        `json:"severity"`
	SuggestedSource          SuggestedSource `json:"suggested_source"`
	MissingSide              Side            `json:"missing_side,omitempty"`
	Explanation              string          `json:"explanation"`
	InvoiceTotal             Cents           `json:"invoice_total"`
	ChargeAmount             Cents           `json:"charge_amount"`
	Difference               Cents           `json:"difference"`
	AbsDifference            Cents           `json:"abs_difference"`
	RelativeDifference       float64         `json:"relative_difference"`
	LikelyTranscriptionError bool            `json:"likely_transcription_error"`
	InvoiceConsistent        bool            `json:"invoice_consistent"`
}

// IsUrgent reports whether the discrepancy is urgent.
func (d Discrepancy) IsUrgent() bool {
	return d.Severity == SeverityUrgent
}

// FailureKind enumerates validation failures.
type FailureKind string

// Validation failure kinds.
const (
	FailureUnparseableRecord      FailureKind = "UnparseableRecord"
	FailureLineItemMismatch       FailureKind = "LineItemMismatch"
	FailureIncompleteRecord       FailureKind = "IncompleteRecord"
	FailureDuplicateKey           FailureKind = "DuplicateKey"
	FailureMissingExtraction      FailureKind = "MissingExtraction"
	FailureStatementTotalMismatch FailureKind = "StatementTotalMismatch"
)

// ValidationFailure is a finding raised before matching. Amount is the dollar
// exposure the failure represents, used for queue ordering.
type ValidationFailure struct {
	Kind        FailureKind `json:"kind"`
	Key         string      `json:"key,omitempty"`
	InvoiceID   string      `json:"invoice_id,omitempty"`
	RecordRef   string      `json:"record_ref,omitempty"`
	Explanation string      `json:"explanation"`
	Amount      Cents       `json:"amount"`
}
