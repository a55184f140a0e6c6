package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RawPackage is the document the extraction pipeline produces for one package.
// Values are kept exactly as extracted; normalization happens in the loader.
type RawPackage struct {
	ID                string             `json:"package_id"`
	Period            string             `json:"period"`
	CounterpartyID    string             `json:"counterparty_id"`
	Invoices          []RawInvoice       `json:"invoices"`
	Statement         RawStatement       `json:"statement"`
	ExtractionSignals []ExtractionSignal `json:"extraction_signals,omitempty"`
}

// RawInvoice is an invoice as extracted.
type RawInvoice struct {
	Confidence    map[string]float64 `json:"confidence,omitempty"`
	InvoiceID     string             `json:"invoice_id"`
	LotKey        string             `json:"lot_key"`
	DeclaredTotal RawAmount          `json:"declared_total"`
	LineItems     []RawLineItem      `json:"line_items"`
}

// RawLineItem is a line item as extracted.
type RawLineItem struct {
	Description string    `json:"description"`
	Amount      RawAmount `json:"amount"`
}

// RawStatement is the counterparty statement as extracted.
type RawStatement struct {
	DeclaredTotal RawAmount   `json:"declared_total,omitempty"`
	Charges       []RawCharge `json:"charges"`
}

// RawCharge is a statement row as extracted.
type RawCharge struct {
	ReferenceKey string    `json:"reference_key"`
	Description  string    `json:"description"`
	Amount       RawAmount `json:"amount"`
	Confidence   float64   `json:"confidence"`
}

// ExtractionSignal records that extraction recognized an invoice page for a key.
type ExtractionSignal struct {
	ReferenceKey string `json:"reference_key"`
	Page         int    `json:"page,omitempty"`
}

// RawAmount holds the literal text of an extracted amount. Extraction emits
// either JSON strings ("$5,448.03") or bare numbers (5448.03); both are kept
// as text so no float conversion ever touches the value.
type RawAmount string

// IsZero reports whether the amount was absent.
func (a RawAmount) IsZero() bool {
	return a == ""
}

// UnmarshalJSON accepts a JSON string, number or null.
func (a *RawAmount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*a = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = RawAmount(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("amount must be a string or number: %w", err)
		}
		*a = RawAmount(n.String())
	}
	return nil
}

// MarshalJSON writes the literal text back as a JSON string.
func (a RawAmount) MarshalJSON() ([]byte, error) {
	if a == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(a))
}
