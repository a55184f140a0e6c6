// Package packages provides a fluent builder for raw extraction documents
// used in tests, plus fixtures for the scenarios tests keep reaching for.
//
// Example usage:
//
//	raw := packages.NewBuilder("PKG-1").
//		Period("2024-03").
//		WithInvoice("13335", "20-3926", "5448.03", "5426.59", "8.71", "12.73").
//		WithCharge("20-3926", "5446.03").
//		Build()
package packages

import (
	"github.com/Veraticus/tally/internal/model"
)

// Builder accumulates a raw package document.
type Builder interface {
	// Period sets the billing period.
	Period(period string) Builder

	// Counterparty sets the counterparty ID.
	Counterparty(id string) Builder

	// WithInvoice adds an invoice with a declared total and line item amounts.
	WithInvoice(invoiceID, key, total string, lineItems ...string) Builder

	// WithCharge adds a statement charge.
	WithCharge(key, amount string) Builder

	// WithStatementTotal sets the statement's printed total.
	WithStatementTotal(total string) Builder

	// WithSignal records that extraction recognized an invoice page for key.
	WithSignal(key string, page int) Builder

	// Build returns the document. The builder may keep being used.
	Build() *model.RawPackage
}

type packageBuilder struct {
	raw model.RawPackage
}

// NewBuilder creates a builder for package id.
func NewBuilder(id string) Builder {
	return &packageBuilder{raw: model.RawPackage{ID: id}}
}

func (b *packageBuilder) Period(period string) Builder {
	b.raw.Period = period
	return b
}

func (b *packageBuilder) Counterparty(id string) Builder {
	b.raw.CounterpartyID = id
	return b
}

func (b *packageBuilder) WithInvoice(invoiceID, key, total string, lineItems ...string) Builder {
	inv := model.RawInvoice{
		InvoiceID:     invoiceID,
		LotKey:        key,
		DeclaredTotal: model.RawAmount(total),
	}
	for _, amount := range lineItems {
		inv.LineItems = append(inv.LineItems, model.RawLineItem{Description: "line item", Amount: model.RawAmount(amount)})
	}
	b.raw.Invoices = append(b.raw.Invoices, inv)
	return b
}

func (b *packageBuilder) WithCharge(key, amount string) Builder {
	b.raw.Statement.Charges = append(b.raw.Statement.Charges, model.RawCharge{
		ReferenceKey: key,
		Description:  "Lot " + key,
		Amount:       model.RawAmount(amount),
	})
	return b
}

func (b *packageBuilder) WithStatementTotal(total string) Builder {
	b.raw.Statement.DeclaredTotal = model.RawAmount(total)
	return b
}

func (b *packageBuilder) WithSignal(key string, page int) Builder {
	b.raw.ExtractionSignals = append(b.raw.ExtractionSignals, model.ExtractionSignal{ReferenceKey: key, Page: page})
	return b
}

func (b *packageBuilder) Build() *model.RawPackage {
	out := b.raw
	out.Invoices = append([]model.RawInvoice(nil), b.raw.Invoices...)
	out.Statement.Charges = append([]model.RawCharge(nil), b.raw.Statement.Charges...)
	out.ExtractionSignals = append([]model.ExtractionSignal(nil), b.raw.ExtractionSignals...)
	return &out
}
