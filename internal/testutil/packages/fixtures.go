package packages

import "github.com/Veraticus/tally/internal/model"

// Feedlot returns the March feedlot package: invoice 13335 is $2.00 above
// its statement charge, and lot 20-3927 appears on the statement with no
// invoice.
func Feedlot(id string) *model.RawPackage {
	return NewBuilder(id).
		Period("2024-03").
		Counterparty("ACME").
		WithInvoice("13335", "20-3926", "5448.03", "5426.59", "8.71", "12.73").
		WithCharge("20-3926", "5446.03").
		WithCharge("20-3927", "301.36").
		Build()
}

// Clean returns a package that reconciles to complete.
func Clean(id string) *model.RawPackage {
	return NewBuilder(id).
		Period("2024-03").
		Counterparty("ACME").
		WithInvoice("1", "A", "100.00", "60.00", "40.00").
		WithCharge("A", "100.00").
		WithStatementTotal("100.00").
		Build()
}
