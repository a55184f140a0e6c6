package loader

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
)

// RecordError describes why one raw record could not be normalized.
type RecordError struct {
	Err   error
	Ref   string
	Field string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Ref, e.Field, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Result is the loader output for one package.
type Result struct {
	Package *model.Package
	// Failures holds one UnparseableRecord failure per rejected record.
	Failures []model.ValidationFailure
	// RejectedKeys lists normalized keys of rejected invoices whose key could
	// still be read, so completeness checks do not report them twice.
	RejectedKeys []string
}

// Normalize converts a raw extraction document into a canonical package.
// Records missing a required field are excluded and reported; the only hard
// error is a document that cannot be identified at all.
func Normalize(raw *model.RawPackage) (*Result, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: nil package document", common.ErrMalformedRecord)
	}
	if strings.TrimSpace(raw.ID) == "" {
		return nil, fmt.Errorf("%w: package_id is required", common.ErrMalformedRecord)
	}

	pkg := &model.Package{
		ID:             strings.TrimSpace(raw.ID),
		Period:         strings.TrimSpace(raw.Period),
		CounterpartyID: strings.TrimSpace(raw.CounterpartyID),
		Status:         model.StatusPending,
		Invoices:       make([]model.Invoice, 0, len(raw.Invoices)),
		Charges:        make([]model.StatementCharge, 0, len(raw.Statement.Charges)),
	}
	res := &Result{Package: pkg}
	rejected := make(map[string]struct{})

	for i, ri := range raw.Invoices {
		inv, err := normalizeInvoice(i, ri)
		if err != nil {
			res.Failures = append(res.Failures, unparseable(err, ri.InvoiceID, NormalizeKey(ri.LotKey)))
			if key := NormalizeKey(ri.LotKey); key != "" {
				rejected[key] = struct{}{}
			}
			continue
		}
		pkg.Invoices = append(pkg.Invoices, inv)
	}

	for i, rc := range raw.Statement.Charges {
		charge, err := normalizeCharge(i, rc)
		if err != nil {
			res.Failures = append(res.Failures, unparseable(err, "", NormalizeKey(rc.ReferenceKey)))
			continue
		}
		pkg.Charges = append(pkg.Charges, charge)
		pkg.DeclaredTotal += charge.Amount
	}

	if !raw.Statement.DeclaredTotal.IsZero() {
		total, err := ParseAmount(raw.Statement.DeclaredTotal)
		if err != nil {
			res.Failures = append(res.Failures,
				unparseable(&RecordError{Ref: "statement", Field: "declared_total", Err: err}, "", ""))
		} else {
			pkg.StatementTotal = &total
		}
	}

	seen := make(map[string]struct{}, len(raw.ExtractionSignals))
	for _, sig := range raw.ExtractionSignals {
		key := NormalizeKey(sig.ReferenceKey)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		pkg.ExpectedKeys = append(pkg.ExpectedKeys, key)
	}
	sort.Strings(pkg.ExpectedKeys)

	for key := range rejected {
		res.RejectedKeys = append(res.RejectedKeys, key)
	}
	sort.Strings(res.RejectedKeys)

	return res, nil
}

func normalizeInvoice(pos int, ri model.RawInvoice) (model.Invoice, error) {
	ref := fmt.Sprintf("invoice[%d]", pos)
	if id := strings.TrimSpace(ri.InvoiceID); id != "" {
		ref = fmt.Sprintf("invoice %s", id)
	}

	key := NormalizeKey(ri.LotKey)
	if key == "" {
		return model.Invoice{}, &RecordError{Ref: ref, Field: "lot_key",
			Err: fmt.Errorf("%w: missing reference key", common.ErrMalformedRecord)}
	}

	total, err := ParseAmount(ri.DeclaredTotal)
	if err != nil {
		return model.Invoice{}, &RecordError{Ref: ref, Field: "declared_total", Err: err}
	}

	items := make([]model.LineItem, 0, len(ri.LineItems))
	for j, li := range ri.LineItems {
		amount, err := ParseAmount(li.Amount)
		if err != nil {
			return model.Invoice{}, &RecordError{Ref: ref, Field: fmt.Sprintf("line_items[%d].amount", j), Err: err}
		}
		items = append(items, model.LineItem{
			Description: strings.TrimSpace(li.Description),
			Amount:      amount,
		})
	}

	var confidence map[string]float64
	if len(ri.Confidence) > 0 {
		confidence = make(map[string]float64, len(ri.Confidence))
		for k, v := range ri.Confidence {
			confidence[k] = v
		}
	}

	return model.Invoice{
		ID:            strings.TrimSpace(ri.InvoiceID),
		Key:           key,
		LineItems:     items,
		DeclaredTotal: total,
		Confidence:    confidence,
		Position:      pos,
	}, nil
}

func normalizeCharge(pos int, rc model.RawCharge) (model.StatementCharge, error) {
	ref := fmt.Sprintf("charge[%d]", pos)

	key := NormalizeKey(rc.ReferenceKey)
	if key == "" {
		return model.StatementCharge{}, &RecordError{Ref: ref, Field: "reference_key",
			Err: fmt.Errorf("%w: missing reference key", common.ErrMalformedRecord)}
	}

	amount, err := ParseAmount(rc.Amount)
	if err != nil {
		return model.StatementCharge{}, &RecordError{Ref: ref, Field: "amount", Err: err}
	}

	return model.StatementCharge{
		Key:         key,
		Description: strings.TrimSpace(rc.Description),
		Amount:      amount,
		Confidence:  rc.Confidence,
		Position:    pos,
	}, nil
}

func unparseable(err error, invoiceID, key string) model.ValidationFailure {
	f := model.ValidationFailure{
		Kind:        model.FailureUnparseableRecord,
		Key:         key,
		InvoiceID:   strings.TrimSpace(invoiceID),
		Explanation: err.Error(),
	}
	var recErr *RecordError
	if errors.As(err, &recErr) {
		f.RecordRef = recErr.Ref
	}
	return f
}
