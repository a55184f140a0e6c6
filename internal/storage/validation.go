// Package storage provides the data persistence layer for tally.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/service"
)

// Validation errors.
var (
	ErrNilContext      = errors.New("context cannot be nil")
	ErrEmptyString     = errors.New("string parameter cannot be empty")
	ErrNilParameter    = errors.New("parameter cannot be nil")
	ErrInvalidPackage  = errors.New("invalid package")
	ErrInvalidOverride = errors.New("invalid override")
	ErrInvalidStatus   = errors.New("invalid package status")
	ErrInvalidRun      = errors.New("invalid reconciliation run")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateStatus(status model.PackageStatus) error {
	switch status {
	case model.StatusPending, model.StatusComplete, model.StatusReview, model.StatusBlocked:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
}

// validatePackage checks a loaded package against the raw document it came from.
func validatePackage(raw *model.RawPackage, pkg *model.Package) error {
	if raw == nil {
		return fmt.Errorf("%w: raw document", ErrNilParameter)
	}
	if pkg == nil {
		return fmt.Errorf("%w: package", ErrNilParameter)
	}
	if strings.TrimSpace(pkg.ID) == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidPackage)
	}
	if strings.TrimSpace(raw.ID) != pkg.ID {
		return fmt.Errorf("%w: raw document %q does not match package %q", ErrInvalidPackage, raw.ID, pkg.ID)
	}
	for i, inv := range pkg.Invoices {
		if strings.TrimSpace(inv.Key) == "" {
			return fmt.Errorf("%w: invoice at index %d has no key", ErrInvalidPackage, i)
		}
	}
	for i, c := range pkg.Charges {
		if strings.TrimSpace(c.Key) == "" {
			return fmt.Errorf("%w: charge at index %d has no key", ErrInvalidPackage, i)
		}
	}
	return nil
}

// validateOverride checks the operator-supplied part of an override.
func validateOverride(o *model.Override) error {
	if o == nil {
		return fmt.Errorf("%w: override", ErrNilParameter)
	}
	if strings.TrimSpace(o.PackageID) == "" {
		return fmt.Errorf("%w: missing package ID", ErrInvalidOverride)
	}
	if strings.TrimSpace(o.Key) == "" {
		return fmt.Errorf("%w: missing key", ErrInvalidOverride)
	}
	if strings.TrimSpace(o.Author) == "" {
		return fmt.Errorf("%w: missing author", ErrInvalidOverride)
	}
	return nil
}

func validateRunResult(r *service.RunResult) error {
	if r == nil {
		return fmt.Errorf("%w: run result", ErrNilParameter)
	}
	if strings.TrimSpace(r.Run.PackageID) == "" {
		return fmt.Errorf("%w: missing package ID", ErrInvalidRun)
	}
	if err := validateStatus(r.Run.Status); err != nil {
		return err
	}
	if r.Run.Status == model.StatusPending {
		return fmt.Errorf("%w: a run cannot leave a package pending", ErrInvalidRun)
	}
	for i, item := range r.Items {
		if item.PackageID != r.Run.PackageID {
			return fmt.Errorf("%w: review item %d belongs to package %q", ErrInvalidRun, i, item.PackageID)
		}
	}
	return nil
}
