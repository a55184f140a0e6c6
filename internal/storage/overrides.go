package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/loader"
	"github.com/Veraticus/tally/internal/model"
	"github.com/google/uuid"
)

// SaveOverride appends an operator correction. The original invoice total
// and charge amount are captured from the extracted records for the key, so
// the override goes stale by itself if those records ever change. When the
// caller already supplies non-zero originals they must agree with the
// extracted values, otherwise common.ErrStaleOverride is returned.
func (s *SQLiteStorage) SaveOverride(ctx context.Context, override *model.Override) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateOverride(override); err != nil {
		return err
	}

	override.Key = loader.NormalizeKey(override.Key)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireActive(ctx, tx, override.PackageID); err != nil {
			return err
		}

		invoiceTotal, err := singleInvoiceTotal(ctx, tx, override.PackageID, override.Key)
		if err != nil {
			return err
		}
		charges, err := getChargesTx(ctx, tx, override.PackageID, override.Key)
		if err != nil {
			return err
		}
		if len(charges) != 1 {
			return fmt.Errorf("%w: key %s has %d statement charges, want exactly 1", ErrInvalidOverride, override.Key, len(charges))
		}
		chargeAmount := charges[0].Amount

		if (override.OriginalInvoiceTotal != 0 && override.OriginalInvoiceTotal != invoiceTotal) ||
			(override.OriginalChargeAmount != 0 && override.OriginalChargeAmount != chargeAmount) {
			return fmt.Errorf("%w: key %s was extracted as invoice %s and charge %s",
				common.ErrStaleOverride, override.Key, invoiceTotal.Dollars(), chargeAmount.Dollars())
		}
		override.OriginalInvoiceTotal = invoiceTotal
		override.OriginalChargeAmount = chargeAmount

		if override.ID == "" {
			override.ID = uuid.NewString()
		}
		if override.CreatedAt.IsZero() {
			override.CreatedAt = time.Now().UTC()
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO overrides (id, package_id, key, author, note, original_invoice_total,
				original_charge_amount, corrected_amount, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, override.ID, override.PackageID, override.Key, override.Author, override.Note,
			int64(override.OriginalInvoiceTotal), int64(override.OriginalChargeAmount),
			int64(override.CorrectedAmount), override.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to save override: %w", err)
		}
		return nil
	})
}

func singleInvoiceTotal(ctx context.Context, q queryable, packageID, key string) (model.Cents, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT declared_total FROM invoices WHERE package_id = ? AND key = ?
	`, packageID, key)
	if err != nil {
		return 0, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var totals []int64
	for rows.Next() {
		var total int64
		if err := rows.Scan(&total); err != nil {
			return 0, fmt.Errorf("failed to scan invoice total: %w", err)
		}
		totals = append(totals, total)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate invoices: %w", err)
	}
	if len(totals) != 1 {
		return 0, fmt.Errorf("%w: key %s has %d invoices, want exactly 1", ErrInvalidOverride, key, len(totals))
	}
	return model.Cents(totals[0]), nil
}

// GetOverrides returns a package's overrides, oldest first.
func (s *SQLiteStorage) GetOverrides(ctx context.Context, packageID string) ([]model.Override, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(packageID, "packageID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, package_id, key, author, note, original_invoice_total, original_charge_amount,
			corrected_amount, created_at
		FROM overrides
		WHERE package_id = ?
		ORDER BY created_at, id
	`, packageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query overrides: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var overrides []model.Override
	for rows.Next() {
		var (
			o                               model.Override
			invoiceTotal, charge, corrected int64
		)
		if err := rows.Scan(&o.ID, &o.PackageID, &o.Key, &o.Author, &o.Note,
			&invoiceTotal, &charge, &corrected, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		o.OriginalInvoiceTotal = model.Cents(invoiceTotal)
		o.OriginalChargeAmount = model.Cents(charge)
		o.CorrectedAmount = model.Cents(corrected)
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}
