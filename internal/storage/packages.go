package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/service"
)

// SavePackage stores the raw document and its extracted records. Extracted
// records are immutable: saving a package ID that already exists fails with
// common.ErrDuplicateEntry.
func (s *SQLiteStorage) SavePackage(ctx context.Context, raw *model.RawPackage, pkg *model.Package) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePackage(raw, pkg); err != nil {
		return err
	}

	doc, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to encode raw document: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM packages WHERE id = ?)`, pkg.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check package existence: %w", err)
		}
		if exists {
			return fmt.Errorf("%w: package %s", common.ErrDuplicateEntry, pkg.ID)
		}

		var statementTotal sql.NullInt64
		if pkg.StatementTotal != nil {
			statementTotal = sql.NullInt64{Int64: int64(*pkg.StatementTotal), Valid: true}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO packages (id, period, counterparty_id, status, declared_total, statement_total,
				invoice_count, charge_count, review_count, raw_document, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		`, pkg.ID, pkg.Period, pkg.CounterpartyID, model.StatusPending, int64(pkg.DeclaredTotal), statementTotal,
			len(pkg.Invoices), len(pkg.Charges), string(doc), time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to save package: %w", err)
		}

		for _, inv := range pkg.Invoices {
			if err := insertInvoice(ctx, tx, pkg.ID, inv); err != nil {
				return err
			}
		}

		for _, c := range pkg.Charges {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO statement_charges (package_id, position, key, description, amount, confidence)
				VALUES (?, ?, ?, ?, ?, ?)
			`, pkg.ID, c.Position, c.Key, c.Description, int64(c.Amount), c.Confidence)
			if err != nil {
				return fmt.Errorf("failed to save statement charge %d: %w", c.Position, err)
			}
		}
		return nil
	})
}

func insertInvoice(ctx context.Context, tx *sql.Tx, packageID string, inv model.Invoice) error {
	var confidence sql.NullString
	if len(inv.Confidence) > 0 {
		b, err := json.Marshal(inv.Confidence)
		if err != nil {
			return fmt.Errorf("failed to encode confidence: %w", err)
		}
		confidence = sql.NullString{String: string(b), Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO invoices (package_id, position, invoice_id, key, declared_total, confidence)
		VALUES (?, ?, ?, ?, ?, ?)
	`, packageID, inv.Position, inv.ID, inv.Key, int64(inv.DeclaredTotal), confidence)
	if err != nil {
		return fmt.Errorf("failed to save invoice %d: %w", inv.Position, err)
	}

	for j, li := range inv.LineItems {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO line_items (package_id, invoice_position, position, description, amount)
			VALUES (?, ?, ?, ?, ?)
		`, packageID, inv.Position, j, li.Description, int64(li.Amount))
		if err != nil {
			return fmt.Errorf("failed to save line item %d of invoice %d: %w", j, inv.Position, err)
		}
	}
	return nil
}

// GetRawPackage returns the document a package was imported from.
func (s *SQLiteStorage) GetRawPackage(ctx context.Context, id string) (*model.RawPackage, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT raw_document FROM packages WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: package %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get raw package: %w", err)
	}

	var raw model.RawPackage
	if err := json.Unmarshal([]byte(doc), &raw); err != nil {
		return nil, fmt.Errorf("%w: raw document for %s: %v", common.ErrDatabaseCorrupted, id, err)
	}
	return &raw, nil
}

const packageColumns = `id, period, counterparty_id, status, declared_total, invoice_count, charge_count,
	review_count, created_at, last_reconciled_at, archived_at`

// GetPackage returns one package summary.
func (s *SQLiteStorage) GetPackage(ctx context.Context, id string) (*model.PackageSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getPackageTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getPackageTx(ctx context.Context, q queryable, id string) (*model.PackageSummary, error) {
	row := q.QueryRowContext(ctx, `SELECT `+packageColumns+` FROM packages WHERE id = ?`, id)
	summary, err := scanPackage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: package %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get package: %w", err)
	}
	return summary, nil
}

// ListPackages returns package summaries ordered by period then ID.
func (s *SQLiteStorage) ListPackages(ctx context.Context, filter service.PackageFilter) ([]model.PackageSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if filter.Status != "" {
		if err := validateStatus(filter.Status); err != nil {
			return nil, err
		}
	}

	var where []string
	var args []any
	if !filter.IncludeArchived {
		where = append(where, "archived_at IS NULL")
	}
	if filter.ID != "" {
		where = append(where, "id = ?")
		args = append(args, filter.ID)
	}
	if filter.Period != "" {
		where = append(where, "period = ?")
		args = append(args, filter.Period)
	}
	if filter.CounterpartyID != "" {
		where = append(where, "counterparty_id = ?")
		args = append(args, filter.CounterpartyID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT ` + packageColumns + ` FROM packages`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY period, id"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query packages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var packages []model.PackageSummary
	for rows.Next() {
		summary, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan package: %w", err)
		}
		packages = append(packages, *summary)
	}
	return packages, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPackage(row scanner) (*model.PackageSummary, error) {
	var (
		p          model.PackageSummary
		total      int64
		reconciled sql.NullTime
		archived   sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Period, &p.CounterpartyID, &p.Status, &total, &p.InvoiceCount, &p.ChargeCount,
		&p.ReviewCount, &p.CreatedAt, &reconciled, &archived)
	if err != nil {
		return nil, err
	}
	p.DeclaredTotal = model.Cents(total)
	if reconciled.Valid {
		t := reconciled.Time
		p.LastReconciledAt = &t
	}
	if archived.Valid {
		t := archived.Time
		p.ArchivedAt = &t
	}
	return &p, nil
}

// ArchivePackage hides a package from listings, queues and reconciliation.
// Its records are kept.
func (s *SQLiteStorage) ArchivePackage(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireActive(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE packages SET archived_at = ? WHERE id = ?`, time.Now().UTC(), id); err != nil {
			return fmt.Errorf("failed to archive package: %w", err)
		}
		return nil
	})
}

// requireActive fails with ErrNotFound or ErrArchived.
func requireActive(ctx context.Context, q queryable, id string) error {
	var archived sql.NullTime
	err := q.QueryRowContext(ctx, `SELECT archived_at FROM packages WHERE id = ?`, id).Scan(&archived)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: package %s", common.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to get package: %w", err)
	}
	if archived.Valid {
		return fmt.Errorf("%w: %s", common.ErrArchived, id)
	}
	return nil
}

// GetInvoices returns a package's invoices in extraction order.
func (s *SQLiteStorage) GetInvoices(ctx context.Context, packageID string) ([]model.Invoice, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(packageID, "packageID"); err != nil {
		return nil, err
	}
	return s.getInvoicesTx(ctx, s.db, packageID, "")
}

// getInvoicesTx loads invoices and their line items. A non-empty invoiceID
// restricts the result to that invoice.
func (s *SQLiteStorage) getInvoicesTx(ctx context.Context, q queryable, packageID, invoiceID string) ([]model.Invoice, error) {
	query := `SELECT i.position, i.invoice_id, i.key, i.declared_total, i.confidence, c.consistent
		FROM invoices i
		LEFT JOIN invoice_checks c ON c.package_id = i.package_id AND c.position = i.position
		WHERE i.package_id = ?`
	args := []any{packageID}
	if invoiceID != "" {
		query += " AND i.invoice_id = ?"
		args = append(args, invoiceID)
	}
	query += " ORDER BY i.position"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}

	var invoices []model.Invoice
	for rows.Next() {
		var (
			inv        model.Invoice
			total      int64
			confidence sql.NullString
			consistent sql.NullBool
		)
		if err := rows.Scan(&inv.Position, &inv.ID, &inv.Key, &total, &confidence, &consistent); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		inv.DeclaredTotal = model.Cents(total)
		inv.Consistent = consistent.Valid && consistent.Bool
		if confidence.Valid {
			if err := json.Unmarshal([]byte(confidence.String), &inv.Confidence); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("%w: invoice confidence: %v", common.ErrDatabaseCorrupted, err)
			}
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("failed to iterate invoices: %w", err)
	}
	_ = rows.Close()

	for i := range invoices {
		items, err := getLineItems(ctx, q, packageID, invoices[i].Position)
		if err != nil {
			return nil, err
		}
		invoices[i].LineItems = items
	}
	return invoices, nil
}

func getLineItems(ctx context.Context, q queryable, packageID string, invoicePosition int) ([]model.LineItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT description, amount FROM line_items
		WHERE package_id = ? AND invoice_position = ?
		ORDER BY position
	`, packageID, invoicePosition)
	if err != nil {
		return nil, fmt.Errorf("failed to query line items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []model.LineItem{}
	for rows.Next() {
		var li model.LineItem
		var amount int64
		if err := rows.Scan(&li.Description, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		li.Amount = model.Cents(amount)
		items = append(items, li)
	}
	return items, rows.Err()
}

// GetInvoiceDetail returns one invoice with its line items and the
// discrepancy the latest run attached to its key, if any.
func (s *SQLiteStorage) GetInvoiceDetail(ctx context.Context, packageID, invoiceID string) (*model.InvoiceDetail, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(packageID, "packageID"); err != nil {
		return nil, err
	}
	if err := validateString(invoiceID, "invoiceID"); err != nil {
		return nil, err
	}

	invoices, err := s.getInvoicesTx(ctx, s.db, packageID, invoiceID)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, fmt.Errorf("%w: invoice %s in package %s", common.ErrNotFound, invoiceID, packageID)
	}

	detail := &model.InvoiceDetail{PackageID: packageID, Invoice: invoices[0]}
	d, err := s.getDiscrepancy(ctx, packageID, invoices[0].Key)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	detail.Discrepancy = d
	return detail, nil
}

// GetStatementCharges returns a package's statement charges in statement order.
func (s *SQLiteStorage) GetStatementCharges(ctx context.Context, packageID string) ([]model.StatementCharge, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(packageID, "packageID"); err != nil {
		return nil, err
	}
	return getChargesTx(ctx, s.db, packageID, "")
}

func getChargesTx(ctx context.Context, q queryable, packageID, key string) ([]model.StatementCharge, error) {
	query := `SELECT position, key, description, amount, confidence FROM statement_charges WHERE package_id = ?`
	args := []any{packageID}
	if key != "" {
		query += " AND key = ?"
		args = append(args, key)
	}
	query += " ORDER BY position"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query statement charges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var charges []model.StatementCharge
	for rows.Next() {
		var c model.StatementCharge
		var amount int64
		if err := rows.Scan(&c.Position, &c.Key, &c.Description, &amount, &c.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan statement charge: %w", err)
		}
		c.Amount = model.Cents(amount)
		charges = append(charges, c)
	}
	return charges, rows.Err()
}
