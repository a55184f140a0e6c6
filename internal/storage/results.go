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
	"github.com/google/uuid"
)

var _ service.Storage = (*SQLiteStorage)(nil)

// SaveRunResult publishes one reconciliation of a package. The package's
// discrepancies, review items and invoice checks are replaced wholesale,
// its status and review count are updated, and the run is appended to the
// history. Extracted invoices are never written. Everything happens in one transaction.
func (s *SQLiteStorage) SaveRunResult(ctx context.Context, result *service.RunResult) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRunResult(result); err != nil {
		return err
	}

	run := &result.Run
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.RunAt.IsZero() {
		run.RunAt = time.Now().UTC()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireActive(ctx, tx, run.PackageID); err != nil {
			return err
		}

		for _, stmt := range []string{
			`DELETE FROM discrepancies WHERE package_id = ?`,
			`DELETE FROM review_items WHERE package_id = ?`,
			`DELETE FROM invoice_checks WHERE package_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, run.PackageID); err != nil {
				return fmt.Errorf("failed to clear derived results: %w", err)
			}
		}

		for _, d := range result.Discrepancies {
			payload, err := json.Marshal(d)
			if err != nil {
				return fmt.Errorf("failed to encode discrepancy: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO discrepancies (package_id, key, kind, severity, payload)
				VALUES (?, ?, ?, ?, ?)
			`, run.PackageID, d.Key, d.Kind, d.Severity, string(payload))
			if err != nil {
				return fmt.Errorf("failed to save discrepancy for key %s: %w", d.Key, err)
			}
		}

		for _, item := range result.Items {
			payload, err := json.Marshal(item)
			if err != nil {
				return fmt.Errorf("failed to encode review item: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO review_items (package_id, seq, period, counterparty_id, reason, urgent, amount, produced_at, payload)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, run.PackageID, item.Seq, item.Period, item.CounterpartyID, item.Reason, item.Urgent,
				int64(item.Amount), item.ProducedAt, string(payload))
			if err != nil {
				return fmt.Errorf("failed to save review item %d: %w", item.Seq, err)
			}
		}

		for _, inv := range result.Invoices {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO invoice_checks (package_id, position, consistent) VALUES (?, ?, ?)
			`, run.PackageID, inv.Position, inv.Consistent)
			if err != nil {
				return fmt.Errorf("failed to record consistency of invoice %d: %w", inv.Position, err)
			}
		}

		_, err := tx.ExecContext(ctx, `
			UPDATE packages SET status = ?, review_count = ?, last_reconciled_at = ? WHERE id = ?
		`, run.Status, result.ReviewCount, run.RunAt, run.PackageID)
		if err != nil {
			return fmt.Errorf("failed to update package status: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO reconciliation_runs (id, package_id, status, discrepancy_count, failure_count, run_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, run.ID, run.PackageID, run.Status, run.DiscrepancyCount, run.FailureCount, run.RunAt)
		if err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
		return nil
	})
}

// GetDiscrepancies returns the cached discrepancies of a package's latest run.
func (s *SQLiteStorage) GetDiscrepancies(ctx context.Context, packageID string) ([]model.Discrepancy, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(packageID, "packageID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM discrepancies WHERE package_id = ? ORDER BY key
	`, packageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query discrepancies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Discrepancy
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan discrepancy: %w", err)
		}
		var d model.Discrepancy
		if err := json.Unmarshal([]byte(payload), &d); err != nil {
			return nil, fmt.Errorf("%w: discrepancy payload: %v", common.ErrDatabaseCorrupted, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) getDiscrepancy(ctx context.Context, packageID, key string) (*model.Discrepancy, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM discrepancies WHERE package_id = ? AND key = ?
	`, packageID, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: discrepancy for key %s", common.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get discrepancy: %w", err)
	}

	var d model.Discrepancy
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		return nil, fmt.Errorf("%w: discrepancy payload: %v", common.ErrDatabaseCorrupted, err)
	}
	return &d, nil
}

// GetReviewItems returns cached review items of active packages, oldest
// first.
func (s *SQLiteStorage) GetReviewItems(ctx context.Context, filter service.ReviewItemFilter) ([]model.ReviewQueueItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	where := []string{"p.archived_at IS NULL"}
	var args []any
	if filter.PackageID != "" {
		where = append(where, "r.package_id = ?")
		args = append(args, filter.PackageID)
	}
	if filter.Period != "" {
		where = append(where, "r.period = ?")
		args = append(args, filter.Period)
	}
	if filter.CounterpartyID != "" {
		where = append(where, "r.counterparty_id = ?")
		args = append(args, filter.CounterpartyID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.payload FROM review_items r
		JOIN packages p ON p.id = r.package_id
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY r.produced_at, r.seq, r.package_id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query review items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.ReviewQueueItem
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan review item: %w", err)
		}
		var item model.ReviewQueueItem
		if err := json.Unmarshal([]byte(payload), &item); err != nil {
			return nil, fmt.Errorf("%w: review item payload: %v", common.ErrDatabaseCorrupted, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetRuns returns a package's most recent runs, newest first. A limit of
// zero returns all of them.
func (s *SQLiteStorage) GetRuns(ctx context.Context, packageID string, limit int) ([]model.ReconciliationRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(packageID, "packageID"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, package_id, status, discrepancy_count, failure_count, run_at
		FROM reconciliation_runs
		WHERE package_id = ?
		ORDER BY seq DESC
		LIMIT ?
	`, packageID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.ReconciliationRun
	for rows.Next() {
		var r model.ReconciliationRun
		if err := rows.Scan(&r.ID, &r.PackageID, &r.Status, &r.DiscrepancyCount, &r.FailureCount, &r.RunAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ConsecutiveFailedRuns counts the package's most recent runs that did not
// end complete, stopping at the first complete one.
func (s *SQLiteStorage) ConsecutiveFailedRuns(ctx context.Context, packageID string) (int, error) {
	runs, err := s.GetRuns(ctx, packageID, 0)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, r := range runs {
		if r.Status == model.StatusComplete {
			break
		}
		count++
	}
	return count, nil
}
