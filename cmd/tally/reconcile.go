package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"io"
	"sync"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/service"
	"github.com/Veraticus/tally/internal/storage"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile stored packages",
		Long: `Reconcile every active package (or the ones selected by flags): validate each
invoice, match invoices to statement charges, classify the disagreements, and
publish the package status and its review items.

Overrides recorded with 'tally override add' are applied on every run. Packages
that finish before an interrupt are saved.`,
		RunE: runReconcile,
	}

	cmd.Flags().String("package", "", "reconcile only this package")
	cmd.Flags().String("period", "", "reconcile only packages from this period")
	cmd.Flags().String("counterparty", "", "reconcile only packages for this counterparty")
	cmd.Flags().Bool("no-progress", false, "disable the progress bar")
	cmd.Flags().Bool("json", false, "print the full report as JSON")

	return cmd
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	pkgID, _ := cmd.Flags().GetString("package")
	period, _ := cmd.Flags().GetString("period")
	counterparty, _ := cmd.Flags().GetString("counterparty")
	noProgress, _ := cmd.Flags().GetBool("no-progress")
	asJSON, _ := cmd.Flags().GetBool("json")

	handler := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := handler.HandleInterrupts(cmd.Context(), "tally reconcile")

	var opts []engine.Option
	bar := newProgress(noProgress || asJSON, cmd.ErrOrStderr())
	if bar != nil {
		opts = append(opts, engine.WithProgress(bar.update))
	}
	eng, err := newEngine(opts...)
	if err != nil {
		return err
	}

	return withStorage(ctx, func(store *storage.SQLiteStorage) error {
		report, err := eng.ReconcileStored(ctx, store, service.PackageFilter{
			ID:             pkgID,
			Period:         period,
			CounterpartyID: counterparty,
		})
		bar.finish()
		if errors.Is(err, engine.ErrNoPackages) {
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No active packages match."))
			return nil
		}
		if report == nil {
			return err
		}

		if asJSON {
			if jsonErr := writeJSON(cmd.OutOrStdout(), report); jsonErr != nil {
				return jsonErr
			}
		} else if renderErr := cli.RenderReport(cmd.OutOrStdout(), report); renderErr != nil {
			return renderErr
		}

		if err != nil && handler.WasInterrupted() {
			slog.Info("Reconciliation stopped early", "finished", len(report.Results))
			return context.Canceled
		}
		return err
	})
}

// progress adapts the engine's progress callback to a progress bar. The
// callback fires from worker goroutines, so counts can arrive out of order;
// each call advances the bar by one.
type progress struct {
	out io.Writer
	bar *progressbar.ProgressBar
	mu  sync.Mutex
}

func newProgress(disabled bool, out io.Writer) *progress {
	if disabled {
		return nil
	}
	return &progress{out: out}
}

func (p *progress) update(_, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription("Reconciling"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = p.bar.Add(1)
}

func (p *progress) finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
