package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/loader"
	"github.com/Veraticus/tally/internal/storage"
	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Import extracted packages",
		Long: `Import one or more extraction documents. Each file may hold a single package
object, an array of packages, or several objects back to back.

Records that cannot be parsed are reported and left out; the package is still
stored so its next reconciliation raises them for review. Importing a package id
that already exists fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().Bool("skip-existing", false, "skip packages that were already imported instead of failing")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	skipExisting, _ := cmd.Flags().GetBool("skip-existing")

	return withStorage(ctx, func(store *storage.SQLiteStorage) error {
		var imported, skipped int
		for _, path := range args {
			docs, err := loader.DecodeFile(path)
			if err != nil {
				return err
			}

			for _, doc := range docs {
				res, err := engine.Import(ctx, store, doc)
				if skipExisting && errors.Is(err, common.ErrDuplicateEntry) {
					slog.Info("Package already imported", "package_id", doc.ID, "file", path)
					skipped++
					continue
				}
				if err != nil {
					return fmt.Errorf("%s: package %q: %w", path, doc.ID, err)
				}
				imported++

				msg := fmt.Sprintf("Imported %s: %d invoices, %d charges", res.Package.ID,
					len(res.Package.Invoices), len(res.Package.Charges))
				fmt.Fprintln(out, cli.FormatSuccess(msg))
				for _, f := range res.Failures {
					fmt.Fprintln(out, "  "+cli.FormatWarning(f.Explanation))
				}
			}
		}

		summary := fmt.Sprintf("%d packages imported", imported)
		if skipped > 0 {
			summary += fmt.Sprintf(", %d skipped", skipped)
		}
		fmt.Fprintln(out, cli.FormatInfo(summary))
		return nil
	})
}
