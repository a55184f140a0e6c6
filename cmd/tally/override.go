package main

import (
	"fmt"
	"os/user"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/loader"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/storage"
	"github.com/spf13/cobra"
)

func overrideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override",
		Short: "Record and list operator corrections",
		Long: `Overrides correct the amount the statement shows for a matched invoice. They
never change the extracted records; each run applies the latest override per key
whose recorded originals still match what was extracted.`,
	}

	cmd.AddCommand(overrideAddCmd())
	cmd.AddCommand(overrideListCmd())

	return cmd
}

func overrideAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <package> <key> <corrected-amount>",
		Short: "Record a corrected amount for a key",
		Example: `  tally override add PKG-2024-03-ACME 20-3926 5448.03 --note "statement typo"
  tally override add PKG-2024-03-ACME 20-3926 '$5,448.03' --author ops`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			author, _ := cmd.Flags().GetString("author")
			note, _ := cmd.Flags().GetString("note")

			amount, err := loader.ParseAmount(model.RawAmount(args[2]))
			if err != nil {
				return fmt.Errorf("corrected amount: %w", err)
			}
			if author == "" {
				author = currentUser()
			}

			o := &model.Override{
				PackageID:       args[0],
				Key:             args[1],
				Author:          author,
				Note:            note,
				CorrectedAmount: amount,
			}
			return withStorage(ctx, func(store *storage.SQLiteStorage) error {
				if err := store.SaveOverride(ctx, o); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
					"Override recorded for %s: %s (invoice %s, statement %s)",
					o.Key, o.CorrectedAmount.Dollars(), o.OriginalInvoiceTotal.Dollars(), o.OriginalChargeAmount.Dollars())))
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Run 'tally reconcile --package "+o.PackageID+"' to apply it."))
				return nil
			})
		},
	}

	cmd.Flags().String("author", "", "who made the correction (default: current user)")
	cmd.Flags().String("note", "", "why the correction was made")

	return cmd
}

func overrideListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <package>",
		Short: "List the overrides recorded for a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withStorage(ctx, func(store *storage.SQLiteStorage) error {
				if _, err := store.GetPackage(ctx, args[0]); err != nil {
					return err
				}
				overrides, err := store.GetOverrides(ctx, args[0])
				if err != nil {
					return err
				}
				return cli.RenderOverrides(cmd.OutOrStdout(), overrides)
			})
		},
	}

	return cmd
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "operator"
}
