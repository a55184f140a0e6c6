package main

import (
	"fmt"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/service"
	"github.com/Veraticus/tally/internal/storage"
	"github.com/spf13/cobra"
)

func packagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "packages",
		Aliases: []string{"pkg"},
		Short:   "List, inspect and archive packages",
	}

	cmd.AddCommand(packagesListCmd())
	cmd.AddCommand(packagesShowCmd())
	cmd.AddCommand(packagesArchiveCmd())

	return cmd
}

func packagesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List packages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			period, _ := cmd.Flags().GetString("period")
			counterparty, _ := cmd.Flags().GetString("counterparty")
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")
			archived, _ := cmd.Flags().GetBool("archived")
			asJSON, _ := cmd.Flags().GetBool("json")

			return withStorage(ctx, func(store *storage.SQLiteStorage) error {
				pkgs, err := store.ListPackages(ctx, service.PackageFilter{
					Period:          period,
					CounterpartyID:  counterparty,
					Status:          model.PackageStatus(status),
					Limit:           limit,
					IncludeArchived: archived,
				})
				if err != nil {
					return err
				}
				if asJSON {
					if pkgs == nil {
						pkgs = []model.PackageSummary{}
					}
					return writeJSON(cmd.OutOrStdout(), pkgs)
				}
				return cli.RenderPackages(cmd.OutOrStdout(), pkgs)
			})
		},
	}

	cmd.Flags().String("period", "", "filter by period")
	cmd.Flags().String("counterparty", "", "filter by counterparty")
	cmd.Flags().String("status", "", "filter by status (pending, complete, review, blocked)")
	cmd.Flags().Int("limit", 0, "maximum number of packages")
	cmd.Flags().Bool("archived", false, "include archived packages")
	cmd.Flags().Bool("json", false, "print JSON")

	return cmd
}

func packagesShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <package>",
		Short: "Show a package with its discrepancies and recent runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runs, _ := cmd.Flags().GetInt("runs")

			return withStorage(ctx, func(store *storage.SQLiteStorage) error {
				pkg, err := store.GetPackage(ctx, args[0])
				if err != nil {
					return err
				}
				discrepancies, err := store.GetDiscrepancies(ctx, pkg.ID)
				if err != nil {
					return err
				}
				history, err := store.GetRuns(ctx, pkg.ID, runs)
				if err != nil {
					return err
				}
				return cli.RenderPackageDetail(cmd.OutOrStdout(), pkg, discrepancies, history)
			})
		},
	}

	cmd.Flags().Int("runs", 5, "number of recent runs to show")

	return cmd
}

func packagesArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive <package>",
		Short: "Archive a package",
		Long: `Archive a package. Archived packages keep their history but are no longer
reconciled, accept no overrides, and drop out of the review queue.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			yes, _ := cmd.Flags().GetBool("yes")

			if !yes {
				ok, err := cli.NewLineReader(cmd.InOrStdin()).Confirm(ctx, cmd.OutOrStdout(), fmt.Sprintf("Archive %s?", args[0]))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Nothing archived."))
					return nil
				}
			}

			return withStorage(ctx, func(store *storage.SQLiteStorage) error {
				if err := store.ArchivePackage(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Archived "+args[0]))
				return nil
			})
		},
	}

	cmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")

	return cmd
}
