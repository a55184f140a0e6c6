package main

import (
	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/storage"
	"github.com/spf13/cobra"
)

func invoiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoice <package> <invoice>",
		Short: "Show an invoice with its line items and discrepancy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			asJSON, _ := cmd.Flags().GetBool("json")

			return withStorage(ctx, func(store *storage.SQLiteStorage) error {
				detail, err := store.GetInvoiceDetail(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), detail)
				}
				return cli.RenderInvoice(cmd.OutOrStdout(), detail)
			})
		},
	}

	cmd.Flags().Bool("json", false, "print JSON")

	return cmd
}
