package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/config"
	"github.com/Veraticus/tally/internal/export"
	"github.com/Veraticus/tally/internal/service"
	"github.com/Veraticus/tally/internal/sheets"
	"github.com/Veraticus/tally/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the review queue",
	}

	cmd.AddCommand(exportSheetsCmd())
	cmd.AddCommand(exportXLSXCmd())

	return cmd
}

func exportSheetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Publish the review queue to Google Sheets",
		Long: `Publish the review queue to a Google Sheets spreadsheet. The spreadsheet is
created on first use unless sheets.spreadsheet_id is set.

Authenticate with either a service account (sheets.service_account_path) or an
OAuth2 refresh token obtained with 'tally export sheets auth'.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := config.LoadSheetsConfig(viper.GetViper())
			if err != nil {
				return fmt.Errorf("google sheets is not configured: %w", err)
			}
			writer, err := sheets.NewWriter(ctx, *cfg, slog.Default())
			if err != nil {
				return err
			}
			if err := exportQueue(cmd, writer); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Review queue published to Google Sheets"))
			return nil
		},
	}

	addScopeFlags(cmd)
	cmd.AddCommand(exportSheetsAuthCmd())

	return cmd
}

func exportSheetsAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Obtain a Google Sheets refresh token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			listen, _ := cmd.Flags().GetString("listen")
			tokenFile := config.ExpandPath(viper.GetString("sheets.token_file"))
			if tokenFile == "" {
				tokenFile = config.ExpandPath("~/.config/tally/sheets-token.json")
			}

			token, err := sheets.Authenticate(ctx, sheets.OAuth2Config{
				ClientID:     firstNonEmpty(viper.GetString("sheets.client_id"), os.Getenv("GOOGLE_SHEETS_CLIENT_ID")),
				ClientSecret: firstNonEmpty(viper.GetString("sheets.client_secret"), os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")),
				TokenFile:    tokenFile,
				ListenAddr:   listen,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.FormatSuccess("Google Sheets authentication complete"))
			if token.RefreshToken == "" {
				fmt.Fprintln(out, cli.FormatWarning("No refresh token was returned; revoke tally's access and try again."))
				return nil
			}
			fmt.Fprintln(out, cli.FormatInfo("Add this to your config as sheets.refresh_token:"))
			fmt.Fprintln(out, token.RefreshToken)
			return nil
		},
	}

	cmd.Flags().String("listen", "localhost:8085", "address for the OAuth2 callback")

	return cmd
}

func exportXLSXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "xlsx",
		Short: "Write the review queue to an Excel workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("out")

			f, err := os.Create(path) // #nosec G304
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", path, err)
			}
			if err := exportQueue(cmd, export.NewXLSXWriter(f)); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Review queue written to "+path))
			return nil
		},
	}

	addScopeFlags(cmd)
	cmd.Flags().StringP("out", "o", "review-queue.xlsx", "output file")

	return cmd
}

// exportQueue builds the stored queue for the command's scope flags and hands
// it to w.
func exportQueue(cmd *cobra.Command, w service.QueueWriter) error {
	ctx := cmd.Context()
	scope, err := scopeFromFlags(cmd)
	if err != nil {
		return err
	}
	eng, err := newEngine()
	if err != nil {
		return err
	}
	return withStorage(ctx, func(store *storage.SQLiteStorage) error {
		q, err := eng.StoredQueue(ctx, store, scope)
		if err != nil {
			return err
		}
		slog.Info("Exporting review queue", "scope", sheets.ScopeLabel(scope), "items", q.Total)
		return w.Write(ctx, q)
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
