package main

import (
	"fmt"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/storage"
	"github.com/spf13/cobra"
)

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show the review queue",
		Long: `Show the items the latest reconciliation runs left for review, grouped by
reason with the most exposed groups first, followed by the most recent items.

Run 'tally reconcile' first; the queue reflects the last published run of each
active package.`,
		RunE: runQueue,
	}

	addScopeFlags(cmd)
	cmd.Flags().Int("recent", 0, "number of recent items to list (default from policy.recent_items)")
	cmd.Flags().String("format", "table", "output format (table, json)")

	return cmd
}

func runQueue(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	scope, err := scopeFromFlags(cmd)
	if err != nil {
		return err
	}
	recent, _ := cmd.Flags().GetInt("recent")
	format, _ := cmd.Flags().GetString("format")
	if format != "table" && format != "json" {
		return fmt.Errorf("unknown format %q (want table or json)", format)
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}

	return withStorage(ctx, func(store *storage.SQLiteStorage) error {
		q, err := eng.StoredQueueRecent(ctx, store, scope, recent)
		if err != nil {
			return err
		}
		if format == "json" {
			return writeJSON(cmd.OutOrStdout(), q)
		}
		return cli.RenderQueue(cmd.OutOrStdout(), q)
	})
}
