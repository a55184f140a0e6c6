package main

import (
	"github.com/Veraticus/tally/internal/storage"
	"github.com/Veraticus/tally/internal/tui"
	"github.com/Veraticus/tally/internal/tui/themes"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Browse the review queue interactively",
		Long: `Open a terminal browser over the review queue. Select an item to see the
invoice behind it, press u to toggle the urgent-only view, and R to reconcile
the packages in scope again.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
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
				return tui.Run(ctx,
					tui.WithStorage(store),
					tui.WithEngine(eng),
					tui.WithScope(scope),
					tui.WithTheme(themes.ByName(viper.GetString("tui.theme"))),
				)
			})
		},
	}

	addScopeFlags(cmd)

	return cmd
}
