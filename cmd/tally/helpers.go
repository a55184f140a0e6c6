package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/config"
	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/queue"
	"github.com/Veraticus/tally/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// initStorage opens the configured database and brings its schema up to
// date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := config.DatabasePath(viper.GetViper())

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Debug("Storage ready", "path", dbPath)
	return store, nil
}

// withStorage runs fn against an open store and closes it afterwards.
func withStorage(ctx context.Context, fn func(*storage.SQLiteStorage) error) error {
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Warn("Failed to close database", "error", closeErr)
		}
	}()
	return fn(store)
}

// newEngine builds an engine from the policy.* configuration keys.
func newEngine(opts ...engine.Option) (*engine.Engine, error) {
	policy, err := config.LoadPolicy(viper.GetViper())
	if err != nil {
		return nil, common.NewUserError("the reconciliation policy in your configuration is invalid", err)
	}
	return engine.New(policy, opts...)
}

// addScopeFlags registers the queue scope flags shared by queue, export and
// review.
func addScopeFlags(cmd *cobra.Command) {
	cmd.Flags().String("period", "", "only items from this period (e.g. 2024-03)")
	cmd.Flags().String("counterparty", "", "only items for this counterparty")
	cmd.Flags().String("role", "operator", "operator sees everything, controller only urgent items")
}

func scopeFromFlags(cmd *cobra.Command) (queue.Scope, error) {
	period, _ := cmd.Flags().GetString("period")
	counterparty, _ := cmd.Flags().GetString("counterparty")
	roleName, _ := cmd.Flags().GetString("role")

	role, err := queue.ParseRole(roleName)
	if err != nil {
		return queue.Scope{}, err
	}
	return queue.Scope{Period: period, CounterpartyID: counterparty, Role: role}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
