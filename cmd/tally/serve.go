package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/tally/internal/api"
	"github.com/Veraticus/tally/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve packages, invoices, overrides, the review queue and reconciliation
over HTTP. When api.token is set every route except /healthz requires
"Authorization: Bearer <token>".`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().String("token", "", "bearer token required by the API")
	_ = viper.BindPFlag("api.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("api.token", cmd.Flags().Lookup("token"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	addr := viper.GetString("api.addr")
	token := viper.GetString("api.token")

	eng, err := newEngine()
	if err != nil {
		return err
	}

	return withStorage(ctx, func(store *storage.SQLiteStorage) error {
		srv := &http.Server{
			Addr:              addr,
			Handler:           api.New(store, eng, api.WithToken(token), api.WithLogger(slog.Default())).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errs := make(chan error, 1)
		go func() {
			slog.Info("API listening", "addr", addr, "auth", token != "")
			errs <- srv.ListenAndServe()
		}()

		select {
		case err := <-errs:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("api server failed: %w", err)
		case <-ctx.Done():
		}

		slog.Info("Shutting down API")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api shutdown: %w", err)
		}
		return nil
	})
}
