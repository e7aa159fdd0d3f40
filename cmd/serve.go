package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atendai/atendai/internal/api"
	"github.com/atendai/atendai/internal/app"
	"github.com/atendai/atendai/internal/config"
	"github.com/atendai/atendai/internal/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe wires the application and blocks until SIGINT/SIGTERM.
func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{Level: cfg.LogLevel(), JSON: true})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("setting up application: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown cleanup", "error", err)
		}
	}()

	srv := api.NewServer(a.Ingestor, a.Orchestrator, a.Tasks, a.Pool, api.Config{
		RateLimit:  cfg.WebhookRateLimit,
		RateBurst:  cfg.WebhookRateBurst,
		TrustProxy: cfg.TrustProxy,
	}, logger.With("component", "api"))

	return srv.Run(ctx, cfg.ListenAddr)
}
