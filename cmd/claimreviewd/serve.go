package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KamdynS/claimreview/config"
	"github.com/KamdynS/claimreview/observability"
	"github.com/KamdynS/claimreview/server"
)

const shutdownTimeout = 15 * time.Second

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the review server",
	Long:  "Serve the websocket review channel, the chat endpoints and session inspection over HTTP.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (default :$PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		exitCode = ExitConfigError
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		exitCode = ExitConfigError
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := observability.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	stopTracing, err := withTracing(cfg, logger)
	if err != nil {
		exitCode = ExitConfigError
		return err
	}
	defer stopTracing()

	reviewer, err := newReviewer(cfg, logger)
	if err != nil {
		exitCode = ExitConfigError
		return err
	}
	store, closeStore, err := newStore(cfg)
	if err != nil {
		exitCode = ExitRuntimeError
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("close store", "error", err)
		}
	}()

	addr := flagAddr
	if addr == "" {
		addr = ":" + cfg.Port
	}
	srv, err := server.New(server.Config{
		Reviewer:         reviewer,
		Store:            store,
		Logger:           logger,
		Addr:             addr,
		Bounds:           bounds(cfg),
		ReviewsPerMinute: cfg.Review.PerMinute,
		AllowedOrigins:   cfg.AllowedOrigins,
	})
	if err != nil {
		exitCode = ExitRuntimeError
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr, "provider", cfg.Provider, "fallback", cfg.FallbackProvider, "redis", cfg.Redis.Enabled())
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			exitCode = ExitRuntimeError
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		exitCode = ExitRuntimeError
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
