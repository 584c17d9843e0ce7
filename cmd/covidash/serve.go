package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/covidash"
	"github.com/aretw0/covidash/internal/cli"
	httpAdapter "github.com/aretw0/covidash/pkg/adapters/http"
	"github.com/aretw0/covidash/pkg/observability"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Serves dashboard sessions over a JSON API with Server-Sent Events, plus
Prometheus metrics on /metrics. Sessions are persisted to redis when
configured, to files otherwise.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		logger, err := loadLogger(cmd, cfg)
		if err != nil {
			return err
		}

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		metrics := observability.NewMetrics(nil)
		stack, err := cli.Build(sigCtx, cfg, logger, covidash.WithMetrics(metrics))
		if err != nil {
			return err
		}
		defer func() {
			if err := stack.Close(); err != nil {
				logger.Warn("Shutdown incomplete", "err", err)
			}
		}()

		srv, err := httpAdapter.NewServer(stack.Engine,
			httpAdapter.WithMetrics(metrics.Handler()),
			httpAdapter.WithCORS(cfg.Server.CORS),
			httpAdapter.WithLogger(logger),
			httpAdapter.WithVersion(covidash.Version),
		)
		if err != nil {
			return err
		}

		if refreshed, err := stack.Engine.Watch(sigCtx); err == nil {
			go srv.Relay(refreshed)
		} else {
			logger.Info("Data source not watched", "err", err)
		}

		httpServer := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting covidash server", "addr", httpServer.Addr, "series", cfg.Data.Series)
			serverErrors <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)
		case <-sigCtx.Done():
			logger.Info("Start shutdown", "signal", sigCtx.Signal())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("Graceful shutdown did not complete", "err", err)
				_ = httpServer.Close()
			}
			logger.Info("covidash server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (overrides server.addr)")
}
