package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/lattice"
	httpAdapter "github.com/aretw0/lattice/internal/adapters/http"
	"github.com/aretw0/lattice/internal/config"
	"github.com/aretw0/lattice/internal/presentation/tui"
	"github.com/aretw0/lattice/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the query API over HTTP:

  POST   /v1/query          run a query
  GET    /v1/results        list manual results still open
  DELETE /v1/results/{id}   release a manual result
  GET    /metrics           Prometheus metrics (when enabled)
  GET    /healthz           liveness

The config file, when given, is watched and reapplied on change.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		var (
			opts    []lattice.Option
			handler []httpAdapter.Option
		)
		if cfg.MetricsEnabled {
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			opts = append(opts, lattice.WithMetrics(observability.NewMetrics(reg)))
			handler = append(handler, httpAdapter.WithMetrics(reg))
		}

		client, cfg, logger, err := newClient(cmd, opts...)
		if err != nil {
			return err
		}
		handler = append(handler, httpAdapter.WithLogger(logger))

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.ListenAddr = addr
		}

		if path, _ := cmd.Flags().GetString("config"); path != "" {
			go func() {
				err := config.Watch(ctx, path, client.Reconfigure, logger)
				if err != nil {
					logger.Warn("config watch stopped", "err", err)
				}
			}()
		}

		srv := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           httpAdapter.NewHandler(client, handler...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		if tui.IsTerminal(os.Stderr) {
			tui.PrintBanner(os.Stderr)
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("lattice server listening", "address", srv.Addr, "engine", cfg.Address())
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
			logger.Info("shutdown signal received")
		}

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown did not complete", "err", err)
			_ = srv.Close()
		}
		if err := client.Close(shutdownCtx); err != nil {
			logger.Warn("client close failed", "err", err)
		}
		logger.Info("lattice server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides listen_addr)")
}
