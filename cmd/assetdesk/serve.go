// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/assetdesk/assetdesk/internal/api"
	"github.com/assetdesk/assetdesk/internal/config"
	"github.com/assetdesk/assetdesk/internal/observability"
	"github.com/assetdesk/assetdesk/pkg/errutil"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// Listen creates the API listener.
	// Default: net.Listen
	Listen func(network, address string) (net.Listener, error)

	// Store holds the store backend constructors.
	Store *StoreDeps

	// Ready is called with the API address once both servers are serving.
	Ready func(apiAddr string)
}

// newServeCmd creates the serve subcommand.
func newServeCmd(opts *rootOptions, deps *ServeDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the access API",
		Long: `Serve the access API for the dashboard, together with the metrics and
health endpoints. Shuts down gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, opts, deps)
		},
	}

	defaults := config.Default()
	cmd.Flags().String("server.addr", defaults.Server.Addr, "API listen address")
	cmd.Flags().Int("server.rate_limit", defaults.Server.RateLimit, "requests per client each minute (0 = unlimited)")
	cmd.Flags().String("metrics.addr", defaults.Metrics.Addr, "metrics/health listen address (empty = disabled)")
	cmd.Flags().String("audit.mode", defaults.Audit.Mode, "audit mode (off or denials)")
	cmd.Flags().String("audit.sink", defaults.Audit.Sink, "audit sink (slog or jsonl)")
	cmd.Flags().String("audit.path", defaults.Audit.Path, "audit file for the jsonl sink")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, opts *rootOptions, deps *ServeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.Listen == nil {
		deps.Listen = net.Listen
	}

	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := setupLogging(cmd, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger, deps.Store)
	if err != nil {
		return oops.In("cli").Code("STORE_OPEN_FAILED").With("backend", cfg.Store.Backend).Wrap(err)
	}
	defer st.Close()

	rec, err := openRecorder(cfg, logger)
	if err != nil {
		return err
	}
	if rec != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := rec.Close(shutdownCtx); err != nil {
				errutil.LogError(shutdownCtx, logger, "audit recorder did not drain", err)
			}
		}()
	}

	evaluator := newEvaluator(st, rec, logger)
	apiOpts := []api.Option{
		api.WithLogger(logger),
		api.WithRateLimit(cfg.Server.RateLimit),
	}

	var ready atomic.Bool
	var obsServer *observability.Server
	var obsErrCh <-chan error
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, ready.Load)
		obsErrCh, err = obsServer.Start()
		if err != nil {
			return oops.In("cli").Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		apiOpts = append(apiOpts, api.WithMetrics(obsServer.Metrics()))
	}

	listener, err := deps.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		stopObservability(obsServer, cfg, logger)
		return oops.In("cli").Code("LISTEN_FAILED").With("addr", cfg.Server.Addr).Wrap(err)
	}

	srv := &http.Server{
		Handler:           api.NewRouter(evaluator, apiOpts...),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	ready.Store(true)
	logger.Info("access API listening",
		"addr", listener.Addr().String(),
		"store_backend", cfg.Store.Backend,
		"audit_mode", cfg.Audit.Mode)
	if deps.Ready != nil {
		deps.Ready(listener.Addr().String())
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		runErr = oops.In("cli").Code("SERVE_FAILED").Wrap(err)
	case err := <-obsErrCh:
		if err != nil {
			runErr = oops.In("cli").Code("OBSERVABILITY_FAILED").Wrap(err)
		}
	}
	ready.Store(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping API server", "error", err)
	}
	stopObservability(obsServer, cfg, logger)

	logger.Info("shutdown complete")
	return runErr
}

func stopObservability(s *observability.Server, cfg *config.Config, logger *slog.Logger) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}
