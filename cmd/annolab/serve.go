// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AnnoLab Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/annolab/annolab/internal/httpapi"
	"github.com/annolab/annolab/internal/logging"
	"github.com/annolab/annolab/internal/observability"
	"github.com/annolab/annolab/internal/store"
	"github.com/annolab/annolab/pkg/errutil"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication HTTP service",
		Long: `Start the HTTP service exposing login, logout, password change, and
sign-in history endpoints, plus a separate observability listener for
Prometheus metrics and health probes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, autoMigrate)
		},
	}

	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "run pending database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, autoMigrate bool) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logging.SetDefault("annolab", version, cfg.LogFormat)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if autoMigrate {
		migrator, err := store.NewMigrator(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		if err := migrator.Up(); err != nil {
			_ = migrator.Close() //nolint:errcheck // migration failure takes precedence
			return err
		}
		if err := migrator.Close(); err != nil {
			logger.Warn("could not close migrator", "error", err)
		}
		logger.Info("database migrations applied")
	}

	service, pool, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.Bootstrap.AdminPassword != "" {
		if _, err := service.EnsureAdmin(ctx, cfg.Bootstrap.AdminUsername, cfg.Bootstrap.AdminPassword); err != nil {
			errutil.LogError(logger, "bootstrap admin failed", err)
			return err
		}
	}

	// Observability listener: readiness follows database reachability.
	obs := observability.NewServer(cfg.MetricsAddr, func() bool {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return pool.Ping(pingCtx) == nil
	})
	obsErrCh, err := obs.Start()
	if err != nil {
		return err
	}

	apiServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpapi.NewRouter(service, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	apiErrCh := make(chan error, 1)
	go func() {
		logger.Info("api server started", "addr", cfg.ListenAddr)
		if serveErr := apiServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			apiErrCh <- serveErr
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-apiErrCh:
		errutil.LogError(logger, "api server failed", err)
		return oops.Code("SERVER_FAILED").Wrap(err)
	case err := <-obsErrCh:
		errutil.LogError(logger, "observability server failed", err)
		return oops.Code("SERVER_FAILED").Wrap(err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		errutil.LogError(logger, "api server shutdown failed", err)
	}
	if err := obs.Stop(shutdownCtx); err != nil {
		errutil.LogError(logger, "observability server shutdown failed", err)
	}

	logger.Info("shutdown complete")
	return nil
}
