// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/Curator/services/curator"
	"github.com/AleutianAI/Curator/services/curator/config"
	"github.com/AleutianAI/Curator/services/curator/storage/badger"
	"github.com/AleutianAI/Curator/services/curator/telemetry"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the curator HTTP API",
	Long: `Serve builds or restores the graph database and exposes the curator API
under /v1/curator, with Prometheus metrics on /metrics.

When --config is given the file is watched; log level and rebuild rate
changes apply without a restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (overrides server.port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	svc, release, err := newService(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := prepareService(ctx, svc, cfg); err != nil {
		return err
	}

	if configPath != "" {
		go watchConfig(ctx, svc)
	}

	port := cfg.Server.Port
	if cmd.Flags().Changed("port") {
		port = servePort
	}
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           curator.NewRouter(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("curator listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down curator")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// prepareService warms caches and installs a graph database, restoring the
// latest snapshot when allowed and building one otherwise.
func prepareService(ctx context.Context, svc *curator.Service, c *config.Config) error {
	if c.Cache.WarmOnStart {
		if err := svc.Warm(ctx); err != nil {
			slog.Warn("cache warm failed", slog.String("error", err.Error()))
		}
	}

	if c.Snapshot.Enabled && c.Snapshot.RestoreOnStart {
		meta, err := svc.RestoreLatest(ctx)
		switch {
		case err == nil:
			slog.Info("graph database restored",
				slog.String("epoch_id", meta.EpochID),
				slog.Int("entries", meta.Entries))
			return nil
		case errors.Is(err, badger.ErrSnapshotNotFound):
			slog.Info("no graph snapshot, building")
		default:
			slog.Warn("graph snapshot restore failed, building", slog.String("error", err.Error()))
		}
	}

	br, err := svc.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("building graph database: %w", err)
	}
	slog.Info("graph database built",
		slog.String("epoch_id", br.EpochID),
		slog.Int("objects", br.ObjectsSeen),
		slog.Duration("duration", br.Duration))
	return nil
}

func watchConfig(ctx context.Context, svc *curator.Service) {
	onChange := func(next *config.Config) {
		appLogger.SetLevel(next.Log.Level)
		svc.SetRebuildLimit(next.Server.RebuildPerMinute)
		slog.Info("configuration reloaded",
			slog.String("log_level", next.Log.Level.String()),
			slog.Int("rebuild_per_minute", next.Server.RebuildPerMinute))
	}
	if err := config.Watch(ctx, configPath, onChange, slog.Default()); err != nil {
		slog.Warn("config watch stopped", slog.String("error", err.Error()))
	}
}
