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
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/forecast/services/forecast/handlers"
	"github.com/AleutianAI/forecast/services/forecast/routes"
	"github.com/AleutianAI/forecast/services/forecast/simulation"
	"github.com/AleutianAI/forecast/services/forecast/telemetry"
)

const shutdownTimeout = 10 * time.Second

// runServe implements `forecast serve`.
func runServe(cmd *cobra.Command, _ []string) error {
	cfg := app.cfg
	logger := app.logger.Slog()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := telemetry.NewMetrics(reg)
	if err != nil {
		return err
	}

	svcOpts := []simulation.Option{
		simulation.WithLogger(logger),
		simulation.WithMetrics(metrics),
	}
	var runs handlers.RunReader
	if cfg.History.Enabled {
		history, err := openHistory(cfg, logger)
		if err != nil {
			return err
		}
		defer history.Close()
		svcOpts = append(svcOpts, simulation.WithHistory(history))
		runs = history
	}

	limits := handlers.Limits{
		MaxExperiments: cfg.Server.MaxExperiments,
		MaxRecords:     cfg.Server.MaxRecords,
	}
	router := routes.NewRouter(routes.Options{
		Forecaster:  simulation.NewService(svcOpts...),
		Runs:        runs,
		Gatherer:    reg,
		MetricsPath: cfg.Server.MetricsPath,
		Limits:      limits,
		Logger:      logger,
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		logger.Info("forecast server listening", "addr", srv.Addr, "history", cfg.History.Enabled)
		fmt.Fprintf(cmd.ErrOrStderr(), "Listening on %s\n", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve %s: %w", srv.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down forecast server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
