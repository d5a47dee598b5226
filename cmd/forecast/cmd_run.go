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
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/forecast/cmd/forecast/config"
	"github.com/AleutianAI/forecast/services/forecast/ingest"
	"github.com/AleutianAI/forecast/services/forecast/sampling"
	"github.com/AleutianAI/forecast/services/forecast/simulation"
	"github.com/AleutianAI/forecast/services/forecast/store"
)

// Output formats.
const (
	formatText = "text"
	formatCSV  = "csv"
	formatJSON = "json"
)

// runOptions is the fully resolved input of one `forecast run`.
type runOptions struct {
	path        string
	ingest      ingest.Options
	expected    []string
	experiments int
	strategy    sampling.Config
	workers     int
	seed        uint64
	format      string
	progress    bool
	save        bool
	watch       bool
}

func (o runOptions) grouped() bool {
	return o.ingest.GroupColumn != ""
}

// resolveRunOptions merges config values with the flags the user set.
func resolveRunOptions(cmd *cobra.Command, cfg config.ForecastConfig, path string) (runOptions, error) {
	flags := cmd.Flags()
	pick := func(name, flagVal, cfgVal string) string {
		if flags.Changed(name) {
			return flagVal
		}
		return cfgVal
	}

	opts := runOptions{
		path: path,
		ingest: ingest.Options{
			LowColumn:   pick("low-bound-column", lowColumn, cfg.Input.LowColumn),
			HighColumn:  pick("high-bound-column", highColumn, cfg.Input.HighColumn),
			GroupColumn: pick("group-column", groupColumn, cfg.Input.GroupColumn),
			Sheet:       pick("sheet", sheetName, cfg.Input.Sheet),
		},
		expected:    expectedKeys,
		experiments: cfg.Simulation.Experiments,
		strategy: sampling.Config{
			Kind: pick("strategy", strategyKind, cfg.Simulation.Strategy),
			Mode: cfg.Simulation.Mode,
		},
		workers:  cfg.Simulation.Workers,
		seed:     cfg.Simulation.Seed,
		format:   strings.ToLower(outputFormat),
		progress: !noProgress,
		save:     saveRun || cfg.History.Enabled,
		watch:    watchInput,
	}
	if flags.Changed("experiment-count") {
		opts.experiments = experimentCount
	}
	if flags.Changed("mode") {
		opts.strategy.Mode = triangularMode
	}
	if flags.Changed("workers") {
		opts.workers = workerCount
	}
	if flags.Changed("seed") {
		opts.seed = seedValue
	}

	exprs := cfg.Input.Filters
	if flags.Changed("filter") {
		exprs = filterExprs
	}
	filters, err := ingest.ParseFilters(exprs)
	if err != nil {
		return opts, err
	}
	opts.ingest.Filters = filters

	switch opts.format {
	case formatText, formatCSV, formatJSON:
	default:
		return opts, usageError(fmt.Errorf("unknown output format %q (want text, csv or json)", outputFormat))
	}
	if len(opts.expected) > 0 && !opts.grouped() {
		return opts, usageError(errors.New("--expect-group requires --group-column"))
	}
	return opts, nil
}

// runForecast implements `forecast run FILE`.
func runForecast(cmd *cobra.Command, args []string) error {
	opts, err := resolveRunOptions(cmd, app.cfg, args[0])
	if err != nil {
		return err
	}
	logger := app.logger.Slog()

	svcOpts := []simulation.Option{simulation.WithLogger(logger)}
	if opts.save {
		history, err := openHistory(app.cfg, logger)
		if err != nil {
			return err
		}
		defer history.Close()
		svcOpts = append(svcOpts, simulation.WithHistory(history))
	}
	svc := simulation.NewService(svcOpts...)

	r := &runner{
		svc:     svc,
		out:     cmd.OutOrStdout(),
		errOut:  cmd.ErrOrStderr(),
		logger:  logger,
		showBar: opts.progress && isTerminal(os.Stderr),
	}

	err = r.once(cmd.Context(), opts)
	if !opts.watch {
		return err
	}
	if err != nil {
		logger.Error("forecast failed; waiting for the next change", "error", err)
	}

	w, err := newInputWatcher(opts.path, 300*time.Millisecond, func() {
		if err := r.once(cmd.Context(), opts); err != nil {
			logger.Error("forecast failed; waiting for the next change", "error", err)
		}
	}, logger)
	if err != nil {
		return fmt.Errorf("watch %s: %w", opts.path, err)
	}
	defer w.Stop()
	fmt.Fprintf(r.errOut, "Watching %s for changes (Ctrl+C to stop) ...\n", opts.path)
	w.Start(cmd.Context())
	return nil
}

// openHistory opens the run history store from config.
func openHistory(cfg config.ForecastConfig, logger *slog.Logger) (*store.Store, error) {
	sc := store.DefaultConfig(config.ExpandHome(cfg.History.Dir))
	sc.Logger = logger
	s, err := store.Open(sc)
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}
	return s, nil
}

// runner executes forecasts for the run command.
type runner struct {
	svc     *simulation.Service
	out     io.Writer
	errOut  io.Writer
	logger  *slog.Logger
	showBar bool
}

// status returns the writer for progress lines: stdout for text output,
// stderr otherwise so machine output stays clean.
func (r *runner) status(format string) io.Writer {
	if format == formatText {
		return r.out
	}
	return r.errOut
}

// once reads the input and runs a single forecast.
func (r *runner) once(ctx context.Context, opts runOptions) error {
	status := r.status(opts.format)
	fmt.Fprintf(status, "Reading %s ...\n", opts.path)

	records, report, err := ingest.Load(opts.path, opts.ingest)
	if err != nil {
		return err
	}
	logIngestReport(r.logger, opts.path, report)

	req := simulation.Request{
		Records:      records,
		Strategy:     opts.strategy,
		Experiments:  opts.experiments,
		Workers:      opts.workers,
		Seed:         opts.seed,
		Source:       opts.path,
		ExpectedKeys: opts.expected,
	}

	if opts.grouped() {
		fmt.Fprintf(status, "Running %d experiments per %s ...\n", opts.experiments, opts.ingest.GroupColumn)
		res, err := r.svc.ForecastGrouped(ctx, req)
		if err != nil {
			return err
		}
		return writeGrouped(r.out, opts.format, opts.ingest.GroupColumn, res)
	}

	fmt.Fprintf(status, "Running %d experiments ...\n", opts.experiments)
	var bar *progressBar
	if r.showBar {
		bar = newProgressBar(r.errOut)
		req.Progress = bar.Update
	}
	res, err := r.svc.Forecast(ctx, req)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}
	return writeSingle(r.out, opts.format, res)
}

// logIngestReport logs row accounting and every dropped row.
func logIngestReport(logger *slog.Logger, path string, report *ingest.Report) {
	logger.Info("input loaded", "path", path, "rows", report.Total, "kept", report.Kept,
		"filtered", report.Filtered, "dropped", len(report.Dropped))
	for _, d := range report.Dropped {
		logger.Warn("row skipped", "row", d.Row, "reason", d.Reason, "detail", d.Detail)
	}
}
