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
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Persistent flags.
	configPath string
	verbosity  int
	logDir     string
	jsonLogs   bool
	traceFlag  bool

	// run flags.
	lowColumn       string
	highColumn      string
	groupColumn     string
	sheetName       string
	filterExprs     []string
	expectedKeys    []string
	experimentCount int
	strategyKind    string
	triangularMode  float64
	workerCount     int
	seedValue       uint64
	outputFormat    string
	noProgress      bool
	watchInput      bool
	saveRun         bool

	// other command flags.
	historyLimit int
	forceInit    bool

	rootCmd = &cobra.Command{
		Use:   "forecast",
		Short: "Monte Carlo effort forecasting from low/high estimates",
		Long: `forecast reads line-item estimates (a low and a high bound per item)
from a spreadsheet, simulates the total effort many times, and reports
80/90/95% confidence intervals, optionally per group.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupApp,
	}

	runCmd = &cobra.Command{
		Use:   "run FILE",
		Short: "Forecast the total effort of the estimates in FILE (.xlsx or .csv)",
		Args:  cobra.ExactArgs(1),
		RunE:  runForecast, // Defined in cmd_run.go
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the forecast HTTP API with metrics and tracing",
		Args:  cobra.NoArgs,
		RunE:  runServe, // Defined in cmd_serve.go
	}

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Inspect saved forecast runs",
	}
	historyListCmd = &cobra.Command{
		Use:   "list",
		Short: "List saved runs, newest first",
		Args:  cobra.NoArgs,
		RunE:  runHistoryList, // Defined in cmd_history.go
	}
	historyShowCmd = &cobra.Command{
		Use:   "show ID",
		Short: "Show one saved run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShow, // Defined in cmd_history.go
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage the forecast configuration file",
	}
	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE:  runConfigInit, // Defined in cmd_config.go
	}
	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow, // Defined in cmd_config.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the forecast version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("forecast %s\n", version)
		},
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default ~/.forecast/forecast.yaml)")
	pf.CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeatable)")
	pf.StringVar(&logDir, "log-dir", "", "also write JSON logs to this directory")
	pf.BoolVar(&jsonLogs, "json-logs", false, "log to stderr as JSON")
	pf.BoolVar(&traceFlag, "trace", false, "print OpenTelemetry spans to stderr")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	addRunFlags(runCmd.Flags())

	historyListCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum runs to list (0: all)")
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")

	historyCmd.AddCommand(historyListCmd, historyShowCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(runCmd, serveCmd, historyCmd, configCmd, versionCmd)
}

// addRunFlags registers the run flags, resetting their variables to the
// flag defaults.
func addRunFlags(rf *pflag.FlagSet) {
	rf.StringVar(&lowColumn, "low-bound-column", "", "low estimate column (default from config: Low)")
	rf.StringVar(&highColumn, "high-bound-column", "", "high estimate column (default from config: High)")
	rf.StringVar(&groupColumn, "group-column", "", "forecast each distinct value of this column separately")
	rf.StringVar(&sheetName, "sheet", "", "workbook sheet (default: first sheet)")
	rf.StringArrayVar(&filterExprs, "filter", nil, "keep only rows where Column=Value (repeatable)")
	rf.StringSliceVar(&expectedKeys, "expect-group", nil, "group keys that must appear in the report")
	rf.IntVar(&experimentCount, "experiment-count", 0, "number of simulated experiments (default from config: 1000)")
	rf.StringVar(&strategyKind, "strategy", "", "sampling strategy: triangular or normal")
	rf.Float64Var(&triangularMode, "mode", 0, "triangular peak position in (0, 1) (default from config: 0.6)")
	rf.IntVar(&workerCount, "workers", 0, "experiment workers (default: number of CPUs)")
	rf.Uint64Var(&seedValue, "seed", 0, "random seed for reproducible runs (0: random)")
	rf.StringVarP(&outputFormat, "output", "o", "text", "output format: text, csv or json")
	rf.BoolVar(&noProgress, "no-progress", false, "never show the progress bar")
	rf.BoolVar(&watchInput, "watch", false, "re-run whenever FILE changes")
	rf.BoolVar(&saveRun, "save", false, "save the run to history even if history is disabled in config")
}
