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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/forecast/cmd/forecast/config"
	"github.com/AleutianAI/forecast/pkg/logging"
	"github.com/AleutianAI/forecast/services/forecast/telemetry"
)

// appState is built once per invocation by setupApp.
type appState struct {
	cfg            config.ForecastConfig
	cfgPath        string
	logger         *logging.Logger
	shutdownTracer telemetry.ShutdownFunc
}

var app appState

// resolveConfigPath returns --config or the default location.
func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

// newLogger builds the CLI logger from config and persistent flags.
func newLogger(cfg config.ForecastConfig, service string) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	dir := cfg.Logging.Dir
	if logDir != "" {
		dir = logDir
	}
	return logging.New(logging.Config{
		Level:   logging.LevelFromVerbosity(level, verbosity),
		LogDir:  dir,
		Service: service,
		JSON:    jsonLogs || cfg.Logging.JSON,
	}), nil
}

// setupApp loads the config, builds the logger, and installs a tracer.
func setupApp(cmd *cobra.Command, _ []string) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg, cmd.Name())
	if err != nil {
		return err
	}

	shutdown, err := telemetry.InitTracer(cmd.Context(), telemetry.TracerConfig{
		ServiceName:  "forecast",
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Stdout:       traceFlag || cfg.Telemetry.StdoutTraces,
		Writer:       os.Stderr,
	})
	if err != nil {
		_ = logger.Close()
		return fmt.Errorf("init tracing: %w", err)
	}

	app = appState{cfg: cfg, cfgPath: path, logger: logger, shutdownTracer: shutdown}
	logger.Debug("configuration loaded", "path", path)
	return nil
}

// teardownApp flushes spans and closes the logger. It runs after every
// command, including failed ones.
func teardownApp() error {
	if app.shutdownTracer != nil {
		app.shutdownTracer(context.Background())
	}
	if app.logger != nil {
		return app.logger.Close()
	}
	return nil
}
