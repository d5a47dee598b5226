// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/forecast/services/forecast/datatypes"
)

// ForecastConfig is the on-disk configuration, ~/.forecast/forecast.yaml.
type ForecastConfig struct {
	Input      InputConfig      `yaml:"input"`
	Simulation SimulationConfig `yaml:"simulation"`
	History    HistoryConfig    `yaml:"history"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// InputConfig selects spreadsheet columns and rows.
type InputConfig struct {
	LowColumn   string   `yaml:"low_column" validate:"required"`
	HighColumn  string   `yaml:"high_column" validate:"required"`
	GroupColumn string   `yaml:"group_column,omitempty"`
	Sheet       string   `yaml:"sheet,omitempty"`
	Filters     []string `yaml:"filters,omitempty"`
}

// SimulationConfig holds the engine defaults.
type SimulationConfig struct {
	Experiments int     `yaml:"experiments" validate:"gt=0"`
	Strategy    string  `yaml:"strategy" validate:"oneof=triangular normal"`
	Mode        float64 `yaml:"mode" validate:"gt=0,lt=1"`
	Workers     int     `yaml:"workers" validate:"gte=0"` // 0 = GOMAXPROCS
	Seed        uint64  `yaml:"seed,omitempty"`           // 0 = random
}

// HistoryConfig controls run persistence.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir" validate:"required_if=Enabled true"`
}

// ServerConfig configures `forecast serve`.
type ServerConfig struct {
	Addr        string `yaml:"addr" validate:"required"`
	MetricsPath string `yaml:"metrics_path" validate:"startswith=/"`

	// Per-request caps for the forecast endpoints.
	MaxExperiments int `yaml:"max_experiments" validate:"gt=0"`
	MaxRecords     int `yaml:"max_records" validate:"gt=0"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Dir   string `yaml:"dir,omitempty"`
	JSON  bool   `yaml:"json"`
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty" validate:"omitempty,hostname_port"`
	StdoutTraces bool   `yaml:"stdout_traces"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() ForecastConfig {
	return ForecastConfig{
		Input: InputConfig{
			LowColumn:  "Low",
			HighColumn: "High",
		},
		Simulation: SimulationConfig{
			Experiments: 1000,
			Strategy:    "triangular",
			Mode:        0.6,
		},
		History: HistoryConfig{
			Enabled: false,
			Dir:     "~/.forecast/history",
		},
		Server: ServerConfig{
			Addr:           ":12310",
			MetricsPath:    "/metrics",
			MaxExperiments: 1_000_000,
			MaxRecords:     100_000,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

var configValidate = validator.New()

// Validate checks every section. Failures wrap
// datatypes.ErrInvalidConfiguration and name the offending yaml path.
func (c ForecastConfig) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", datatypes.ErrInvalidConfiguration, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg := fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s fails %q (%s)", fe.Namespace(), fe.Tag(), fe.Param())
		}
		msgs = append(msgs, fmt.Sprintf("%s, got %v", msg, fe.Value()))
	}
	return fmt.Errorf("%w: %s", datatypes.ErrInvalidConfiguration, strings.Join(msgs, "; "))
}
