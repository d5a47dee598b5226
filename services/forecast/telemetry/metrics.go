// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// ErrNilRegisterer is returned when NewMetrics is given no registerer.
var ErrNilRegisterer = errors.New("prometheus registerer must not be nil")

// -----------------------------------------------------------------------------
// Metrics
// -----------------------------------------------------------------------------

// Metrics are the run counters and histograms exported on /metrics.
//
// Thread Safety: Safe for concurrent use.
type Metrics struct {
	runsTotal        *prometheus.CounterVec
	experimentsTotal *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	groupsTotal      *prometheus.CounterVec
}

// NewMetrics registers the forecast collectors on reg.
//
// # Description
//
// Tests pass a fresh prometheus.NewRegistry() so collectors never collide
// with the default registry.
//
// # Outputs
//
//   - *Metrics: Never nil on success.
//   - error: ErrNilRegisterer when reg is nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, ErrNilRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecast",
			Name:      "runs_total",
			Help:      "Forecast runs by strategy and outcome",
		}, []string{"strategy", "outcome"}),

		experimentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecast",
			Name:      "experiments_total",
			Help:      "Simulated experiments by strategy",
		}, []string{"strategy"}),

		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "forecast",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of forecast runs",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"strategy"}),

		groupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecast",
			Name:      "groups_total",
			Help:      "Groups simulated in grouped runs by outcome",
		}, []string{"outcome"}),
	}, nil
}

// ObserveRun records one finished run. A nil receiver is a no-op.
func (m *Metrics) ObserveRun(strategy string, experiments int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(strategy, outcome(err)).Inc()
	if err == nil && experiments > 0 {
		m.experimentsTotal.WithLabelValues(strategy).Add(float64(experiments))
	}
	m.runDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
}

// ObserveGroup records one group result. A nil receiver is a no-op.
func (m *Metrics) ObserveGroup(err error) {
	if m == nil {
		return
	}
	m.groupsTotal.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
