// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/forecast/services/forecast/datatypes"
	"github.com/AleutianAI/forecast/services/forecast/experiment"
	"github.com/AleutianAI/forecast/services/forecast/grouped"
	"github.com/AleutianAI/forecast/services/forecast/sampling"
	"github.com/AleutianAI/forecast/services/forecast/stats"
	"github.com/AleutianAI/forecast/services/forecast/store"
	"github.com/AleutianAI/forecast/services/forecast/telemetry"
)

var requestValidate = validator.New()

// -----------------------------------------------------------------------------
// Request / Result
// -----------------------------------------------------------------------------

// Request describes one forecast run.
type Request struct {
	// Records are the line items. Group keys are only used by ForecastGrouped.
	Records datatypes.RecordSet

	// Strategy selects the sampling strategy.
	Strategy sampling.Config

	// Experiments is the number of simulated outcomes (per group).
	Experiments int `validate:"gt=0"`

	// Workers is the experiment worker count. Zero means GOMAXPROCS.
	Workers int `validate:"gte=0"`

	// Seed fixes the generators. Zero means random.
	Seed uint64

	// Source names the input (file path, "http") for history.
	Source string

	// ExpectedKeys lists group keys that must appear in a grouped report.
	ExpectedKeys []string

	// Progress receives experiment progress for single runs.
	Progress experiment.ProgressFunc
}

// Validate checks the request and builds its strategy.
//
// # Outputs
//
//   - sampling.Strategy: The configured strategy.
//   - error: wraps ErrInvalidConfiguration, or a record validation error.
func (r *Request) Validate() (sampling.Strategy, error) {
	if err := requestValidate.Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return nil, fmt.Errorf("%w: %s must be %s %s, got %v",
				datatypes.ErrInvalidConfiguration, fe.Field(), fe.Tag(), fe.Param(), fe.Value())
		}
		return nil, fmt.Errorf("%w: %v", datatypes.ErrInvalidConfiguration, err)
	}
	strategy, err := sampling.New(r.Strategy)
	if err != nil {
		return nil, err
	}
	if err := r.Records.Validate(); err != nil {
		return nil, err
	}
	return strategy, nil
}

// Result is the outcome of a single forecast run.
type Result struct {
	RunID       string         `json:"run_id"`
	Strategy    string         `json:"strategy"`
	Experiments int            `json:"experiments"`
	Records     int            `json:"records"`
	Degenerate  int            `json:"degenerate"`
	Summary     *stats.Summary `json:"summary"`
	Elapsed     time.Duration  `json:"elapsed_ns"`

	// Population is the raw outcome list. Not serialized.
	Population datatypes.Population `json:"-"`
}

// GroupedResult is the outcome of a grouped forecast run.
type GroupedResult struct {
	RunID       string          `json:"run_id"`
	Strategy    string          `json:"strategy"`
	Experiments int             `json:"experiments"`
	Records     int             `json:"records"`
	Report      *grouped.Report `json:"report"`
	Elapsed     time.Duration   `json:"elapsed_ns"`
}

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

// History persists finished runs. *store.Store implements it.
type History interface {
	Save(ctx context.Context, rec store.RunRecord) error
}

// Service runs forecasts.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	logger  *slog.Logger
	metrics *telemetry.Metrics
	history History
	tracer  trace.Tracer
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithHistory persists every successful run.
func WithHistory(h History) Option {
	return func(s *Service) { s.history = h }
}

// WithTracer overrides the tracer. Default: telemetry.Tracer().
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// NewService creates a Service.
func NewService(opts ...Option) *Service {
	s := &Service{
		logger: slog.Default(),
		tracer: telemetry.Tracer(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Forecast runs a single, ungrouped simulation.
//
// # Description
//
// Group keys on the records are ignored. The request is validated before
// any sampling: a non-positive experiment count, an unknown strategy or a
// mode outside (0, 1) fail with ErrInvalidConfiguration.
//
// # Outputs
//
//   - *Result: Summary with the 80/90/95% intervals.
//   - error: ErrInvalidConfiguration, a record error, ErrInsufficientData
//     (fewer than two experiments), or ctx.Err().
func (s *Service) Forecast(ctx context.Context, req Request) (*Result, error) {
	strategy, err := req.Validate()
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID, "strategy", strategy.Name())
	ctx, span := s.tracer.Start(ctx, "forecast.Run", trace.WithAttributes(
		attribute.String("forecast.run_id", runID),
		attribute.String("forecast.strategy", strategy.Name()),
		attribute.Int("forecast.experiments", req.Experiments),
		attribute.Int("forecast.records", len(req.Records)),
	))
	defer span.End()

	logger.Info("forecast started", "experiments", req.Experiments, "records", len(req.Records))
	start := s.now()

	opts := []experiment.Option{
		experiment.WithWorkers(req.Workers),
		experiment.WithSeed(req.Seed),
		experiment.WithLogger(logger),
	}
	if req.Progress != nil {
		opts = append(opts, experiment.WithProgress(req.Progress))
	}

	pop, err := experiment.Run(ctx, req.Records, strategy, req.Experiments, opts...)
	var summary *stats.Summary
	if err == nil {
		summary, err = stats.Summarize(pop)
	}
	elapsed := s.now().Sub(start)
	s.metrics.ObserveRun(strategy.Name(), req.Experiments, elapsed, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("forecast failed", "error", err, "elapsed", elapsed)
		return nil, err
	}

	ci := summary.CI95()
	span.SetAttributes(
		attribute.Float64("forecast.ci95.lower", ci.Lower),
		attribute.Float64("forecast.ci95.upper", ci.Upper),
	)
	logger.Info("forecast finished", "ci95_lower", ci.Lower, "ci95_upper", ci.Upper,
		"mean", summary.Mean, "elapsed", elapsed)

	res := &Result{
		RunID:       runID,
		Strategy:    strategy.Name(),
		Experiments: req.Experiments,
		Records:     len(req.Records),
		Degenerate:  len(req.Records.Degenerate()),
		Summary:     summary,
		Elapsed:     elapsed,
		Population:  pop,
	}

	s.persist(ctx, logger, store.RunRecord{
		ID:          runID,
		CreatedAt:   start.UTC(),
		Source:      req.Source,
		Strategy:    strategy.Name(),
		Mode:        modeOf(strategy),
		Experiments: req.Experiments,
		Seed:        req.Seed,
		Records:     len(req.Records),
		Summary:     summary,
	})
	return res, nil
}

// ForecastGrouped runs one simulation per group key.
//
// # Description
//
// Configuration errors fail the whole call. Per-group failures (an empty
// expected group, insufficient data) are carried on the group results and
// counted as failed groups in metrics; the run itself still succeeds.
//
// # Outputs
//
//   - *GroupedResult: Report sorted by key.
//   - error: ErrInvalidConfiguration, a record error, or ctx.Err().
func (s *Service) ForecastGrouped(ctx context.Context, req Request) (*GroupedResult, error) {
	strategy, err := req.Validate()
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID, "strategy", strategy.Name())
	ctx, span := s.tracer.Start(ctx, "forecast.RunGrouped", trace.WithAttributes(
		attribute.String("forecast.run_id", runID),
		attribute.String("forecast.strategy", strategy.Name()),
		attribute.Int("forecast.experiments", req.Experiments),
		attribute.Int("forecast.records", len(req.Records)),
	))
	defer span.End()

	logger.Info("grouped forecast started", "experiments", req.Experiments, "records", len(req.Records))
	start := s.now()

	report, err := grouped.Run(ctx, req.Records, strategy, req.Experiments,
		grouped.WithExpectedKeys(req.ExpectedKeys...),
		grouped.WithSeed(req.Seed),
		grouped.WithLogger(logger),
		grouped.WithGroupHook(func(g grouped.GroupResult) {
			s.metrics.ObserveGroup(g.Err)
			span.AddEvent("group", trace.WithAttributes(
				attribute.String("forecast.group", g.Key),
				attribute.Bool("forecast.group.failed", g.Err != nil),
			))
		}),
	)
	elapsed := s.now().Sub(start)
	s.metrics.ObserveRun(strategy.Name(), req.Experiments, elapsed, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("grouped forecast failed", "error", err, "elapsed", elapsed)
		return nil, err
	}

	failed := report.Failed()
	span.SetAttributes(
		attribute.Int("forecast.groups", len(report.Groups)),
		attribute.Int("forecast.groups.failed", len(failed)),
	)
	for _, g := range failed {
		logger.Warn("group failed", "group", g.Key, "error", g.Err)
	}
	logger.Info("grouped forecast finished", "groups", len(report.Groups),
		"failed", len(failed), "elapsed", elapsed)

	s.persist(ctx, logger, store.RunRecord{
		ID:          runID,
		CreatedAt:   start.UTC(),
		Source:      req.Source,
		Strategy:    strategy.Name(),
		Mode:        modeOf(strategy),
		Experiments: req.Experiments,
		Seed:        req.Seed,
		Records:     len(req.Records),
		Groups:      groupRecords(report),
	})

	return &GroupedResult{
		RunID:       runID,
		Strategy:    strategy.Name(),
		Experiments: req.Experiments,
		Records:     len(req.Records),
		Report:      report,
		Elapsed:     elapsed,
	}, nil
}

// persist saves a run. History failures are logged, never returned: the
// forecast itself succeeded.
func (s *Service) persist(ctx context.Context, logger *slog.Logger, rec store.RunRecord) {
	if s.history == nil {
		return
	}
	if err := s.history.Save(ctx, rec); err != nil {
		logger.Warn("failed to save run history", "error", err)
	}
}

func modeOf(strategy sampling.Strategy) float64 {
	if t, ok := strategy.(sampling.Triangular); ok {
		return t.Mode
	}
	return 0
}

func groupRecords(report *grouped.Report) []store.GroupRecord {
	out := make([]store.GroupRecord, len(report.Groups))
	for i, g := range report.Groups {
		out[i] = store.GroupRecord{Key: g.Key, Records: g.Records, Summary: g.Summary}
		if g.Err != nil {
			out[i].Error = g.Err.Error()
		}
	}
	return out
}
