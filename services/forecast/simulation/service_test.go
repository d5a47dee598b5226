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
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AleutianAI/forecast/services/forecast/datatypes"
	"github.com/AleutianAI/forecast/services/forecast/sampling"
	"github.com/AleutianAI/forecast/services/forecast/store"
	"github.com/AleutianAI/forecast/services/forecast/telemetry"
)

type fakeHistory struct {
	mu   sync.Mutex
	runs []store.RunRecord
	err  error
}

func (f *fakeHistory) Save(_ context.Context, rec store.RunRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.runs = append(f.runs, rec)
	return nil
}

type harness struct {
	svc      *Service
	history  *fakeHistory
	spans    *tracetest.SpanRecorder
	registry *prometheus.Registry
	logs     *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics, err := telemetry.NewMetrics(reg)
	require.NoError(t, err)

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	logs := &bytes.Buffer{}
	history := &fakeHistory{}
	svc := NewService(
		WithLogger(slog.New(slog.NewTextHandler(logs, nil))),
		WithMetrics(metrics),
		WithHistory(history),
		WithTracer(provider.Tracer("test")),
	)
	return &harness{svc: svc, history: history, spans: recorder, registry: reg, logs: logs}
}

func pairs() datatypes.RecordSet {
	return datatypes.NewRecordSet(
		datatypes.BoundPair{Lower: 10, Upper: 20},
		datatypes.BoundPair{Lower: 5, Upper: 5},
	)
}

func TestForecast_Success(t *testing.T) {
	h := newHarness(t)

	res, err := h.svc.Forecast(context.Background(), Request{
		Records:     pairs(),
		Strategy:    sampling.Config{Kind: sampling.KindTriangular, Mode: 0.6},
		Experiments: 2000,
		Seed:        42,
		Source:      "estimates.csv",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, sampling.KindTriangular, res.Strategy)
	assert.Equal(t, 2, res.Records)
	assert.Equal(t, 1, res.Degenerate)
	assert.Len(t, res.Population, 2000)

	ci := res.Summary.CI95()
	assert.GreaterOrEqual(t, ci.Lower, 15.0)
	assert.LessOrEqual(t, ci.Upper, 25.0)

	require.Len(t, h.history.runs, 1)
	saved := h.history.runs[0]
	assert.Equal(t, res.RunID, saved.ID)
	assert.Equal(t, "estimates.csv", saved.Source)
	assert.Equal(t, 0.6, saved.Mode)
	assert.Equal(t, uint64(42), saved.Seed)

	spans := h.spans.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "forecast.Run", spans[0].Name())

	count, err := testutil.GatherAndCount(h.registry, "forecast_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Contains(t, h.logs.String(), "forecast finished")
	assert.Contains(t, h.logs.String(), "run_id="+res.RunID)
}

func TestForecast_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"zero experiments", Request{Records: pairs(), Experiments: 0}},
		{"negative experiments", Request{Records: pairs(), Experiments: -5}},
		{"negative workers", Request{Records: pairs(), Experiments: 10, Workers: -1}},
		{"unknown strategy", Request{Records: pairs(), Experiments: 10, Strategy: sampling.Config{Kind: "uniform"}}},
		{"mode too large", Request{Records: pairs(), Experiments: 10, Strategy: sampling.Config{Mode: 1}}},
		{"mode negative", Request{Records: pairs(), Experiments: 10, Strategy: sampling.Config{Mode: -0.2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.svc.Forecast(context.Background(), tt.req)
			assert.ErrorIs(t, err, datatypes.ErrInvalidConfiguration)
			assert.Empty(t, h.history.runs)
			assert.Empty(t, h.spans.Ended(), "no span before validation passes")
		})
	}
}

func TestForecast_InvertedRecord(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Forecast(context.Background(), Request{
		Records:     datatypes.NewRecordSet(datatypes.BoundPair{Lower: 9, Upper: 1}),
		Experiments: 10,
	})
	assert.ErrorIs(t, err, datatypes.ErrInvertedBounds)
}

func TestForecast_SingleExperimentIsInsufficient(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Forecast(context.Background(), Request{
		Records:     pairs(),
		Experiments: 1,
	})
	require.ErrorIs(t, err, datatypes.ErrInsufficientData)
	assert.Empty(t, h.history.runs)

	spans := h.spans.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "Error", spans[0].Status().Code.String())
	assert.Contains(t, h.logs.String(), "forecast failed")
}

func TestForecast_HistoryFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.history.err = errors.New("disk full")

	res, err := h.svc.Forecast(context.Background(), Request{Records: pairs(), Experiments: 100})
	require.NoError(t, err)
	assert.NotNil(t, res.Summary)
	assert.Contains(t, h.logs.String(), "failed to save run history")
}

func TestForecast_ProgressReported(t *testing.T) {
	h := newHarness(t)
	var mu sync.Mutex
	last := 0

	_, err := h.svc.Forecast(context.Background(), Request{
		Records:     pairs(),
		Experiments: 500,
		Workers:     2,
		Progress: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			if done > last {
				last = done
			}
			assert.Equal(t, 500, total)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 500, last)
}

func TestForecast_WithoutOptionalDependencies(t *testing.T) {
	svc := NewService()
	res, err := svc.Forecast(context.Background(), Request{
		Records:     pairs(),
		Strategy:    sampling.Config{Kind: sampling.KindNormal},
		Experiments: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, sampling.KindNormal, res.Strategy)
}

func TestForecastGrouped(t *testing.T) {
	h := newHarness(t)
	records := datatypes.RecordSet{
		{Bounds: datatypes.BoundPair{Lower: 1, Upper: 2}, Group: "A"},
		{Bounds: datatypes.BoundPair{Lower: 1, Upper: 2}, Group: "B"},
		{Bounds: datatypes.BoundPair{Lower: 3, Upper: 4}, Group: "A"},
	}

	res, err := h.svc.ForecastGrouped(context.Background(), Request{
		Records:      records,
		Experiments:  500,
		ExpectedKeys: []string{"C"},
		Source:       "http",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, res.Report.Keys())
	failed := res.Report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "C", failed[0].Key)
	assert.ErrorIs(t, failed[0].Err, datatypes.ErrEmptyGroup)

	require.Len(t, h.history.runs, 1)
	saved := h.history.runs[0]
	require.Len(t, saved.Groups, 3)
	assert.Equal(t, "C", saved.Groups[2].Key)
	assert.NotEmpty(t, saved.Groups[2].Error)
	assert.Nil(t, saved.Summary)

	groups, err := testutil.GatherAndCount(h.registry, "forecast_groups_total")
	require.NoError(t, err)
	assert.Equal(t, 2, groups, "one series per outcome")

	spans := h.spans.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "forecast.RunGrouped", spans[0].Name())
	assert.Len(t, spans[0].Events(), 3)
	assert.Contains(t, h.logs.String(), "group failed")
}

func TestForecastGrouped_InvalidConfiguration(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.ForecastGrouped(context.Background(), Request{Records: pairs()})
	assert.ErrorIs(t, err, datatypes.ErrInvalidConfiguration)
}

func TestForecastGrouped_Cancelled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records := datatypes.RecordSet{{Bounds: datatypes.BoundPair{Lower: 1, Upper: 2}, Group: "A"}}
	_, err := h.svc.ForecastGrouped(ctx, Request{Records: records, Experiments: 100})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.history.runs)
}
