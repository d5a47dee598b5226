// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/forecast/services/forecast/datatypes"
	"github.com/AleutianAI/forecast/services/forecast/simulation"
	"github.com/AleutianAI/forecast/services/forecast/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService() *simulation.Service {
	return simulation.NewService(simulation.WithLogger(discardLogger()))
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// =============================================================================
// HealthCheck Tests
// =============================================================================

func TestHealthCheck_ReturnsOK(t *testing.T) {
	router := gin.New()
	router.GET("/health", HealthCheck)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

// =============================================================================
// HandleForecast Tests
// =============================================================================

func TestHandleForecast_Success(t *testing.T) {
	router := gin.New()
	router.POST("/v1/forecast", HandleForecast(newService(), Limits{}, discardLogger()))

	w := postJSON(t, router, "/v1/forecast", ForecastRequest{
		Records:     []RecordPayload{{Lower: 10, Upper: 20}, {Lower: 1, Upper: 2}},
		Strategy:    "triangular",
		Experiments: 500,
		Seed:        7,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res simulation.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 500, res.Experiments)
	assert.Equal(t, 2, res.Records)
	require.NotNil(t, res.Summary)
	require.Len(t, res.Summary.Intervals, 3)
	ci := res.Summary.CI95()
	assert.GreaterOrEqual(t, ci.Lower, 11.0)
	assert.LessOrEqual(t, ci.Upper, 22.0)
}

func TestHandleForecast_DefaultExperiments(t *testing.T) {
	router := gin.New()
	router.POST("/v1/forecast", HandleForecast(newService(), Limits{}, discardLogger()))

	w := postJSON(t, router, "/v1/forecast", `{"records":[{"lower":1,"upper":3}]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var res simulation.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, DefaultExperiments, res.Experiments)
	assert.Equal(t, "triangular", res.Strategy)
}

func TestHandleForecast_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"malformed json", `{"records":`, http.StatusBadRequest},
		{"missing records", `{"experiments":10}`, http.StatusBadRequest},
		{"unknown strategy", `{"records":[],"strategy":"uniform"}`, http.StatusBadRequest},
		{"negative experiments", `{"records":[],"experiments":-1}`, http.StatusBadRequest},
		{"mode out of range", `{"records":[],"mode":1.5}`, http.StatusBadRequest},
		{"inverted bounds", `{"records":[{"lower":5,"upper":1}]}`, http.StatusBadRequest},
		{"single experiment", `{"records":[{"lower":1,"upper":2}],"experiments":1}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.POST("/v1/forecast", HandleForecast(newService(), Limits{}, discardLogger()))

			w := postJSON(t, router, "/v1/forecast", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHandleForecast_RequestLimits(t *testing.T) {
	limits := Limits{MaxExperiments: 5000, MaxRecords: 2}
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"experiments at limit", `{"records":[{"lower":1,"upper":2}],"experiments":5000}`, http.StatusOK},
		{"experiments over limit", `{"records":[{"lower":1,"upper":2}],"experiments":5001}`, http.StatusBadRequest},
		{"huge experiments", `{"records":[{"lower":1,"upper":2}],"experiments":4611686018427387904}`, http.StatusBadRequest},
		{"too many records", `{"records":[{"lower":1,"upper":2},{"lower":1,"upper":2},{"lower":1,"upper":2}]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.POST("/v1/forecast", HandleForecast(newService(), limits, discardLogger()))
			router.POST("/v1/forecast/grouped", HandleForecastGrouped(newService(), limits, discardLogger()))

			for _, path := range []string{"/v1/forecast", "/v1/forecast/grouped"} {
				w := postJSON(t, router, path, tt.body)
				assert.Equal(t, tt.status, w.Code, "%s: %s", path, w.Body.String())
				if tt.status == http.StatusBadRequest {
					assert.Contains(t, w.Body.String(), "limit")
				}
			}
		})
	}
}

func TestLimits_Defaults(t *testing.T) {
	l := Limits{}.withDefaults()
	assert.Equal(t, DefaultMaxExperiments, l.MaxExperiments)
	assert.Equal(t, DefaultMaxRecords, l.MaxRecords)

	l = Limits{MaxExperiments: 10}.withDefaults()
	assert.Equal(t, 10, l.MaxExperiments)
	assert.Equal(t, DefaultMaxRecords, l.MaxRecords)
}

func TestHandlers_LogThroughInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	router := gin.New()
	router.POST("/v1/forecast", HandleForecast(newService(), Limits{}, logger))
	router.GET("/v1/runs", ListRuns(failingRuns{}, logger))

	postJSON(t, router, "/v1/forecast", `{"records":`)
	assert.Contains(t, buf.String(), "invalid forecast request")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/runs", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, buf.String(), "failed to list runs")
}

// =============================================================================
// HandleForecastGrouped Tests
// =============================================================================

func TestHandleForecastGrouped(t *testing.T) {
	router := gin.New()
	router.POST("/v1/forecast/grouped", HandleForecastGrouped(newService(), Limits{}, discardLogger()))

	w := postJSON(t, router, "/v1/forecast/grouped", ForecastRequest{
		Records: []RecordPayload{
			{Lower: 1, Upper: 2, Group: "10"},
			{Lower: 1, Upper: 2, Group: "9"},
		},
		Experiments:  200,
		ExpectedKeys: []string{"11"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res GroupedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Groups, 3)
	assert.Equal(t, "9", res.Groups[0].Key)
	assert.Equal(t, "10", res.Groups[1].Key)
	assert.Equal(t, "11", res.Groups[2].Key)
	assert.NotNil(t, res.Groups[0].Summary)
	assert.Empty(t, res.Groups[0].Error)
	assert.Nil(t, res.Groups[2].Summary)
	assert.Contains(t, res.Groups[2].Error, datatypes.ErrEmptyGroup.Error())
}

func TestHandleForecastGrouped_InvalidBody(t *testing.T) {
	router := gin.New()
	router.POST("/v1/forecast/grouped", HandleForecastGrouped(newService(), Limits{}, discardLogger()))

	w := postJSON(t, router, "/v1/forecast/grouped", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// =============================================================================
// Runs Tests
// =============================================================================

// failingRuns is a RunReader whose reads always fail.
type failingRuns struct{}

func (failingRuns) Get(context.Context, string) (*store.RunRecord, error) {
	return nil, errors.New("disk unavailable")
}

func (failingRuns) List(context.Context, int) ([]store.RunRecord, error) {
	return nil, errors.New("disk unavailable")
}

func seededStore(t *testing.T, n int) *store.Store {
	t.Helper()
	s, err := store.Open(store.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		require.NoError(t, s.Save(context.Background(), store.RunRecord{
			ID:          fmt.Sprintf("run-%d", i),
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
			Strategy:    "normal",
			Experiments: 100,
		}))
	}
	return s
}

func TestListRuns(t *testing.T) {
	router := gin.New()
	router.GET("/v1/runs", ListRuns(seededStore(t, 3), discardLogger()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/runs?limit=2", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Runs []store.RunRecord `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Runs, 2)
	assert.Equal(t, "run-2", body.Runs[0].ID)
}

func TestListRuns_Empty(t *testing.T) {
	router := gin.New()
	router.GET("/v1/runs", ListRuns(seededStore(t, 0), discardLogger()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/runs", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"runs":[]}`, w.Body.String())
}

func TestListRuns_BadLimit(t *testing.T) {
	router := gin.New()
	router.GET("/v1/runs", ListRuns(seededStore(t, 1), discardLogger()))

	for _, q := range []string{"0", "-3", "abc"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/runs?limit="+q, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestGetRun(t *testing.T) {
	router := gin.New()
	router.GET("/v1/runs/:id", GetRun(seededStore(t, 2), discardLogger()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/runs/run-1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var rec store.RunRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "run-1", rec.ID)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/runs/unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRuns_HistoryDisabled(t *testing.T) {
	router := gin.New()
	router.GET("/v1/runs", ListRuns(nil, discardLogger()))
	router.GET("/v1/runs/:id", GetRun(nil, discardLogger()))

	for _, path := range []string{"/v1/runs", "/v1/runs/abc"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
}

// =============================================================================
// StatusFor Tests
// =============================================================================

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", datatypes.ErrInvalidConfiguration), http.StatusBadRequest},
		{fmt.Errorf("row 2: %w", datatypes.ErrInvertedBounds), http.StatusBadRequest},
		{datatypes.ErrNonFiniteBound, http.StatusBadRequest},
		{datatypes.ErrInsufficientData, http.StatusUnprocessableEntity},
		{context.Canceled, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}
