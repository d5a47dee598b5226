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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/forecast/services/forecast/datatypes"
	"github.com/AleutianAI/forecast/services/forecast/grouped"
	"github.com/AleutianAI/forecast/services/forecast/sampling"
	"github.com/AleutianAI/forecast/services/forecast/simulation"
	"github.com/AleutianAI/forecast/services/forecast/stats"
	"github.com/AleutianAI/forecast/services/forecast/store"
)

// DefaultExperiments is used when a request omits the experiment count.
const DefaultExperiments = 1000

// DefaultRunLimit caps GET /v1/runs when no limit is given.
const DefaultRunLimit = 20

// Request size defaults for forecast endpoints.
const (
	DefaultMaxExperiments = 1_000_000
	DefaultMaxRecords     = 100_000
)

// Limits bounds the work a single forecast request may ask for. Zero fields
// take the defaults.
type Limits struct {
	MaxExperiments int
	MaxRecords     int
}

func (l Limits) withDefaults() Limits {
	if l.MaxExperiments <= 0 {
		l.MaxExperiments = DefaultMaxExperiments
	}
	if l.MaxRecords <= 0 {
		l.MaxRecords = DefaultMaxRecords
	}
	return l
}

// Forecaster runs forecasts. *simulation.Service implements it.
type Forecaster interface {
	Forecast(ctx context.Context, req simulation.Request) (*simulation.Result, error)
	ForecastGrouped(ctx context.Context, req simulation.Request) (*simulation.GroupedResult, error)
}

// RunReader reads run history. *store.Store implements it.
type RunReader interface {
	Get(ctx context.Context, id string) (*store.RunRecord, error)
	List(ctx context.Context, limit int) ([]store.RunRecord, error)
}

// -----------------------------------------------------------------------------
// Payloads
// -----------------------------------------------------------------------------

// RecordPayload is one line item in a request body.
type RecordPayload struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Group string  `json:"group,omitempty"`
}

// ForecastRequest is the body of POST /v1/forecast and /v1/forecast/grouped.
type ForecastRequest struct {
	Records      []RecordPayload `json:"records" binding:"required"`
	Strategy     string          `json:"strategy" binding:"omitempty,oneof=triangular normal"`
	Mode         float64         `json:"mode"`
	Experiments  int             `json:"experiments" binding:"gte=0"`
	Seed         uint64          `json:"seed"`
	ExpectedKeys []string        `json:"expected_keys,omitempty"`
}

// checkLimits rejects requests larger than l.
func (r ForecastRequest) checkLimits(l Limits) error {
	if r.Experiments > l.MaxExperiments {
		return fmt.Errorf("%w: experiments %d exceeds the limit of %d",
			datatypes.ErrInvalidConfiguration, r.Experiments, l.MaxExperiments)
	}
	if len(r.Records) > l.MaxRecords {
		return fmt.Errorf("%w: %d records exceeds the limit of %d",
			datatypes.ErrInvalidConfiguration, len(r.Records), l.MaxRecords)
	}
	return nil
}

func (r ForecastRequest) toSimulation() simulation.Request {
	records := make(datatypes.RecordSet, len(r.Records))
	for i, p := range r.Records {
		records[i] = datatypes.Record{
			Bounds: datatypes.BoundPair{Lower: p.Lower, Upper: p.Upper},
			Group:  p.Group,
			Row:    i + 1,
		}
	}
	experiments := r.Experiments
	if experiments == 0 {
		experiments = DefaultExperiments
	}
	return simulation.Request{
		Records:      records,
		Strategy:     sampling.Config{Kind: r.Strategy, Mode: r.Mode},
		Experiments:  experiments,
		Seed:         r.Seed,
		Source:       "http",
		ExpectedKeys: r.ExpectedKeys,
	}
}

// GroupPayload is one group in a grouped response.
type GroupPayload struct {
	Key     string         `json:"key"`
	Records int            `json:"records"`
	Summary *stats.Summary `json:"summary,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// GroupedResponse is the body returned by POST /v1/forecast/grouped.
type GroupedResponse struct {
	RunID       string         `json:"run_id"`
	Strategy    string         `json:"strategy"`
	Experiments int            `json:"experiments"`
	Records     int            `json:"records"`
	Groups      []GroupPayload `json:"groups"`
}

// NewGroupedResponse flattens a grouped result for JSON output.
func NewGroupedResponse(res *simulation.GroupedResult) GroupedResponse {
	out := GroupedResponse{
		RunID:       res.RunID,
		Strategy:    res.Strategy,
		Experiments: res.Experiments,
		Records:     res.Records,
		Groups:      make([]GroupPayload, len(res.Report.Groups)),
	}
	for i, g := range res.Report.Groups {
		out.Groups[i] = groupPayload(g)
	}
	return out
}

func groupPayload(g grouped.GroupResult) GroupPayload {
	p := GroupPayload{Key: g.Key, Records: g.Records, Summary: g.Summary}
	if g.Err != nil {
		p.Error = g.Err.Error()
	}
	return p
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// bindForecast decodes and bounds a forecast request. It writes the 400
// response itself and reports whether the handler should continue.
func bindForecast(c *gin.Context, limits Limits, logger *slog.Logger) (ForecastRequest, bool) {
	var req ForecastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid forecast request", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return req, false
	}
	if err := req.checkLimits(limits); err != nil {
		logger.Warn("forecast request too large", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return req, false
	}
	return req, true
}

// HandleForecast serves POST /v1/forecast.
func HandleForecast(svc Forecaster, limits Limits, logger *slog.Logger) gin.HandlerFunc {
	limits = limits.withDefaults()
	logger = loggerOrDefault(logger)
	return func(c *gin.Context) {
		req, ok := bindForecast(c, limits, logger)
		if !ok {
			return
		}

		res, err := svc.Forecast(c.Request.Context(), req.toSimulation())
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// HandleForecastGrouped serves POST /v1/forecast/grouped. Failed groups are
// returned with an error field, not as a failed request.
func HandleForecastGrouped(svc Forecaster, limits Limits, logger *slog.Logger) gin.HandlerFunc {
	limits = limits.withDefaults()
	logger = loggerOrDefault(logger)
	return func(c *gin.Context) {
		req, ok := bindForecast(c, limits, logger)
		if !ok {
			return
		}

		res, err := svc.ForecastGrouped(c.Request.Context(), req.toSimulation())
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, NewGroupedResponse(res))
	}
}

// ListRuns serves GET /v1/runs?limit=N.
func ListRuns(runs RunReader, logger *slog.Logger) gin.HandlerFunc {
	logger = loggerOrDefault(logger)
	return func(c *gin.Context) {
		if runs == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run history is disabled"})
			return
		}
		limit := DefaultRunLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}

		list, err := runs.List(c.Request.Context(), limit)
		if err != nil {
			logger.Error("failed to list runs", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
			return
		}
		if list == nil {
			list = []store.RunRecord{}
		}
		c.JSON(http.StatusOK, gin.H{"runs": list})
	}
}

// GetRun serves GET /v1/runs/:id.
func GetRun(runs RunReader, logger *slog.Logger) gin.HandlerFunc {
	logger = loggerOrDefault(logger)
	return func(c *gin.Context) {
		if runs == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run history is disabled"})
			return
		}
		id := c.Param("id")
		rec, err := runs.Get(c.Request.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found", "id": id})
			return
		}
		if err != nil {
			logger.Error("failed to load run", "id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run"})
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

// StatusFor maps a forecast error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, datatypes.ErrInvalidConfiguration),
		errors.Is(err, datatypes.ErrInvertedBounds),
		errors.Is(err, datatypes.ErrNonFiniteBound):
		return http.StatusBadRequest
	case errors.Is(err, datatypes.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("forecast failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
