// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/forecast/services/forecast/handlers"
)

// ServiceName is the otelgin server name.
const ServiceName = "forecast"

// Options wires the server's dependencies.
type Options struct {
	// Forecaster runs forecasts. Required.
	Forecaster handlers.Forecaster

	// Runs serves history endpoints. Nil answers them with 503.
	Runs handlers.RunReader

	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer

	// MetricsPath defaults to /metrics.
	MetricsPath string

	// Limits bounds forecast request sizes. Zero fields take the defaults.
	Limits handlers.Limits

	// Logger receives handler logs. Default: slog.Default().
	Logger *slog.Logger
}

// NewRouter builds a gin engine with recovery, tracing, and all routes.
func NewRouter(opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(ServiceName))
	SetupRoutes(router, opts)
	return router
}

// SetupRoutes registers the forecast API on router.
func SetupRoutes(router *gin.Engine, opts Options) {
	router.GET("/health", handlers.HealthCheck)

	if opts.Gatherer != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/v1")
	{
		v1.POST("/forecast", handlers.HandleForecast(opts.Forecaster, opts.Limits, opts.Logger))
		v1.POST("/forecast/grouped", handlers.HandleForecastGrouped(opts.Forecaster, opts.Limits, opts.Logger))

		runs := v1.Group("/runs")
		{
			runs.GET("", handlers.ListRuns(opts.Runs, opts.Logger))
			runs.GET("/:id", handlers.GetRun(opts.Runs, opts.Logger))
		}
	}
}
