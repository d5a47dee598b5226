// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package grouped

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/forecast/services/forecast/datatypes"
	"github.com/AleutianAI/forecast/services/forecast/experiment"
	"github.com/AleutianAI/forecast/services/forecast/sampling"
	"github.com/AleutianAI/forecast/services/forecast/stats"
)

// -----------------------------------------------------------------------------
// Report
// -----------------------------------------------------------------------------

// GroupResult is the outcome of one group's simulation.
type GroupResult struct {
	// Key is the group key.
	Key string `json:"key"`

	// Records is the number of records in the partition.
	Records int `json:"records"`

	// Summary is nil when Err is set.
	Summary *stats.Summary `json:"summary,omitempty"`

	// Err is the group's failure, nil on success.
	Err error `json:"-"`
}

// CI95 returns the group's 95% interval. Failed groups return the zero
// interval at level 95.
func (g GroupResult) CI95() datatypes.ConfidenceInterval {
	if g.Summary == nil {
		return datatypes.ConfidenceInterval{Level: 95}
	}
	return g.Summary.CI95()
}

// Report holds every group result in ascending key order.
type Report struct {
	Groups []GroupResult `json:"groups"`
}

// Keys returns the report keys in order.
func (r *Report) Keys() []string {
	keys := make([]string, len(r.Groups))
	for i, g := range r.Groups {
		keys[i] = g.Key
	}
	return keys
}

// Failed returns the groups that carry an error.
func (r *Report) Failed() []GroupResult {
	var failed []GroupResult
	for _, g := range r.Groups {
		if g.Err != nil {
			failed = append(failed, g)
		}
	}
	return failed
}

// Get returns the result for a key.
func (r *Report) Get(key string) (GroupResult, bool) {
	for _, g := range r.Groups {
		if g.Key == key {
			return g, true
		}
	}
	return GroupResult{}, false
}

// -----------------------------------------------------------------------------
// Options
// -----------------------------------------------------------------------------

type options struct {
	expected    []string
	parallelism int
	seed        uint64
	workers     int
	logger      *slog.Logger
	onGroup     func(GroupResult)
}

// Option configures Run.
type Option func(*options)

// WithExpectedKeys lists keys that must appear in the report. Keys with no
// records are reported with ErrEmptyGroup.
func WithExpectedKeys(keys ...string) Option {
	return func(o *options) { o.expected = append(o.expected, keys...) }
}

// WithParallelism bounds how many groups run at once. Values < 1 mean
// GOMAXPROCS.
func WithParallelism(n int) Option {
	return func(o *options) { o.parallelism = n }
}

// WithSeed fixes the base seed. Each group derives its own stream from it.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// WithWorkers sets the per-group experiment worker count.
// Default: 1, since groups already run in parallel.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithGroupHook registers a callback invoked once per finished group. It may
// be called concurrently.
func WithGroupHook(fn func(GroupResult)) Option {
	return func(o *options) { o.onGroup = fn }
}

// -----------------------------------------------------------------------------
// Run
// -----------------------------------------------------------------------------

// Run partitions records by group key and simulates each partition.
//
// # Description
//
// Configuration and record validation happen once, before any group runs,
// and fail the whole call. Failures inside a group (insufficient data, an
// empty expected group) are recorded on that group's result instead.
//
// # Inputs
//
//   - ctx: Cancellation. A cancelled context fails the whole run.
//   - records: Records tagged with group keys.
//   - strategy: Sampling strategy shared by all groups (it is stateless).
//   - experimentCount: Experiments per group. Must be positive.
//   - opts: Expected keys, parallelism, seed, logger.
//
// # Outputs
//
//   - *Report: One result per distinct key (plus expected keys), sorted.
//   - error: wraps ErrInvalidConfiguration, a record validation error, or
//     ctx.Err().
//
// # Thread Safety
//
// Safe for concurrent use.
func Run(ctx context.Context, records datatypes.RecordSet, strategy sampling.Strategy,
	experimentCount int, opts ...Option) (*Report, error) {

	o := options{logger: slog.Default(), workers: 1}
	for _, opt := range opts {
		opt(&o)
	}

	if strategy == nil {
		return nil, fmt.Errorf("%w: sampling strategy is required", datatypes.ErrInvalidConfiguration)
	}
	if err := strategy.Validate(); err != nil {
		return nil, err
	}
	if experimentCount <= 0 {
		return nil, fmt.Errorf("%w: experiment count must be positive, got %d",
			datatypes.ErrInvalidConfiguration, experimentCount)
	}
	if err := records.Validate(); err != nil {
		return nil, err
	}

	parts := records.Partition()
	for _, key := range o.expected {
		if _, ok := parts[key]; !ok {
			parts[key] = nil
		}
	}

	keys := make([]string, 0, len(parts))
	for key := range parts {
		keys = append(keys, key)
	}
	SortKeys(keys)

	parallelism := o.parallelism
	if parallelism < 1 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	results := make([]GroupResult, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i, key := range keys {
		part := parts[key]
		g.Go(func() error {
			res, err := runGroup(gctx, key, part, strategy, experimentCount, uint64(i), &o)
			if err != nil {
				return err
			}
			results[i] = res
			if o.onGroup != nil {
				o.onGroup(res)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Report{Groups: results}, nil
}

// runGroup simulates one partition. Only cancellation is returned as an
// error; everything else is recorded on the result.
func runGroup(ctx context.Context, key string, part datatypes.RecordSet, strategy sampling.Strategy,
	experimentCount int, stream uint64, o *options) (GroupResult, error) {

	res := GroupResult{Key: key, Records: len(part)}
	logger := o.logger.With("group", key)

	if len(part) == 0 {
		res.Err = fmt.Errorf("group %q: %w", key, datatypes.ErrEmptyGroup)
		logger.Warn("expected group has no records; check the grouping key", "error", res.Err)
		return res, nil
	}

	pop, err := experiment.Run(ctx, part, strategy, experimentCount,
		experiment.WithSeed(o.seed),
		experiment.WithStream(stream),
		experiment.WithWorkers(o.workers),
		experiment.WithLogger(logger),
	)
	if err != nil {
		if ctx.Err() != nil {
			return res, err
		}
		res.Err = fmt.Errorf("group %q: %w", key, err)
		logger.Error("group simulation failed", "error", err)
		return res, nil
	}

	summary, err := stats.Summarize(pop)
	if err != nil {
		res.Err = fmt.Errorf("group %q: %w", key, err)
		logger.Error("group summary failed", "error", err)
		return res, nil
	}
	res.Summary = summary
	logger.Debug("group simulated", "records", len(part), "ci95", summary.CI95().String())
	return res, nil
}

// SortKeys sorts keys in place: numerically when every key parses as a
// float, lexically otherwise. Ties in numeric value fall back to lexical
// order so the result is total.
func SortKeys(keys []string) {
	nums := make(map[string]float64, len(keys))
	numeric := len(keys) > 0
	for _, k := range keys {
		v, err := strconv.ParseFloat(k, 64)
		if err != nil {
			numeric = false
			break
		}
		nums[k] = v
	}
	if !numeric {
		slices.Sort(keys)
		return
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(nums[a], nums[b]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
}
