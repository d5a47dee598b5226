// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/forecast/services/forecast/datatypes"
	"github.com/AleutianAI/forecast/services/forecast/sampling"
)

// checkEvery is how many experiments a worker runs between context checks
// and progress updates.
const checkEvery = 64

// ProgressFunc receives the number of completed experiments and the total.
// It may be called concurrently from several workers.
type ProgressFunc func(done, total int)

// -----------------------------------------------------------------------------
// Options
// -----------------------------------------------------------------------------

type options struct {
	workers  int
	seed     uint64
	stream   uint64
	progress ProgressFunc
	logger   *slog.Logger
}

// Option configures Run.
type Option func(*options)

// WithWorkers sets the worker count. Values < 1 mean GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithSeed fixes the base seed. Zero means a random seed.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// WithStream offsets the generator streams. Grouped runs use it to give
// each group independent randomness under one base seed.
func WithStream(stream uint64) Option {
	return func(o *options) { o.stream = stream }
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) { o.progress = fn }
}

// WithLogger sets the logger used for diagnostics.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// -----------------------------------------------------------------------------
// Run
// -----------------------------------------------------------------------------

// Run simulates experimentCount experiments over records.
//
// # Description
//
// Every outcome is the sum of strategy.Pick over all records. An empty
// record set yields all-zero outcomes. Degenerate records (lower == upper)
// contribute their point value and are reported once at Warn level.
//
// # Inputs
//
//   - ctx: Cancellation. Checked between experiments.
//   - records: Line items. Validated before any sampling.
//   - strategy: Sampling strategy. Must not be nil.
//   - experimentCount: Number of outcomes. Zero returns an empty population.
//   - opts: Workers, seed, progress callback, logger.
//
// # Outputs
//
//   - datatypes.Population: Exactly experimentCount outcomes.
//   - error: wraps ErrInvalidConfiguration (nil strategy, negative count),
//     ErrInvertedBounds / ErrNonFiniteBound (bad records) or ctx.Err().
//
// # Thread Safety
//
// Safe for concurrent use. records is only read.
func Run(ctx context.Context, records datatypes.RecordSet, strategy sampling.Strategy,
	experimentCount int, opts ...Option) (datatypes.Population, error) {

	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	if strategy == nil {
		return nil, fmt.Errorf("%w: sampling strategy is required", datatypes.ErrInvalidConfiguration)
	}
	if err := strategy.Validate(); err != nil {
		return nil, err
	}
	if experimentCount < 0 {
		return nil, fmt.Errorf("%w: experiment count %d is negative",
			datatypes.ErrInvalidConfiguration, experimentCount)
	}
	if err := records.Validate(); err != nil {
		return nil, err
	}
	if experimentCount == 0 {
		return datatypes.Population{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reportDegenerate(o.logger, records)

	// Copy the bounds out once so workers iterate a flat slice.
	bounds := make([]datatypes.BoundPair, len(records))
	for i, r := range records {
		bounds[i] = r.Bounds
	}

	workers := o.workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > experimentCount {
		workers = experimentCount
	}

	seed := o.seed
	if seed == 0 {
		seed = sampling.NewRand(0, 0).Uint64() | 1
	}

	population := make(datatypes.Population, experimentCount)
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	chunk := (experimentCount + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := min(start+chunk, experimentCount)
		if start >= end {
			break
		}
		segment := population[start:end]
		stream := o.stream*uint64(workers) + uint64(w)

		g.Go(func() error {
			rng := sampling.NewRand(seed, stream)
			for i := range segment {
				if i%checkEvery == 0 && i > 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
					if o.progress != nil {
						o.progress(int(done.Add(checkEvery)), experimentCount)
					}
				}
				var sum float64
				for _, b := range bounds {
					sum += strategy.Pick(rng, b)
				}
				segment[i] = sum
			}
			if o.progress != nil {
				rest := len(segment) % checkEvery
				if rest == 0 {
					rest = checkEvery
				}
				o.progress(int(done.Add(int64(rest))), experimentCount)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return population, nil
}

// reportDegenerate logs point-estimate records, which usually signal an
// upstream data quality issue.
func reportDegenerate(logger *slog.Logger, records datatypes.RecordSet) {
	idx := records.Degenerate()
	if len(idx) == 0 || logger == nil {
		return
	}
	labels := make([]string, 0, min(len(idx), 10))
	for _, i := range idx[:min(len(idx), 10)] {
		labels = append(labels, records[i].Label(i+1))
	}
	logger.Warn("records with equal bounds contribute a fixed value",
		"error", datatypes.ErrDegenerateBound,
		"count", len(idx),
		"records", labels,
	)
}
