// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package experiment runs Monte Carlo experiments over a record set.
//
// # Description
//
// One experiment draws a value for every record with the chosen sampling
// strategy and sums the draws into an outcome. Run repeats this
// experimentCount times and returns the outcomes as a Population:
//
//	pop, err := experiment.Run(ctx, records, strategy, 10000,
//	    experiment.WithWorkers(4),
//	    experiment.WithSeed(42),
//	)
//
// # Concurrency
//
// Experiments are independent, so they are split into contiguous chunks and
// run on a small errgroup worker pool. Each worker owns its generator and
// writes only to its own slice segment of the population; no locks are
// taken. Results are reproducible for a fixed (seed, workers) pair.
//
// # Cancellation
//
// Workers check the context between experiments. A cancelled run returns
// the context error and no population.
package experiment
