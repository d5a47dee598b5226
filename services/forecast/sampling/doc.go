// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sampling provides the probability distributions used to draw one
// plausible value from a line item's [lower, upper] estimate.
//
// # Strategies
//
// Two strategies are supported, selected by name at startup:
//
//   - triangular: peak at lower + (upper-lower)*mode, sampled with a
//     three-draw order-statistic construction
//   - normal: mean at the midpoint, standard deviation (upper-lower)/3.29 so
//     that lower and upper sit at the 5th and 95th percentiles
//
// # Random State
//
// Strategies are stateless. The caller passes the *rand.Rand to use on
// every Pick, so each run (or each worker of a parallel run) owns its
// generator and seeded runs are reproducible:
//
//	rng := sampling.NewRand(42, 0)
//	s, _ := sampling.NewTriangular(0.6)
//	v := s.Pick(rng, datatypes.BoundPair{Lower: 10, Upper: 20})
//
// # Thread Safety
//
// Strategy values are safe for concurrent use. *rand.Rand is not; give each
// goroutine its own generator.
package sampling
