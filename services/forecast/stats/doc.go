// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stats turns a simulated population into confidence intervals.
//
// # Methodology
//
// Intervals are empirical: they are read straight off the sorted outcome
// population, with no distributional assumption.
//
//	┌───────┬──────────────────────────────┐
//	│ Level │ Percentiles                  │
//	├───────┼──────────────────────────────┤
//	│  80%  │ [ 7.5%, 92.5%]               │
//	│  90%  │ [ 5.0%, 95.0%]               │
//	│  95%  │ [ 2.5%, 97.5%]               │
//	└───────┴──────────────────────────────┘
//
// # Percentile Rule
//
// Percentiles use linear interpolation between order statistics
// (h = p*(n-1), the NumPy/pandas default). The rule is fixed: changing it
// changes every reported interval.
//
// # Thread Safety
//
// All functions are stateless and safe for concurrent use. Inputs are
// never modified.
package stats
