// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stats

import (
	"fmt"
	"math"
	"slices"

	mstats "github.com/aclements/go-moremath/stats"

	"github.com/AleutianAI/forecast/services/forecast/datatypes"
)

// -----------------------------------------------------------------------------
// Levels
// -----------------------------------------------------------------------------

// Levels are the reported confidence levels, narrowest first.
var Levels = []int{80, 90, 95}

// tails maps a level to its lower-tail probability.
var tails = map[int]float64{
	80: 0.075,
	90: 0.05,
	95: 0.025,
}

// -----------------------------------------------------------------------------
// Summary
// -----------------------------------------------------------------------------

// Summary describes a population and its confidence intervals.
type Summary struct {
	// Count is the number of outcomes.
	Count int `json:"count"`

	// Mean is the arithmetic mean.
	Mean float64 `json:"mean"`

	// StdDev is the sample standard deviation.
	StdDev float64 `json:"std_dev"`

	// Min and Max are the extreme outcomes.
	Min float64 `json:"min"`
	Max float64 `json:"max"`

	// Median is the 50th percentile.
	Median float64 `json:"median"`

	// Intervals holds one interval per entry of Levels, in the same order.
	Intervals []datatypes.ConfidenceInterval `json:"intervals"`
}

// Interval returns the interval for a level.
func (s *Summary) Interval(level int) (datatypes.ConfidenceInterval, bool) {
	for _, ci := range s.Intervals {
		if ci.Level == level {
			return ci, true
		}
	}
	return datatypes.ConfidenceInterval{}, false
}

// CI95 returns the 95% interval.
func (s *Summary) CI95() datatypes.ConfidenceInterval {
	ci, _ := s.Interval(95)
	return ci
}

// Summarize computes descriptive statistics and the 80/90/95% intervals.
//
// # Description
//
// Sorts a copy of the population and extracts the percentiles with
// Percentile. The population itself is not modified.
//
// # Inputs
//
//   - pop: Outcome population. Must have at least 2 outcomes.
//
// # Outputs
//
//   - *Summary: Statistics and intervals. Intervals are nested:
//     95% ⊇ 90% ⊇ 80%.
//   - error: wraps ErrInsufficientData for fewer than 2 outcomes.
//
// # Thread Safety
//
// Stateless; safe for concurrent use.
func Summarize(pop datatypes.Population) (*Summary, error) {
	if len(pop) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 outcomes, got %d",
			datatypes.ErrInsufficientData, len(pop))
	}

	sorted := slices.Clone([]float64(pop))
	slices.Sort(sorted)

	lo, hi := mstats.Bounds(sorted)
	s := &Summary{
		Count:     len(sorted),
		Mean:      mstats.Mean(sorted),
		StdDev:    mstats.StdDev(sorted),
		Min:       lo,
		Max:       hi,
		Median:    Percentile(sorted, 0.5),
		Intervals: make([]datatypes.ConfidenceInterval, 0, len(Levels)),
	}
	for _, level := range Levels {
		s.Intervals = append(s.Intervals, intervalAt(sorted, level))
	}
	return s, nil
}

// Interval computes a single interval from an unsorted population.
//
// # Outputs
//
//   - error: wraps ErrInsufficientData for fewer than 2 outcomes, or
//     ErrInvalidConfiguration for a level other than 80, 90 or 95.
func Interval(pop datatypes.Population, level int) (datatypes.ConfidenceInterval, error) {
	if _, ok := tails[level]; !ok {
		return datatypes.ConfidenceInterval{}, fmt.Errorf("%w: unsupported confidence level %d",
			datatypes.ErrInvalidConfiguration, level)
	}
	if len(pop) < 2 {
		return datatypes.ConfidenceInterval{}, fmt.Errorf("%w: need at least 2 outcomes, got %d",
			datatypes.ErrInsufficientData, len(pop))
	}
	sorted := slices.Clone([]float64(pop))
	slices.Sort(sorted)
	return intervalAt(sorted, level), nil
}

func intervalAt(sorted []float64, level int) datatypes.ConfidenceInterval {
	tail := tails[level]
	return datatypes.ConfidenceInterval{
		Level: level,
		Lower: Percentile(sorted, tail),
		Upper: Percentile(sorted, 1-tail),
	}
}

// -----------------------------------------------------------------------------
// Percentiles
// -----------------------------------------------------------------------------

// Percentile returns the p-th quantile of an ascending slice using linear
// interpolation between order statistics.
//
// # Description
//
// With n values and h = p*(n-1), the result is
// sorted[floor(h)] + (h-floor(h)) * (sorted[floor(h)+1] - sorted[floor(h)]).
// p = 0 returns the minimum and p = 1 the maximum.
//
// # Inputs
//
//   - sorted: Values in ascending order. Must not be empty.
//   - p: Quantile in [0, 1]. Values outside are clamped.
//
// # Outputs
//
//   - float64: The interpolated quantile. NaN for an empty slice.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	p = math.Max(0, math.Min(1, p))

	h := p * float64(n-1)
	lower := int(math.Floor(h))
	if lower >= n-1 {
		return sorted[n-1]
	}
	frac := h - float64(lower)
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}
