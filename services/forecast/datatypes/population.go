// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "fmt"

// Population is the set of outcome sums produced by one simulation run.
//
// Ordering carries no meaning. A population is owned by the run that
// produced it and is never mutated after the run returns.
type Population []float64

// Len returns the number of outcomes.
func (p Population) Len() int {
	return len(p)
}

// ConfidenceInterval is an empirical [Lower, Upper] range at a named level.
type ConfidenceInterval struct {
	// Level is the confidence level in percent (80, 90 or 95).
	Level int `json:"level"`

	// Lower is the lower percentile value.
	Lower float64 `json:"lower"`

	// Upper is the upper percentile value.
	Upper float64 `json:"upper"`
}

// Width returns the interval width.
func (ci ConfidenceInterval) Width() float64 {
	return ci.Upper - ci.Lower
}

// Contains returns true if the interval contains the value.
func (ci ConfidenceInterval) Contains(v float64) bool {
	return v >= ci.Lower && v <= ci.Upper
}

// ContainsInterval returns true if other lies entirely inside ci.
func (ci ConfidenceInterval) ContainsInterval(other ConfidenceInterval) bool {
	return other.Lower >= ci.Lower && other.Upper <= ci.Upper
}

// String renders the interval the way the CLI prints it.
func (ci ConfidenceInterval) String() string {
	return fmt.Sprintf("%d%% CI - [%.2f, %.2f]", ci.Level, ci.Lower, ci.Upper)
}
