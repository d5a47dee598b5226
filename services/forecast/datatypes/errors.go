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

import "errors"

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidConfiguration indicates an invalid sampling strategy parameter
	// or experiment count. It is raised before any sampling starts.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInsufficientData indicates a population too small to extract
	// percentiles from (fewer than two outcomes).
	ErrInsufficientData = errors.New("insufficient data")

	// ErrEmptyGroup indicates an expected group key with no records.
	ErrEmptyGroup = errors.New("group has no records")

	// ErrDegenerateBound marks a bound pair with lower == upper. It is a
	// diagnostic: the pair still contributes its point value.
	ErrDegenerateBound = errors.New("degenerate bound")

	// ErrInvertedBounds indicates a bound pair with lower > upper.
	ErrInvertedBounds = errors.New("lower bound exceeds upper bound")

	// ErrNonFiniteBound indicates a NaN or infinite bound.
	ErrNonFiniteBound = errors.New("bound is not a finite number")
)
