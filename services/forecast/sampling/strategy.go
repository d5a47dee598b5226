// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sampling

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/aclements/go-moremath/stats"

	"github.com/AleutianAI/forecast/services/forecast/datatypes"
)

// -----------------------------------------------------------------------------
// Strategy names and defaults
// -----------------------------------------------------------------------------

const (
	// KindTriangular selects the Triangular strategy.
	KindTriangular = "triangular"

	// KindNormal selects the Normal strategy.
	KindNormal = "normal"

	// DefaultMode is the triangular peak position used when none is configured.
	DefaultMode = 0.6

	// normalSpread converts a [lower, upper] range to a standard deviation.
	// 3.29 = 2 * 1.645: each bound sits 1.645 sigma from the mean, the 5th
	// and 95th percentiles.
	normalSpread = 3.29
)

// Kinds lists the supported strategy names.
var Kinds = []string{KindTriangular, KindNormal}

// Strategy draws one value from a bounded distribution.
//
// # Description
//
// Pick is called once per record per experiment. Implementations must
// return b.Lower when b.Lower == b.Upper and must not divide by the width.
// Bounds are assumed validated (lower <= upper); the experiment runner
// checks this before sampling starts.
//
// # Thread Safety
//
// Implementations are stateless and safe for concurrent use as long as each
// goroutine passes its own rng.
type Strategy interface {
	// Name returns the strategy kind, e.g. "triangular".
	Name() string

	// Pick returns one sample for the bound pair.
	Pick(rng *rand.Rand, b datatypes.BoundPair) float64

	// Validate reports whether the strategy parameters are usable. It
	// wraps ErrInvalidConfiguration otherwise.
	Validate() error
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config selects and parameterizes a strategy.
type Config struct {
	// Kind is "triangular" or "normal" (case-insensitive).
	// Default: "triangular".
	Kind string `yaml:"strategy" json:"strategy"`

	// Mode is the triangular peak position in (0, 1). Ignored for normal.
	// Default: 0.6.
	Mode float64 `yaml:"mode" json:"mode"`
}

// New builds the strategy described by cfg.
//
// # Inputs
//
//   - cfg: Strategy selection. Empty Kind means triangular, zero Mode means
//     DefaultMode.
//
// # Outputs
//
//   - Strategy: Ready-to-use strategy.
//   - error: wraps ErrInvalidConfiguration for unknown kinds or a mode outside (0, 1).
func New(cfg Config) (Strategy, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Kind))
	switch kind {
	case "", KindTriangular:
		mode := cfg.Mode
		if mode == 0 {
			mode = DefaultMode
		}
		return NewTriangular(mode)
	case KindNormal:
		return Normal{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q (want one of %s)",
			datatypes.ErrInvalidConfiguration, cfg.Kind, strings.Join(Kinds, ", "))
	}
}

// NewRand returns a PCG generator for the given seed and stream.
//
// A zero seed draws a random seed from the runtime's generator. Distinct
// streams with the same seed produce independent sequences, which is how
// parallel workers and groups get their own generators.
func NewRand(seed, stream uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, stream))
}

// -----------------------------------------------------------------------------
// Triangular
// -----------------------------------------------------------------------------

// Triangular samples a triangular distribution peaked at
// lower + (upper-lower)*Mode.
//
// # Description
//
// Each Pick consumes three uniform draws. The first chooses the leg: with
// probability Mode the left leg, otherwise the right. The left leg returns
// the maximum of two uniforms scaled into [lower, peak]; the right leg
// returns the minimum of two uniforms scaled into [peak, upper].
//
// The maximum of two uniforms has CDF x², which is exactly the left leg of
// a triangular CDF, and the minimum is its mirror image, so the mixture
// reproduces the triangular density.
type Triangular struct {
	Mode float64
}

// NewTriangular validates mode and returns the strategy.
//
// # Outputs
//
//   - error: wraps ErrInvalidConfiguration when mode is not strictly inside
//     (0, 1). A mode of 0 or 1 collapses one leg to zero width.
func NewTriangular(mode float64) (Triangular, error) {
	t := Triangular{Mode: mode}
	if err := t.Validate(); err != nil {
		return Triangular{}, err
	}
	return t, nil
}

// Name implements Strategy.
func (t Triangular) Name() string { return KindTriangular }

// Validate implements Strategy. Literals bypass NewTriangular, so callers
// that run samples check again.
func (t Triangular) Validate() error {
	if math.IsNaN(t.Mode) || t.Mode <= 0 || t.Mode >= 1 {
		return fmt.Errorf("%w: triangular mode %v must be in (0, 1)",
			datatypes.ErrInvalidConfiguration, t.Mode)
	}
	return nil
}

// Peak returns the most likely value for the bound pair.
func (t Triangular) Peak(b datatypes.BoundPair) float64 {
	return b.Lower + (b.Upper-b.Lower)*t.Mode
}

// Pick implements Strategy.
func (t Triangular) Pick(rng *rand.Rand, b datatypes.BoundPair) float64 {
	if b.Degenerate() {
		return b.Lower
	}
	peak := t.Peak(b)
	leg, u2, u3 := rng.Float64(), rng.Float64(), rng.Float64()
	if leg < t.Mode {
		return math.Max(u2, u3)*(peak-b.Lower) + b.Lower
	}
	return math.Min(u2, u3)*(b.Upper-peak) + peak
}

// -----------------------------------------------------------------------------
// Normal
// -----------------------------------------------------------------------------

// Normal samples N((lower+upper)/2, (upper-lower)/3.29) by inverse transform.
//
// Samples are not clipped: about 5% of draws fall below lower and 5% above
// upper.
type Normal struct{}

// Name implements Strategy.
func (Normal) Name() string { return KindNormal }

// Validate implements Strategy. Normal has no parameters.
func (Normal) Validate() error { return nil }

// Dist returns the normal distribution fitted to the bound pair.
func (Normal) Dist(b datatypes.BoundPair) stats.NormalDist {
	return stats.NormalDist{
		Mu:    (b.Lower + b.Upper) / 2,
		Sigma: (b.Upper - b.Lower) / normalSpread,
	}
}

// Pick implements Strategy.
func (n Normal) Pick(rng *rand.Rand, b datatypes.BoundPair) float64 {
	if b.Degenerate() {
		return b.Lower
	}
	// Float64 returns [0, 1); the quantile at 0 is -Inf.
	v := rng.Float64()
	for v == 0 {
		v = rng.Float64()
	}
	return n.Dist(b).InvCDF(v)
}

var (
	_ Strategy = Triangular{}
	_ Strategy = Normal{}
)
