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
	"math"
	"testing"

	"github.com/aclements/go-moremath/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/forecast/services/forecast/datatypes"
)

const propertySamples = 200_000

// -----------------------------------------------------------------------------
// Construction Tests
// -----------------------------------------------------------------------------

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  bool
	}{
		{"default is triangular", Config{}, KindTriangular, false},
		{"triangular explicit", Config{Kind: "triangular", Mode: 0.7}, KindTriangular, false},
		{"case insensitive", Config{Kind: " Normal "}, KindNormal, false},
		{"normal ignores mode", Config{Kind: "normal", Mode: 5}, KindNormal, false},
		{"unknown kind", Config{Kind: "beta"}, "", true},
		{"mode too large", Config{Kind: "triangular", Mode: 1}, "", true},
		{"negative mode", Config{Kind: "triangular", Mode: -0.2}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, datatypes.ErrInvalidConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, s.Name())
		})
	}
}

func TestNew_DefaultMode(t *testing.T) {
	s, err := New(Config{Kind: KindTriangular})
	require.NoError(t, err)
	assert.Equal(t, DefaultMode, s.(Triangular).Mode)
}

func TestNewTriangular_RejectsEdges(t *testing.T) {
	for _, mode := range []float64{0, 1, math.NaN(), 1.5} {
		_, err := NewTriangular(mode)
		assert.ErrorIs(t, err, datatypes.ErrInvalidConfiguration, "mode %v", mode)
	}
	for _, mode := range []float64{0.01, 0.5, 0.6, 0.99} {
		_, err := NewTriangular(mode)
		assert.NoError(t, err, "mode %v", mode)
	}
}

func TestStrategy_Validate(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		wantErr  bool
	}{
		{"triangular zero value", Triangular{}, true},
		{"triangular mode above one", Triangular{Mode: 1.5}, true},
		{"triangular negative mode", Triangular{Mode: -0.2}, true},
		{"triangular mode one", Triangular{Mode: 1}, true},
		{"triangular nan mode", Triangular{Mode: math.NaN()}, true},
		{"triangular valid", Triangular{Mode: 0.6}, false},
		{"normal", Normal{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.strategy.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, datatypes.ErrInvalidConfiguration)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewRand_Reproducible(t *testing.T) {
	a := NewRand(7, 1)
	b := NewRand(7, 1)
	c := NewRand(7, 2)

	seqA := []float64{a.Float64(), a.Float64(), a.Float64()}
	seqB := []float64{b.Float64(), b.Float64(), b.Float64()}
	seqC := []float64{c.Float64(), c.Float64(), c.Float64()}

	assert.Equal(t, seqA, seqB)
	assert.NotEqual(t, seqA, seqC)
}

// -----------------------------------------------------------------------------
// Degenerate Bounds
// -----------------------------------------------------------------------------

func TestPick_DegenerateBounds(t *testing.T) {
	tri, err := NewTriangular(0.6)
	require.NoError(t, err)
	rng := NewRand(1, 0)

	for _, s := range []Strategy{tri, Normal{}} {
		t.Run(s.Name(), func(t *testing.T) {
			for _, k := range []float64{0, 3.5, -2, 1e9} {
				got := s.Pick(rng, datatypes.BoundPair{Lower: k, Upper: k})
				assert.Equal(t, k, got)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Triangular Distribution Properties
// -----------------------------------------------------------------------------

func TestTriangular_SamplesWithinBounds(t *testing.T) {
	tri, err := NewTriangular(0.6)
	require.NoError(t, err)
	rng := NewRand(11, 0)
	b := datatypes.BoundPair{Lower: 0, Upper: 10}

	for i := 0; i < propertySamples; i++ {
		v := tri.Pick(rng, b)
		require.GreaterOrEqual(t, v, b.Lower)
		require.LessOrEqual(t, v, b.Upper)
	}
}

func TestTriangular_ModeConverges(t *testing.T) {
	tests := []struct {
		name string
		mode float64
		b    datatypes.BoundPair
	}{
		{"skewed left", 0.3, datatypes.BoundPair{Lower: 0, Upper: 10}},
		{"default mode", 0.6, datatypes.BoundPair{Lower: 10, Upper: 20}},
		{"skewed right", 0.8, datatypes.BoundPair{Lower: -4, Upper: 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tri, err := NewTriangular(tt.mode)
			require.NoError(t, err)
			rng := NewRand(2024, 0)

			const bins = 50
			width := tt.b.Width() / bins
			counts := make([]int, bins)
			for i := 0; i < propertySamples; i++ {
				idx := int((tri.Pick(rng, tt.b) - tt.b.Lower) / width)
				if idx == bins {
					idx--
				}
				counts[idx]++
			}

			best := 0
			for i, c := range counts {
				if c > counts[best] {
					best = i
				}
			}
			empiricalMode := tt.b.Lower + (float64(best)+0.5)*width
			assert.InDelta(t, tri.Peak(tt.b), empiricalMode, 0.05*tt.b.Width())
		})
	}
}

func TestTriangular_MeanMatchesDensity(t *testing.T) {
	// Triangular mean is (lower + peak + upper) / 3.
	tri, err := NewTriangular(0.25)
	require.NoError(t, err)
	rng := NewRand(5, 0)
	b := datatypes.BoundPair{Lower: 0, Upper: 12}

	xs := make([]float64, propertySamples)
	for i := range xs {
		xs[i] = tri.Pick(rng, b)
	}
	want := (b.Lower + tri.Peak(b) + b.Upper) / 3
	assert.InDelta(t, want, stats.Mean(xs), 0.05)
}

func TestTriangular_ConsumesThreeDraws(t *testing.T) {
	tri, err := NewTriangular(0.5)
	require.NoError(t, err)

	a := NewRand(99, 0)
	b := NewRand(99, 0)
	tri.Pick(a, datatypes.BoundPair{Lower: 0, Upper: 1})
	b.Float64()
	b.Float64()
	b.Float64()

	assert.Equal(t, b.Float64(), a.Float64())
}

// -----------------------------------------------------------------------------
// Normal Distribution Properties
// -----------------------------------------------------------------------------

func TestNormal_Dist(t *testing.T) {
	d := Normal{}.Dist(datatypes.BoundPair{Lower: 10, Upper: 20})
	assert.Equal(t, 15.0, d.Mu)
	assert.InDelta(t, 10/3.29, d.Sigma, 1e-12)
}

func TestNormal_QuantileAccuracy(t *testing.T) {
	std := stats.NormalDist{Mu: 0, Sigma: 1}
	tests := []struct {
		p    float64
		want float64
	}{
		{0.5, 0},
		{0.95, 1.6448536269514722},
		{0.975, 1.959963984540054},
		{0.025, -1.959963984540054},
		{0.999, 3.090232306167813},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, std.InvCDF(tt.p), 1e-6, "p=%v", tt.p)
	}
}

func TestNormal_MeanAndCoverage(t *testing.T) {
	rng := NewRand(31337, 0)
	b := datatypes.BoundPair{Lower: 10, Upper: 20}

	xs := make([]float64, propertySamples)
	inside := 0
	for i := range xs {
		xs[i] = Normal{}.Pick(rng, b)
		if xs[i] >= b.Lower && xs[i] <= b.Upper {
			inside++
		}
	}

	assert.InDelta(t, 15.0, stats.Mean(xs), 0.05)
	assert.InDelta(t, 10/3.29, stats.StdDev(xs), 0.05)
	// Bounds sit at the 5th and 95th percentiles.
	assert.InDelta(t, 0.90, float64(inside)/propertySamples, 0.01)
}

func TestNormal_NeverInfinite(t *testing.T) {
	rng := NewRand(3, 0)
	b := datatypes.BoundPair{Lower: 0, Upper: 1}
	for i := 0; i < propertySamples; i++ {
		v := Normal{}.Pick(rng, b)
		require.False(t, math.IsInf(v, 0) || math.IsNaN(v))
	}
}
