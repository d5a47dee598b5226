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

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// BoundPair Tests
// =============================================================================

func TestBoundPair_Validate(t *testing.T) {
	tests := []struct {
		name    string
		pair    BoundPair
		wantErr error
	}{
		{"ordered", BoundPair{Lower: 1, Upper: 2}, nil},
		{"degenerate", BoundPair{Lower: 3, Upper: 3}, nil},
		{"negative range", BoundPair{Lower: -5, Upper: -1}, nil},
		{"inverted", BoundPair{Lower: 2, Upper: 1}, ErrInvertedBounds},
		{"nan lower", BoundPair{Lower: math.NaN(), Upper: 1}, ErrNonFiniteBound},
		{"inf upper", BoundPair{Lower: 0, Upper: math.Inf(1)}, ErrNonFiniteBound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pair.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBoundPair_Degenerate(t *testing.T) {
	assert.True(t, BoundPair{Lower: 4, Upper: 4}.Degenerate())
	assert.False(t, BoundPair{Lower: 4, Upper: 5}.Degenerate())
	assert.Equal(t, 1.0, BoundPair{Lower: 4, Upper: 5}.Width())
}

// =============================================================================
// RecordSet Tests
// =============================================================================

func TestRecordSet_Validate(t *testing.T) {
	t.Run("valid set", func(t *testing.T) {
		rs := NewRecordSet(BoundPair{1, 2}, BoundPair{3, 3})
		assert.NoError(t, rs.Validate())
	})

	t.Run("empty set", func(t *testing.T) {
		assert.NoError(t, RecordSet{}.Validate())
	})

	t.Run("reports source row", func(t *testing.T) {
		rs := RecordSet{
			{Bounds: BoundPair{1, 2}, Row: 2},
			{Bounds: BoundPair{9, 1}, Row: 7},
		}
		err := rs.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvertedBounds))
		assert.Contains(t, err.Error(), "row 7")
	})

	t.Run("falls back to record index", func(t *testing.T) {
		rs := NewRecordSet(BoundPair{1, 2}, BoundPair{9, 1})
		err := rs.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "record 2")
	})
}

func TestRecordSet_Degenerate(t *testing.T) {
	rs := NewRecordSet(BoundPair{1, 2}, BoundPair{3, 3}, BoundPair{0, 1}, BoundPair{5, 5})
	assert.Equal(t, []int{1, 3}, rs.Degenerate())
	assert.Empty(t, NewRecordSet(BoundPair{1, 2}).Degenerate())
}

func TestRecordSet_Partition(t *testing.T) {
	rs := RecordSet{
		{Bounds: BoundPair{1, 2}, Group: "B"},
		{Bounds: BoundPair{3, 4}, Group: "A"},
		{Bounds: BoundPair{5, 6}, Group: "B"},
	}

	parts := rs.Partition()
	require.Len(t, parts, 2)
	assert.Equal(t, RecordSet{rs[0], rs[2]}, parts["B"])
	assert.Equal(t, RecordSet{rs[1]}, parts["A"])
	assert.Equal(t, []string{"B", "A"}, rs.Keys())
}

// =============================================================================
// ConfidenceInterval Tests
// =============================================================================

func TestConfidenceInterval(t *testing.T) {
	ci := ConfidenceInterval{Level: 95, Lower: 10, Upper: 20}

	assert.Equal(t, 10.0, ci.Width())
	assert.True(t, ci.Contains(10))
	assert.True(t, ci.Contains(20))
	assert.False(t, ci.Contains(20.01))
	assert.True(t, ci.ContainsInterval(ConfidenceInterval{Level: 90, Lower: 11, Upper: 19}))
	assert.False(t, ci.ContainsInterval(ConfidenceInterval{Level: 90, Lower: 9, Upper: 19}))
	assert.Equal(t, "95% CI - [10.00, 20.00]", ci.String())
}
