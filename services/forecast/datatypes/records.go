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
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// recordValidate is the validator instance for record datatypes.
// Initialized in init() with the "finite" custom validator.
var recordValidate *validator.Validate

func init() {
	recordValidate = validator.New()
	_ = recordValidate.RegisterValidation("finite", validateFinite)
}

// validateFinite rejects NaN and ±Inf float fields.
func validateFinite(fl validator.FieldLevel) bool {
	v := fl.Field().Float()
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// =============================================================================
// Bound Pairs
// =============================================================================

// BoundPair is the low and high estimate for one line item.
//
// # Description
//
// Upper must be greater than or equal to Lower. Equal bounds describe a
// point estimate and sample to exactly that value.
//
// # Validation
//
// Uses go-playground/validator:
//   - Lower, Upper: finite
//   - Upper: gtefield=Lower
type BoundPair struct {
	Lower float64 `json:"lower" validate:"finite"`
	Upper float64 `json:"upper" validate:"finite,gtefield=Lower"`
}

// Degenerate reports whether the pair collapses to a single point.
func (b BoundPair) Degenerate() bool {
	return b.Lower == b.Upper
}

// Width returns Upper - Lower.
func (b BoundPair) Width() float64 {
	return b.Upper - b.Lower
}

// Validate checks that both bounds are finite and ordered.
//
// # Outputs
//
//   - error: wraps ErrNonFiniteBound or ErrInvertedBounds; nil when valid.
func (b BoundPair) Validate() error {
	err := recordValidate.Struct(b)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	for _, fe := range fieldErrs {
		if fe.Tag() == "finite" {
			return fmt.Errorf("%s=%v: %w", fe.Field(), fe.Value(), ErrNonFiniteBound)
		}
	}
	return fmt.Errorf("[%v, %v]: %w", b.Lower, b.Upper, ErrInvertedBounds)
}

// =============================================================================
// Records
// =============================================================================

// Record is one line item of work.
type Record struct {
	// Bounds is the cost estimate range.
	Bounds BoundPair `json:"bounds"`

	// Group is the partition key. Empty when grouping is not used.
	Group string `json:"group,omitempty"`

	// Row is the 1-based source row, or 0 when unknown. Diagnostics only.
	Row int `json:"row,omitempty"`
}

// Label returns a short human reference for diagnostics.
func (r Record) Label(index int) string {
	if r.Row > 0 {
		return fmt.Sprintf("row %d", r.Row)
	}
	return fmt.Sprintf("record %d", index)
}

// RecordSet is an ordered, immutable sequence of records.
type RecordSet []Record

// NewRecordSet builds an ungrouped RecordSet from bound pairs.
func NewRecordSet(pairs ...BoundPair) RecordSet {
	rs := make(RecordSet, len(pairs))
	for i, p := range pairs {
		rs[i] = Record{Bounds: p}
	}
	return rs
}

// Validate checks every record and returns the first failure.
//
// # Description
//
// The engine assumes lower <= upper for every record. Validate is called
// at the boundary of every public operation so that an inverted or
// non-finite pair fails loudly instead of producing nonsense outcomes.
//
// # Outputs
//
//   - error: wraps ErrInvertedBounds or ErrNonFiniteBound with the record label.
func (rs RecordSet) Validate() error {
	for i, r := range rs {
		if err := r.Bounds.Validate(); err != nil {
			return fmt.Errorf("%s: %w", r.Label(i+1), err)
		}
	}
	return nil
}

// Degenerate returns the indices of records whose bounds are equal.
func (rs RecordSet) Degenerate() []int {
	var idx []int
	for i, r := range rs {
		if r.Bounds.Degenerate() {
			idx = append(idx, i)
		}
	}
	return idx
}

// Partition groups records by key. Order inside each partition follows the
// input order.
func (rs RecordSet) Partition() map[string]RecordSet {
	parts := make(map[string]RecordSet)
	for _, r := range rs {
		parts[r.Group] = append(parts[r.Group], r)
	}
	return parts
}

// Keys returns the distinct group keys in first-seen order.
func (rs RecordSet) Keys() []string {
	seen := make(map[string]struct{}, len(rs))
	var keys []string
	for _, r := range rs {
		if _, ok := seen[r.Group]; ok {
			continue
		}
		seen[r.Group] = struct{}{}
		keys = append(keys, r.Group)
	}
	return keys
}
