// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ingest

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/AleutianAI/forecast/services/forecast/datatypes"
)

// ErrInvalidFilter indicates a filter expression without "=" or column.
var ErrInvalidFilter = errors.New("invalid filter")

// -----------------------------------------------------------------------------
// Filters
// -----------------------------------------------------------------------------

// Filter keeps rows whose Column equals Value (whitespace-trimmed).
type Filter struct {
	Column string
	Value  string
}

// String renders the filter as Column=Value.
func (f Filter) String() string {
	return f.Column + "=" + f.Value
}

// ParseFilter parses a "Column=Value" expression. The value may be empty
// and may itself contain "=".
func ParseFilter(expr string) (Filter, error) {
	col, val, ok := strings.Cut(expr, "=")
	col = strings.TrimSpace(col)
	if !ok || col == "" {
		return Filter{}, fmt.Errorf("%w: %q (want Column=Value)", ErrInvalidFilter, expr)
	}
	return Filter{Column: col, Value: strings.TrimSpace(val)}, nil
}

// ParseFilters parses every expression, stopping at the first error.
func ParseFilters(exprs []string) ([]Filter, error) {
	filters := make([]Filter, 0, len(exprs))
	for _, e := range exprs {
		f, err := ParseFilter(e)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}

// -----------------------------------------------------------------------------
// Report
// -----------------------------------------------------------------------------

// Drop reasons.
const (
	ReasonBlankBound    = "blank bound"
	ReasonInvalidBound  = "bound is not a number"
	ReasonInvertedBound = "low bound exceeds high bound"
	ReasonBlankGroup    = "blank group key"
)

// DroppedRow is a data row removed during cleaning.
type DroppedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Report accounts for every data row in the input.
//
// Total == Kept + Filtered + len(Dropped).
type Report struct {
	Total    int          `json:"total"`
	Kept     int          `json:"kept"`
	Filtered int          `json:"filtered"`
	Dropped  []DroppedRow `json:"dropped,omitempty"`
}

// -----------------------------------------------------------------------------
// Parsing
// -----------------------------------------------------------------------------

type columns struct {
	low, high, group int
	filters          []int
}

func resolveColumns(header []string, opts Options) (columns, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	lookup := func(name, role string) (int, error) {
		i, ok := index[name]
		if !ok {
			return -1, fmt.Errorf("%w: %s column %q", ErrMissingColumn, role, name)
		}
		return i, nil
	}

	var cols columns
	var err error
	if cols.low, err = lookup(opts.LowColumn, "low bound"); err != nil {
		return cols, err
	}
	if cols.high, err = lookup(opts.HighColumn, "high bound"); err != nil {
		return cols, err
	}
	cols.group = -1
	if opts.GroupColumn != "" {
		if cols.group, err = lookup(opts.GroupColumn, "group"); err != nil {
			return cols, err
		}
	}
	for _, f := range opts.Filters {
		i, err := lookup(f.Column, "filter")
		if err != nil {
			return cols, err
		}
		cols.filters = append(cols.filters, i)
	}
	return cols, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseBound(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Thousands separators, e.g. "1,250".
		v, err = strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	}
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not finite", s)
	}
	return v, nil
}

// parseTable turns header-first rows into records. Blank rows are skipped
// without being counted.
func parseTable(rows [][]string, opts Options) (datatypes.RecordSet, *Report, error) {
	opts = opts.withDefaults()
	if len(rows) == 0 {
		return nil, nil, ErrNoHeader
	}
	cols, err := resolveColumns(rows[0], opts)
	if err != nil {
		return nil, nil, err
	}

	report := &Report{}
	var records datatypes.RecordSet

scan:
	for i, row := range rows[1:] {
		rowNum := i + 2
		if isBlank(row) {
			continue
		}
		report.Total++

		for fi, f := range opts.Filters {
			if cell(row, cols.filters[fi]) != f.Value {
				report.Filtered++
				continue scan
			}
		}

		drop := func(reason, detail string) {
			report.Dropped = append(report.Dropped, DroppedRow{Row: rowNum, Reason: reason, Detail: detail})
		}

		lowText, highText := cell(row, cols.low), cell(row, cols.high)
		if lowText == "" || highText == "" {
			drop(ReasonBlankBound, "")
			continue
		}
		low, err := parseBound(lowText)
		if err != nil {
			drop(ReasonInvalidBound, fmt.Sprintf("%s=%q", opts.LowColumn, lowText))
			continue
		}
		high, err := parseBound(highText)
		if err != nil {
			drop(ReasonInvalidBound, fmt.Sprintf("%s=%q", opts.HighColumn, highText))
			continue
		}
		if low > high {
			drop(ReasonInvertedBound, fmt.Sprintf("[%v, %v]", low, high))
			continue
		}

		rec := datatypes.Record{Bounds: datatypes.BoundPair{Lower: low, Upper: high}, Row: rowNum}
		if cols.group >= 0 {
			rec.Group = cell(row, cols.group)
			if rec.Group == "" {
				drop(ReasonBlankGroup, "")
				continue
			}
		}
		records = append(records, rec)
		report.Kept++
	}
	return records, report, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
