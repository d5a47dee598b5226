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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/AleutianAI/forecast/services/forecast/datatypes"
)

// Default column names.
const (
	DefaultLowColumn  = "Low"
	DefaultHighColumn = "High"
)

var (
	// ErrMissingColumn indicates a required or filtered column is absent
	// from the header row.
	ErrMissingColumn = errors.New("column not found")

	// ErrUnsupportedFormat indicates a file extension other than .csv or .xlsx.
	ErrUnsupportedFormat = errors.New("unsupported input format")

	// ErrNoHeader indicates an input with no rows at all.
	ErrNoHeader = errors.New("input has no header row")

	// ErrSheetNotFound indicates a workbook without the requested sheet.
	ErrSheetNotFound = errors.New("sheet not found")
)

// Options selects columns and rows.
type Options struct {
	// LowColumn names the lower bound column. Default: "Low".
	LowColumn string

	// HighColumn names the upper bound column. Default: "High".
	HighColumn string

	// GroupColumn names the group key column. Empty disables grouping.
	GroupColumn string

	// Sheet selects a workbook sheet. Default: the first sheet.
	Sheet string

	// Filters must all match for a row to be kept.
	Filters []Filter
}

func (o Options) withDefaults() Options {
	if o.LowColumn == "" {
		o.LowColumn = DefaultLowColumn
	}
	if o.HighColumn == "" {
		o.HighColumn = DefaultHighColumn
	}
	return o
}

// Load reads records from a .csv or .xlsx file.
//
// # Outputs
//
//   - datatypes.RecordSet: Kept rows, in file order, with Row set to the
//     1-based spreadsheet row.
//   - *Report: Row accounting. Non-nil whenever error is nil.
//   - error: ErrUnsupportedFormat, ErrMissingColumn, ErrSheetNotFound,
//     ErrNoHeader, or an I/O error.
func Load(path string, opts Options) (datatypes.RecordSet, *Report, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		return ReadCSV(f, opts)
	case ".xlsx", ".xlsm":
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open workbook %s: %w", path, err)
		}
		defer f.Close()
		return readWorkbook(f, opts)
	default:
		return nil, nil, fmt.Errorf("%w: %s (want .csv or .xlsx)", ErrUnsupportedFormat, path)
	}
}

// ReadCSV reads records from CSV data.
func ReadCSV(r io.Reader, opts Options) (datatypes.RecordSet, *Report, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	return parseTable(rows, opts)
}

// ReadWorkbook reads records from an .xlsx stream.
func ReadWorkbook(r io.Reader, opts Options) (datatypes.RecordSet, *Report, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return readWorkbook(f, opts)
}

func readWorkbook(f *excelize.File, opts Options) (datatypes.RecordSet, *Report, error) {
	sheets := f.GetSheetList()
	sheet := opts.Sheet
	if sheet == "" {
		if len(sheets) == 0 {
			return nil, nil, ErrNoHeader
		}
		sheet = sheets[0]
	} else if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		return nil, nil, fmt.Errorf("%w: %q (have %s)", ErrSheetNotFound, sheet, strings.Join(sheets, ", "))
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return parseTable(rows, opts)
}
