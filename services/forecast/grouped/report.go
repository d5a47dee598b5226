// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package grouped

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// DefaultHeader is the key column name used when none is given.
const DefaultHeader = "group"

// WriteCSV writes the report as key,lower,upper rows with the 95% interval.
//
// # Description
//
// The first row is the header (header, "lower", "upper"). Each group follows
// in report order with bounds formatted to two decimals. Failed groups are
// written with empty bound cells so they stay visible in the output.
//
// # Inputs
//
//   - w: Destination.
//   - header: Key column name. Empty means DefaultHeader.
//
// # Outputs
//
//   - error: Non-nil if writing fails.
func (r *Report) WriteCSV(w io.Writer, header string) error {
	if header == "" {
		header = DefaultHeader
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{header, "lower", "upper"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, g := range r.Groups {
		row := []string{g.Key, "", ""}
		if g.Err == nil && g.Summary != nil {
			ci := g.CI95()
			row[1] = strconv.FormatFloat(ci.Lower, 'f', 2, 64)
			row[2] = strconv.FormatFloat(ci.Upper, 'f', 2, 64)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write group %q: %w", g.Key, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
