// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/forecast/services/forecast/grouped"
	"github.com/AleutianAI/forecast/services/forecast/handlers"
	"github.com/AleutianAI/forecast/services/forecast/simulation"
)

var (
	colorTeal  = lipgloss.Color("#2CD7C7")
	colorSlate = lipgloss.Color("#5C7A84")
	colorAmber = lipgloss.Color("#F4D03F")

	headlineStyle = lipgloss.NewStyle().Bold(true).Foreground(colorTeal)
	mutedStyle    = lipgloss.NewStyle().Foreground(colorSlate)
	warningStyle  = lipgloss.NewStyle().Foreground(colorAmber)
)

// writeSingle renders a single forecast.
func writeSingle(w io.Writer, format string, res *simulation.Result) error {
	switch format {
	case formatJSON:
		return writeJSON(w, res)
	case formatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"level", "lower", "upper"}); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		for _, ci := range res.Summary.Intervals {
			row := []string{strconv.Itoa(ci.Level), formatValue(ci.Lower), formatValue(ci.Upper)}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write %d%% interval: %w", ci.Level, err)
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		s := res.Summary
		// The 95% line comes first; scripts grep for it.
		fmt.Fprintln(w, headlineStyle.Render(s.CI95().String()))
		for i := len(s.Intervals) - 1; i >= 0; i-- {
			if ci := s.Intervals[i]; ci.Level != 95 {
				fmt.Fprintln(w, mutedStyle.Render(ci.String()))
			}
		}
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf(
			"mean %.2f, std dev %.2f, median %.2f, range [%.2f, %.2f]",
			s.Mean, s.StdDev, s.Median, s.Min, s.Max)))
		if res.Degenerate > 0 {
			fmt.Fprintln(w, warningStyle.Render(fmt.Sprintf(
				"%d of %d items have equal low and high bounds", res.Degenerate, res.Records)))
		}
		return nil
	}
}

// writeGrouped renders a grouped forecast. Text and csv both print the
// report CSV: header "<group column>,lower,upper" and one row per key.
func writeGrouped(w io.Writer, format, header string, res *simulation.GroupedResult) error {
	if format == formatJSON {
		return writeJSON(w, handlers.NewGroupedResponse(res))
	}
	if header == "" {
		header = grouped.DefaultHeader
	}
	return res.Report.WriteCSV(w, header)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
