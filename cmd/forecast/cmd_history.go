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
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/forecast/services/forecast/store"
)

const historyTimeFormat = "2006-01-02 15:04:05"

// runHistoryList implements `forecast history list`.
func runHistoryList(cmd *cobra.Command, _ []string) error {
	history, err := openHistory(app.cfg, app.logger.Slog())
	if err != nil {
		return err
	}
	defer history.Close()

	runs, err := history.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("No saved runs."))
		return nil
	}
	return writeRunTable(cmd.OutOrStdout(), runs)
}

// writeRunTable prints one row per run, newest first.
func writeRunTable(w io.Writer, runs []store.RunRecord) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("ID", "CREATED", "SOURCE", "STRATEGY", "EXPERIMENTS", "RESULT")
	for _, r := range runs {
		t.Row(
			r.ID,
			r.CreatedAt.Local().Format(historyTimeFormat),
			r.Source,
			r.Strategy,
			strconv.Itoa(r.Experiments),
			runResult(r),
		)
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

func runResult(r store.RunRecord) string {
	if r.Grouped() {
		failed := 0
		for _, g := range r.Groups {
			if g.Error != "" {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Sprintf("%d groups, %d failed", len(r.Groups), failed)
		}
		return fmt.Sprintf("%d groups", len(r.Groups))
	}
	if r.Summary == nil {
		return "-"
	}
	return r.Summary.CI95().String()
}

// runHistoryShow implements `forecast history show ID`.
func runHistoryShow(cmd *cobra.Command, args []string) error {
	history, err := openHistory(app.cfg, app.logger.Slog())
	if err != nil {
		return err
	}
	defer history.Close()

	rec, err := history.Get(cmd.Context(), args[0])
	if errors.Is(err, store.ErrNotFound) {
		return usageError(fmt.Errorf("no saved run with id %q", args[0]))
	}
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), rec)
}
