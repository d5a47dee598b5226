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
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/mattn/go-isatty"
	"golang.org/x/time/rate"
)

// isTerminal reports whether f is an interactive terminal.
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// progressBar renders experiment progress on one terminal line.
//
// Update is called concurrently by experiment workers; redraws are
// throttled to ten per second, except the final one.
type progressBar struct {
	w        io.Writer
	bar      progress.Model
	throttle rate.Sometimes

	mu       sync.Mutex
	best     int
	finished bool
}

func newProgressBar(w io.Writer) *progressBar {
	return &progressBar{
		w:        w,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		throttle: rate.Sometimes{Interval: 100 * time.Millisecond},
	}
}

// Update implements experiment.ProgressFunc.
func (p *progressBar) Update(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if done <= p.best || total <= 0 {
		return
	}
	p.best = done
	if done == total {
		p.render(done, total)
		return
	}
	p.throttle.Do(func() { p.render(done, total) })
}

func (p *progressBar) render(done, total int) {
	fmt.Fprintf(p.w, "\r%s %d/%d", p.bar.ViewAs(float64(done)/float64(total)), done, total)
}

// Finish ends the progress line.
func (p *progressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished || p.best == 0 {
		return
	}
	p.finished = true
	fmt.Fprintln(p.w)
}
