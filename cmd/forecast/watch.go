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
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// inputWatcher re-runs a callback when an input file changes.
//
// # Description
//
// The parent directory is watched rather than the file, because editors and
// spreadsheet tools often save by writing a temporary file and renaming it
// over the original. Bursts of events are collapsed into one callback after
// the debounce delay.
//
// # Thread Safety
//
// Start should only be called once. The callback never runs concurrently
// with itself.
type inputWatcher struct {
	path     string
	debounce time.Duration
	callback func()
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
	runMu sync.Mutex
}

// newInputWatcher creates a watcher for path.
func newInputWatcher(path string, debounce time.Duration, callback func(), logger *slog.Logger) (*inputWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, err
	}
	return &inputWatcher{
		path:     abs,
		debounce: debounce,
		callback: callback,
		watcher:  w,
		logger:   logger,
	}, nil
}

// Start blocks until ctx is cancelled or the watcher is stopped.
func (w *inputWatcher) Start(ctx context.Context) {
	w.logger.Debug("watching input", "path", w.path)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("input watcher error", "error", err)

		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return
		}
	}
}

func (w *inputWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.runMu.Lock()
		defer w.runMu.Unlock()
		w.logger.Info("input changed, re-running", "path", w.path)
		w.callback()
	})
}

// Stop releases the watcher. Safe to call more than once.
func (w *inputWatcher) Stop() error {
	return w.watcher.Close()
}
