// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/forecast/services/forecast/stats"
)

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("store is closed")

const (
	runPrefix = "run/"
	idPrefix  = "id/"
)

// -----------------------------------------------------------------------------
// Records
// -----------------------------------------------------------------------------

// RunRecord is one persisted forecast run.
type RunRecord struct {
	ID          string         `json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	Source      string         `json:"source,omitempty"`
	Strategy    string         `json:"strategy"`
	Mode        float64        `json:"mode,omitempty"`
	Experiments int            `json:"experiments"`
	Seed        uint64         `json:"seed,omitempty"`
	Records     int            `json:"records"`
	Summary     *stats.Summary `json:"summary,omitempty"`
	Groups      []GroupRecord  `json:"groups,omitempty"`
}

// Grouped reports whether the run was partitioned by group key.
func (r RunRecord) Grouped() bool {
	return len(r.Groups) > 0
}

// GroupRecord is one group of a grouped run.
type GroupRecord struct {
	Key     string         `json:"key"`
	Records int            `json:"records"`
	Summary *stats.Summary `json:"summary,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func runKey(r RunRecord) []byte {
	return fmt.Appendf(nil, "%s%020d/%s", runPrefix, r.CreatedAt.UnixNano(), r.ID)
}

// -----------------------------------------------------------------------------
// Store
// -----------------------------------------------------------------------------

// Store is a BadgerDB-backed run history.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db *badger.DB

	mu     sync.RWMutex
	closed bool

	stopGC chan struct{}
	gcDone chan struct{}
}

// Open opens or creates a history store.
//
// # Outputs
//
//   - *Store: Must be closed by the caller.
//   - error: Directory or database failure.
func Open(cfg Config) (*Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		ratio := cfg.GCDiscardRatio
		if ratio <= 0 || ratio >= 1 {
			ratio = 0.5
		}
		s.stopGC = make(chan struct{})
		s.gcDone = make(chan struct{})
		go gcLoop(db, cfg.GCInterval, ratio, cfg.Logger, s.stopGC, s.gcDone)
	}
	return s, nil
}

// Close stops background GC and closes the database. Safe to call twice.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.gcDone
	}
	return s.db.Close()
}

// Save writes a run and its ID index entry in one transaction.
//
// # Inputs
//
//   - rec: ID must be non-empty. A zero CreatedAt is set to now.
func (s *Store) Save(ctx context.Context, rec RunRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("run ID is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", rec.ID, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	key := runKey(rec)
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("save run %s: %w", rec.ID, err)
		}
		return txn.Set([]byte(idPrefix+rec.ID), key)
	})
}

// Get loads a run by ID.
//
// # Outputs
//
//   - error: ErrNotFound for an unknown ID.
func (s *Store) Get(ctx context.Context, id string) (*RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var rec RunRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(idPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err = txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns up to limit runs, newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var runs []RunRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(runPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// In reverse mode Seek lands on the last key <= the seek key.
		for it.Seek([]byte(runPrefix + "\xff")); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec RunRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			runs = append(runs, rec)
			if limit > 0 && len(runs) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}
