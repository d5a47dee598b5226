// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package grouped runs one independent simulation per group key.
//
// # Description
//
// Records are partitioned by their Group field (equality, input order kept
// inside each partition). Each partition runs experiment.Run followed by
// stats.Summarize with its own generator stream. Partitions share no state
// and run concurrently.
//
// # Failure Isolation
//
// A failing group never hides the others: its GroupResult carries the
// error and the report still lists the key. Keys the caller expected but
// that have no records are reported with ErrEmptyGroup.
//
// # Output
//
// Report.Groups is sorted by key. When every key parses as a number the
// order is numeric, otherwise lexical. WriteCSV renders the three-column
// key,lower,upper report with the 95% interval.
package grouped
