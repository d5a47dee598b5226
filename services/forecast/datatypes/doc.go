// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the value types and error taxonomy shared by the
// forecast simulation engine.
//
// # Overview
//
// A forecast starts from a [RecordSet]: an ordered list of line items, each
// carrying a [BoundPair] (low and high estimate) and an optional group key.
// The experiment runner turns a RecordSet into a [Population] of outcome
// sums, and the summarizer derives [ConfidenceInterval] values from it.
//
// # Errors
//
// All failures are reported through the sentinel errors declared in
// errors.go and wrapped with fmt.Errorf("...: %w"). Callers classify them
// with errors.Is:
//
//	if errors.Is(err, datatypes.ErrInvalidConfiguration) {
//	    // bad strategy parameter or experiment count
//	}
//
// # Thread Safety
//
// RecordSet and Population are plain slices. The engine never mutates the
// slices it is handed, so sharing them between concurrent readers is safe.
package datatypes
