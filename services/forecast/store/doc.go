// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists forecast run history in BadgerDB.
//
// Layout:
//
//	run/<unix-nano, zero padded>/<id>  -> RunRecord JSON
//	id/<id>                            -> run key
//
// The zero-padded timestamp keeps run keys in chronological byte order, so
// List walks the run/ prefix in reverse to return newest first.
package store
