// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package simulation is the entry point shared by the CLI and the HTTP API.
//
// A Service validates a Request, runs the experiment (or grouped) engine,
// summarizes the outcomes, and wraps every run with a run ID, a trace span,
// Prometheus metrics, structured logs, and optional history persistence.
package simulation
