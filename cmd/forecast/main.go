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
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AleutianAI/forecast/services/forecast/datatypes"
	"github.com/AleutianAI/forecast/services/forecast/ingest"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

// Exit codes.
const (
	exitOK               = 0
	exitFailure          = 1
	exitConfiguration    = 2
	exitInsufficientData = 3
)

// errUsage marks command-line usage errors.
var errUsage = errors.New("usage error")

func usageError(err error) error {
	return fmt.Errorf("%w: %v", errUsage, err)
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage),
		errors.Is(err, datatypes.ErrInvalidConfiguration),
		errors.Is(err, datatypes.ErrInvertedBounds),
		errors.Is(err, datatypes.ErrNonFiniteBound),
		errors.Is(err, ingest.ErrMissingColumn),
		errors.Is(err, ingest.ErrInvalidFilter),
		errors.Is(err, ingest.ErrUnsupportedFormat),
		errors.Is(err, ingest.ErrSheetNotFound):
		return exitConfiguration
	case errors.Is(err, datatypes.ErrInsufficientData):
		return exitInsufficientData
	default:
		return exitFailure
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if closeErr := teardownApp(); err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}
