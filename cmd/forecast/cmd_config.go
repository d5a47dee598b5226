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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/forecast/cmd/forecast/config"
)

// runConfigInit implements `forecast config init`.
func runConfigInit(cmd *cobra.Command, _ []string) error {
	if err := config.WriteDefault(app.cfgPath, forceInit); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", app.cfgPath)
	return nil
}

// runConfigShow implements `forecast config show`. It prints the effective
// configuration, defaults included.
func runConfigShow(cmd *cobra.Command, _ []string) error {
	data, err := config.Marshal(app.cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", app.cfgPath)
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
