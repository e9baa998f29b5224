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
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/RegistryDeck/pkg/ux"
)

// cliConfig is the loaded ~/.registrydeck/config.yaml, populated by the
// persistent pre-run before any command body executes.
var cliConfig Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		ux.Errorf("%v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		// A missing config file is not an error: serve and proxy run on
		// env defaults, and client commands fall back to flags/env.
		cfg, err := loadConfig(configPath())
		if err != nil {
			ux.Warnf("could not read config: %v", err)
		}
		cliConfig = applyEnvOverrides(cfg)
	}
}
