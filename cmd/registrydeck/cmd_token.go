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
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/RegistryDeck/pkg/ux"
)

func runTokenShow(cmd *cobra.Command, args []string) {
	if cliConfig.Token == "" {
		ux.Warnf("no token configured; run 'registrydeck token generate' or set CONNECTOR_TOKEN")
		os.Exit(1)
	}
	// Bare value on stdout so it can be piped into other tooling.
	fmt.Println(cliConfig.Token)
}

// runTokenGenerate writes a fresh token into the config file. Changing
// the token invalidates the browser extension's stored copy; the
// operator re-pastes it on next connect.
func runTokenGenerate(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(configPath())
	if err != nil {
		ux.Errorf("could not read config: %v", err)
		os.Exit(1)
	}

	cfg.Token = uuid.NewString()
	if err := saveConfig(configPath(), cfg); err != nil {
		ux.Errorf("could not save config: %v", err)
		os.Exit(1)
	}

	ux.Successf("new token saved to %s", configPath())
	ux.KeyValue("token", cfg.Token)
	ux.Warnf("restart 'registrydeck serve' and reconnect the extension to use it")
}
