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
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/RegistryDeck/pkg/ux"
	"github.com/AleutianAI/RegistryDeck/services/connector/store"
)

func runStatus(cmd *cobra.Command, args []string) {
	client := newConnectorClient(cliConfig)
	state, err := client.State(context.Background())
	if err != nil {
		ux.Errorf("%v", err)
		os.Exit(1)
	}

	ux.Title("Connector status")
	if state.ConnectedAt != nil {
		ux.KeyValue("session", "connected since "+*state.ConnectedAt)
	} else {
		ux.KeyValue("session", "no browser connected")
	}
	if state.NpmUser != "" {
		ux.KeyValue("npm user", state.NpmUser)
	} else {
		ux.KeyValue("npm user", "not logged in")
	}
	if state.HasOtp {
		ux.KeyValue("otp", string(ux.IconLock)+" armed")
	} else {
		ux.KeyValue("otp", "not set")
	}

	fmt.Println()
	printQueue(state.Operations)
}

// printQueue renders the operations table, oldest first.
func printQueue(ops []store.Operation) {
	if len(ops) == 0 {
		fmt.Println("Queue is empty.")
		return
	}

	sort.SliceStable(ops, func(i, j int) bool {
		return ops[i].CreatedAt.Before(ops[j].CreatedAt)
	})

	ux.Title(fmt.Sprintf("Queue (%d)", len(ops)))
	for _, op := range ops {
		desc := op.Description
		if desc == "" {
			desc = op.Command
		}
		fmt.Printf("  %s  %-10s %-20s %s\n", shortID(op.ID), ux.StatusBadge(string(op.Status)), op.Type, desc)
		if op.DependsOn != "" {
			fmt.Printf("          %s depends on %s\n", ux.IconArrow, shortID(op.DependsOn))
		}
		if op.Result != nil && op.Result.ExitCode != 0 {
			fmt.Printf("          exit %d: %s\n", op.Result.ExitCode, firstLine(op.Result.Stderr))
		}
	}
}

// shortID truncates a UUID for display; full IDs still work everywhere
// an ID is accepted.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
