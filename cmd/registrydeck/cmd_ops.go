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
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/RegistryDeck/pkg/ux"
	"github.com/AleutianAI/RegistryDeck/services/connector/engine"
)

// resolveID expands a short ID prefix (as printed by status) to the full
// operation ID. Ambiguous or unknown prefixes are fatal.
func resolveID(ctx context.Context, client *connectorClient, prefix string) string {
	state, err := client.State(ctx)
	if err != nil {
		ux.Errorf("%v", err)
		os.Exit(1)
	}

	var matches []string
	for _, op := range state.Operations {
		if op.ID == prefix {
			return op.ID
		}
		if strings.HasPrefix(op.ID, prefix) {
			matches = append(matches, op.ID)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0]
	case 0:
		ux.Errorf("no operation matches %q", prefix)
	default:
		ux.Errorf("%q is ambiguous: matches %d operations", prefix, len(matches))
	}
	os.Exit(1)
	return ""
}

func runOpsApprove(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	client := newConnectorClient(cliConfig)

	op, err := client.Approve(ctx, resolveID(ctx, client, args[0]))
	if err != nil {
		ux.Errorf("%v", err)
		os.Exit(1)
	}
	ux.Successf("approved %s (%s)", shortID(op.ID), op.Type)
}

func runOpsApproveAll(cmd *cobra.Command, args []string) {
	client := newConnectorClient(cliConfig)
	count, err := client.ApproveAll(context.Background())
	if err != nil {
		ux.Errorf("%v", err)
		os.Exit(1)
	}
	ux.Successf("approved %d operation(s)", count)
}

func runOpsRetry(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	client := newConnectorClient(cliConfig)

	op, err := client.Retry(ctx, resolveID(ctx, client, args[0]))
	if err != nil {
		ux.Errorf("%v", err)
		os.Exit(1)
	}
	ux.Successf("re-approved %s (%s)", shortID(op.ID), op.Type)
}

func runOpsRm(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	client := newConnectorClient(cliConfig)

	id := resolveID(ctx, client, args[0])
	if err := client.Remove(ctx, id); err != nil {
		ux.Errorf("%v", err)
		os.Exit(1)
	}
	ux.Successf("removed %s", shortID(id))
}

func runOpsClear(cmd *cobra.Command, args []string) {
	client := newConnectorClient(cliConfig)
	removed, err := client.ClearAll(context.Background())
	if err != nil {
		ux.Errorf("%v", err)
		os.Exit(1)
	}
	ux.Successf("removed %d operation(s)", removed)
}

// runOpsExecute runs the approved queue. A 2FA step-up is not an error:
// the connector halts, we prompt for the OTP, and execute again so the
// whole remaining batch runs under the fresh code.
func runOpsExecute(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	client := newConnectorClient(cliConfig)

	outcome, err := client.Execute(ctx, executeOtp)
	if err != nil {
		ux.Errorf("%v", err)
		os.Exit(1)
	}

	if outcome.OtpRequired && executeOtp == "" {
		ux.Warnf("the registry requires a one-time password")
		otp, err := promptOtp()
		if err != nil {
			ux.Errorf("%v", err)
			os.Exit(1)
		}
		if otp == "" {
			fmt.Println("Aborted.")
			return
		}
		rerun, err := client.Execute(ctx, otp)
		if err != nil {
			ux.Errorf("%v", err)
			os.Exit(1)
		}
		outcome.Results = append(outcome.Results, rerun.Results...)
		outcome.OtpRequired = rerun.OtpRequired
	}

	printOutcome(outcome)
}

func printOutcome(outcome engine.BatchOutcome) {
	if len(outcome.Results) == 0 && !outcome.OtpRequired {
		fmt.Println("Nothing to execute.")
		return
	}

	failed := 0
	for _, res := range outcome.Results {
		badge := ux.StatusBadge(string(res.Status))
		fmt.Printf("  %s  %-10s %s\n", shortID(res.ID), badge, res.Type)
		if res.Result.ExitCode != 0 {
			failed++
			fmt.Printf("          exit %d: %s\n", res.Result.ExitCode, firstLine(res.Result.Stderr))
		}
	}

	switch {
	case outcome.OtpRequired:
		ux.Warnf("execution halted awaiting a one-time password")
	case failed > 0:
		ux.Warnf("%d of %d operation(s) failed; use 'registrydeck ops retry <id>'", failed, len(outcome.Results))
	default:
		ux.Successf("%d operation(s) completed", len(outcome.Results))
	}
}

func runMirror(cmd *cobra.Command, args []string) {
	client := newConnectorClient(cliConfig)
	snap, err := client.Mirror(context.Background())
	if err != nil {
		ux.Errorf("%v", err)
		os.Exit(1)
	}

	empty := true
	if len(snap.Orgs) > 0 {
		empty = false
		ux.Title("Org memberships")
		for org, users := range snap.Orgs {
			for user, role := range users {
				fmt.Printf("  %s %s: %s (%s)\n", ux.IconBullet, org, user, role)
			}
		}
	}
	if len(snap.Teams) > 0 {
		empty = false
		ux.Title("Teams")
		for team, members := range snap.Teams {
			fmt.Printf("  %s %s: %s\n", ux.IconBullet, team, strings.Join(members, ", "))
		}
	}
	if len(snap.Access) > 0 {
		empty = false
		ux.Title("Package access")
		for pkg, grants := range snap.Access {
			for team, perm := range grants {
				fmt.Printf("  %s %s: %s (%s)\n", ux.IconBullet, pkg, team, perm)
			}
		}
	}
	if len(snap.Owners) > 0 {
		empty = false
		ux.Title("Owners")
		for pkg, owners := range snap.Owners {
			fmt.Printf("  %s %s: %s\n", ux.IconBullet, pkg, strings.Join(owners, ", "))
		}
	}
	if empty {
		fmt.Println("No completed mutations mirrored yet.")
	}
}
