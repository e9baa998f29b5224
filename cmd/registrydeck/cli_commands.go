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
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "registrydeck",
		Short: "A CLI to run and operate the RegistryDeck local services",
		Long: `RegistryDeck runs the local connector and registry proxy that back the
RegistryDeck browser extension, and gives the operator a terminal view of
the operations queue: inspect, approve, and execute queued npm registry
mutations without leaving the shell.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the connector service",
		Long: `Starts the operations-queue connector on localhost. The browser
extension connects with the shared token, queues privileged npm
operations, and the operator approves and executes them.`,
		Run: runServe,
	}
	servePort  int
	serveToken string

	proxyCmd = &cobra.Command{
		Use:   "proxy",
		Short: "Run the registry proxy service",
		Long: `Starts the caching registry proxy on localhost. The proxy serves
public package metadata, search, and download counts to the extension
with local caching and upstream rate limiting.`,
		Run: runProxy,
	}
	proxyPort     int
	proxyCacheDir string

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show connector session and queue state",
		Run:   runStatus,
	}

	// Queue administration commands
	opsCmd = &cobra.Command{
		Use:   "ops",
		Short: "Manage the operations queue",
		Long:  `Approve, execute, retry, and remove queued registry operations on a running connector.`,
	}
	opsApproveCmd = &cobra.Command{
		Use:   "approve [operation-id]",
		Short: "Approve one pending operation",
		Args:  cobra.ExactArgs(1),
		Run:   runOpsApprove,
	}
	opsApproveAllCmd = &cobra.Command{
		Use:   "approve-all",
		Short: "Approve all pending operations",
		Run:   runOpsApproveAll,
	}
	opsExecuteCmd = &cobra.Command{
		Use:   "execute",
		Short: "Execute all approved operations",
		Long: `Runs the approved queue through the local npm CLI. When the registry
demands a one-time password the command prompts for it and resumes.`,
		Run: runOpsExecute,
	}
	executeOtp string

	opsRetryCmd = &cobra.Command{
		Use:   "retry [operation-id]",
		Short: "Re-approve a failed operation",
		Args:  cobra.ExactArgs(1),
		Run:   runOpsRetry,
	}
	opsRmCmd = &cobra.Command{
		Use:   "rm [operation-id]",
		Short: "Remove one operation from the queue",
		Args:  cobra.ExactArgs(1),
		Run:   runOpsRm,
	}
	opsClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Remove all non-running operations",
		Run:   runOpsClear,
	}

	mirrorCmd = &cobra.Command{
		Use:   "mirror",
		Short: "Show the local mirror of completed registry mutations",
		Run:   runMirror,
	}

	// Token administration commands
	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Manage the shared connector token",
	}
	tokenShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the configured token",
		Run:   runTokenShow,
	}
	tokenGenerateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Generate a fresh token and save it to the config file",
		Run:   runTokenGenerate,
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default from CONNECTOR_PORT or 12780)")
	serveCmd.Flags().StringVar(&serveToken, "token", "", "Shared token (default from config/CONNECTOR_TOKEN, else generated)")

	rootCmd.AddCommand(proxyCmd)
	proxyCmd.Flags().IntVar(&proxyPort, "port", 0, "Listen port (default from PROXY_PORT or 12781)")
	proxyCmd.Flags().StringVar(&proxyCacheDir, "cache-dir", "", "On-disk cache directory (default in-memory)")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(mirrorCmd)

	rootCmd.AddCommand(opsCmd)
	opsCmd.AddCommand(opsApproveCmd)
	opsCmd.AddCommand(opsApproveAllCmd)
	opsCmd.AddCommand(opsExecuteCmd)
	opsExecuteCmd.Flags().StringVar(&executeOtp, "otp", "", "One-time password for registry 2FA step-up")
	opsCmd.AddCommand(opsRetryCmd)
	opsCmd.AddCommand(opsRmCmd)
	opsCmd.AddCommand(opsClearCmd)

	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenShowCmd)
	tokenCmd.AddCommand(tokenGenerateCmd)
}
