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
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/RegistryDeck/pkg/extensions"
	"github.com/AleutianAI/RegistryDeck/pkg/logging"
	"github.com/AleutianAI/RegistryDeck/pkg/procman"
	"github.com/AleutianAI/RegistryDeck/pkg/ux"
	"github.com/AleutianAI/RegistryDeck/services/connector"
	"github.com/AleutianAI/RegistryDeck/services/connector/observability"
)

func runServe(cmd *cobra.Command, args []string) {
	cfg := connector.LoadConfigFromEnv()
	if servePort > 0 {
		cfg.Port = servePort
	}
	// Flag wins, then config file (env is already folded into cliConfig),
	// then the env-or-generated token LoadConfigFromEnv produced.
	if serveToken != "" {
		cfg.Token = serveToken
	} else if cliConfig.Token != "" {
		cfg.Token = cliConfig.Token
	}

	logger := logging.Init(logging.Config{
		Level:   logging.ParseLevel(cliConfig.LogLevel),
		Service: "connector",
		LogDir:  "~/.registrydeck/logs",
	})

	shutdownTracer, err := connector.InitTracer(cfg.OtlpEndpoint)
	if err != nil {
		ux.Errorf("failed to initialize tracing: %v", err)
		os.Exit(1)
	}

	metrics := observability.InitMetrics()
	svc := connector.New(cfg, extensions.ServiceOptions{}, procman.NewDefaultProcessManager(), logger, metrics)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.OtlpEndpoint != "" {
		router.Use(otelgin.Middleware("registrydeck-connector"))
	}
	connector.RegisterRoutes(router, svc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	svc.Start(ctx)

	ux.Title("RegistryDeck connector")
	ux.KeyValue("address", fmt.Sprintf("http://localhost:%d", cfg.Port))
	ux.KeyValue("token", cfg.Token)
	fmt.Println()
	ux.Successf("Paste the token into the browser extension to connect.")

	// Localhost only: the connector mediates privileged registry
	// mutations and must never be reachable from the network.
	srv := &http.Server{
		Addr:    fmt.Sprintf("localhost:%d", cfg.Port),
		Handler: router,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			ux.Errorf("connector failed: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown did not complete cleanly", "error", err.Error())
	}
	svc.Close()
	shutdownTracer(context.Background())
}
