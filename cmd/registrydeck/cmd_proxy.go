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

	"github.com/AleutianAI/RegistryDeck/pkg/logging"
	"github.com/AleutianAI/RegistryDeck/pkg/ux"
	registryproxy "github.com/AleutianAI/RegistryDeck/services/registry_proxy"
)

func runProxy(cmd *cobra.Command, args []string) {
	cfg := registryproxy.LoadConfigFromEnv()
	if proxyPort > 0 {
		cfg.Port = proxyPort
	}
	if proxyCacheDir != "" {
		cfg.CacheDir = proxyCacheDir
	}

	logger := logging.Init(logging.Config{
		Level:   logging.ParseLevel(cliConfig.LogLevel),
		Service: "proxy",
		LogDir:  "~/.registrydeck/logs",
	})

	svc, err := registryproxy.New(cfg, logger, registryproxy.InitProxyMetrics())
	if err != nil {
		ux.Errorf("failed to start proxy: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registryproxy.RegisterRoutes(router, svc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ux.Title("RegistryDeck registry proxy")
	ux.KeyValue("address", fmt.Sprintf("http://localhost:%d", cfg.Port))
	ux.KeyValue("upstream", cfg.RegistryURL)
	if cfg.CacheDir == "" {
		ux.KeyValue("cache", "in-memory")
	} else {
		ux.KeyValue("cache", cfg.CacheDir)
	}

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
			ux.Errorf("proxy failed: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown did not complete cleanly", "error", err.Error())
	}
}
