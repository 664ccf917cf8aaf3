// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command server runs the movielab HTTP API and, when job subscriptions are
// configured, the Pub/Sub pipeline job listeners.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jaycherian/movielab/internal/api"
	"github.com/jaycherian/movielab/internal/telemetry"
)

func main() {
	config, err := GetConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	telemetry.SetupLogging(os.Stdout, config.Telemetry.LogLevel)
	slog.Info("logging initialized", "level", config.Telemetry.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		slog.Error("failed to setup OpenTelemetry", "error", err)
		os.Exit(1)
	}

	if err := InitState(ctx, config); err != nil {
		slog.Error("failed to initialize state", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gin.SetMode(gin.ReleaseMode)
	server, err := api.NewServer(api.Options{
		ServiceName:        config.Application.Name,
		Studios:            api.FactoryStudios(state.factory),
		Runner:             state.runner,
		Registry:           registry,
		MaxUploadBytes:     config.Pipeline.MaxUploadMegabytes << 20,
		DefaultDuration:    config.Pipeline.DefaultDuration,
		DefaultAspectRatio: config.Pipeline.DefaultAspectRatio,
		TranslateBatchSize: config.Pipeline.TranslateBatchSize,
	})
	if err != nil {
		slog.Error("failed to create api server", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         config.Application.ListenAddress,
		Handler:      server.Handler(),
		ReadTimeout:  time.Duration(config.Application.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(config.Application.WriteTimeoutSeconds) * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to listen", "error", err)
			cancel()
		}
	}()
	slog.Info("server ready", "address", config.Application.ListenAddress)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	// Running pipelines observe the cancelled root context and record themselves as failed.
	cancel()
	state.runner.Wait()
	CloseState()
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Error("telemetry shutdown failed", "error", err)
	}
	slog.Info("server exiting")
}
