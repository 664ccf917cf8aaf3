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

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jaycherian/movielab/internal/cache"
	"github.com/jaycherian/movielab/internal/cloud"
	"github.com/jaycherian/movielab/internal/core/services"
	"github.com/jaycherian/movielab/internal/core/workflow"
	"github.com/jaycherian/movielab/internal/storage"
	"github.com/jaycherian/movielab/internal/store"
)

// StateManager holds the process wide dependencies of the server.
type StateManager struct {
	config  *cloud.Config
	cloud   *cloud.ServiceClients
	runs    store.RunStore
	audio   cache.AudioCache
	factory *services.StudioFactory
	runner  *workflow.Runner
}

var state = &StateManager{}

// SetupOS defaults the configuration directory and runtime when the
// environment does not name them.
func SetupOS() error {
	if os.Getenv(cloud.EnvConfigFilePrefix) == "" {
		if err := os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if os.Getenv(cloud.EnvConfigRuntime) == "" {
		return os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return nil
}

// GetConfig loads the layered configuration once.
func GetConfig() (*cloud.Config, error) {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			return nil, fmt.Errorf("failed to setup os: %w", err)
		}
		config := cloud.NewConfig()
		if err := cloud.LoadConfig(config); err != nil {
			return nil, err
		}
		state.config = config
	}
	return state.config, nil
}

// NewAssetStorage opens the object store selected by the configuration, or
// returns nil for the "none" backend.
func NewAssetStorage(ctx context.Context, config *cloud.Config, clients *cloud.ServiceClients) (storage.Storage, error) {
	switch config.Storage.Backend {
	case "", "none":
		return nil, nil
	case "minio":
		return storage.NewMinIO(ctx, config.Storage.MinIO)
	case "gcs":
		return storage.NewGCS(clients.StorageClient, config.Storage.GCS.Bucket, config.Application.SignerServiceAccountEmail, clients.IAMClient)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", config.Storage.Backend)
	}
}

// InitState creates the cloud clients, stores and the pipeline runner.
func InitState(ctx context.Context, config *cloud.Config) error {
	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		return err
	}
	state.cloud = cloudClients

	assets, err := NewAssetStorage(ctx, config, cloudClients)
	if err != nil {
		return err
	}
	publisher := storage.NewPublisher(assets, config.Storage.KeyPrefix, config.Storage.PresignTTL())
	if !publisher.Enabled() {
		slog.Warn("no asset storage configured, narration is sent inline and merging needs a merge endpoint")
	}
	state.factory = services.NewStudioFactory(config, cloudClients, publisher)

	runs, err := store.New(ctx, config.RunStore, cloudClients.BigQueryClient)
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}
	state.runs = runs

	audio, err := cache.New(ctx, config.Cache)
	if err != nil {
		return fmt.Errorf("failed to open audio cache: %w", err)
	}
	if memory, ok := audio.(*cache.MemoryAudioCache); ok {
		memory.StartJanitor(ctx, config.Cache.SweepEvery())
	}
	state.audio = audio

	state.runner = workflow.NewRunner(ctx, audio, runs, config.Pipeline.MaxConcurrentRuns, workflow.Options{
		Duration:           config.Pipeline.DefaultDuration,
		AspectRatio:        config.Pipeline.DefaultAspectRatio,
		EvictAudioOnFinish: config.Pipeline.EvictAudioOnFinish,
	})

	SetupListeners(ctx, config, cloudClients)
	slog.Info("state initialized",
		"run_store", config.RunStore.Backend,
		"cache", config.Cache.Backend,
		"storage", config.Storage.Backend,
		"vision", config.Vision.Backend)
	return nil
}

// sceneStudios adapts the factory for the job listeners.
func sceneStudios(factory *services.StudioFactory) workflow.StudioFunc {
	return func(keys cloud.APIKeys) (services.SceneStudio, error) {
		studio, err := factory.ForKeys(keys)
		if err != nil {
			return nil, err
		}
		return studio, nil
	}
}

// CloseState releases every resource opened by InitState.
func CloseState() {
	for _, c := range []interface{}{state.runs, state.audio} {
		if closer, ok := c.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				slog.Warn("failed to close resource", "error", err)
			}
		}
	}
	state.cloud.Close()
}
