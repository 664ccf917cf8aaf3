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

package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jaycherian/movielab/internal/cache"
	"github.com/jaycherian/movielab/internal/core/model"
	"github.com/jaycherian/movielab/internal/core/services"
	"github.com/jaycherian/movielab/internal/store"
)

// ErrBusy is returned when every pipeline slot is taken.
var ErrBusy = errors.New("too many pipeline runs in progress")

// Runner launches pipeline runs in the background, at most maxConcurrent at
// a time. Runs outlive the request that started them and stop when the
// runner's context is cancelled.
type Runner struct {
	ctx     context.Context
	cache   cache.AudioCache
	store   store.RunStore
	options Options
	slots   chan struct{}
	wg      sync.WaitGroup
}

func NewRunner(ctx context.Context, audioCache cache.AudioCache, runStore store.RunStore, maxConcurrent int, options Options) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Runner{
		ctx:     ctx,
		cache:   audioCache,
		store:   runStore,
		options: options,
		slots:   make(chan struct{}, maxConcurrent),
	}
}

// Store returns the run store the runner records runs in.
func (r *Runner) Store() store.RunStore {
	return r.store
}

// Cache returns the audio cache shared by the runs.
func (r *Runner) Cache() cache.AudioCache {
	return r.cache
}

// Start validates and records run, then executes it in a new goroutine. The
// caller must not touch run after Start returns without error.
func (r *Runner) Start(studio services.SceneStudio, run *model.PipelineRun, seed model.Image, listeners ...ProgressListener) error {
	if err := ValidateScenes(seed, run.Scenes); err != nil {
		return err
	}

	select {
	case r.slots <- struct{}{}:
	default:
		return ErrBusy
	}
	if err := r.store.Create(r.ctx, run); err != nil {
		<-r.slots
		return fmt.Errorf("failed to record run: %w", err)
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() { <-r.slots }()

		if _, err := r.Execute(r.ctx, studio, run, seed, listeners...); err != nil {
			slog.Warn("pipeline run ended with an error", "run_id", run.ID, "error", err)
		}
	}()
	return nil
}

// Execute runs an already recorded run on the calling goroutine.
func (r *Runner) Execute(ctx context.Context, studio services.SceneStudio, run *model.PipelineRun, seed model.Image, listeners ...ProgressListener) (*model.PipelineResult, error) {
	options := r.options
	options.Listeners = append(append([]ProgressListener(nil), r.options.Listeners...), listeners...)
	return NewSceneGenerationWorkflow(studio, r.cache, r.store, options).Run(ctx, run, seed, run.Scenes)
}

// Wait blocks until every started run has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}
