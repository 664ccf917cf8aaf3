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
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jaycherian/movielab/internal/cache"
	"github.com/jaycherian/movielab/internal/core/commands"
	"github.com/jaycherian/movielab/internal/core/cor"
	"github.com/jaycherian/movielab/internal/core/model"
	"github.com/jaycherian/movielab/internal/core/services"
	"github.com/jaycherian/movielab/internal/store"
)

const (
	completeLabel  = "Video generation complete"
	failedLabel    = "Video generation failed"
	genericFailure = "failed to generate video"
	cancelledRun   = "video generation cancelled"
)

// Options tune a SceneGenerationWorkflow.
type Options struct {
	Duration           string // used when the run does not name one
	AspectRatio        string // used when the run does not name one
	EvictAudioOnFinish bool   // drop the session's cached narration after a successful run
	Listeners          []ProgressListener
}

// SceneGenerationWorkflow turns an image and a list of scenes into lip-synced
// clips and, for more than one scene, a merged video.
//
// Scenes run strictly one after another: the last frame of each synced clip
// seeds the next scene's video. The run is written to the run store after
// every completed step, and the first failing step aborts the run.
type SceneGenerationWorkflow struct {
	cor.BaseCommand
	studio  services.SceneStudio
	cache   cache.AudioCache
	store   store.RunStore
	options Options
}

func NewSceneGenerationWorkflow(studio services.SceneStudio, audioCache cache.AudioCache, runStore store.RunStore, options Options) *SceneGenerationWorkflow {
	return &SceneGenerationWorkflow{
		BaseCommand: *cor.NewBaseCommand("scene-generation-pipeline"),
		studio:      studio,
		cache:       audioCache,
		store:       runStore,
		options:     options,
	}
}

// ValidateScenes checks the inputs of a run.
func ValidateScenes(seed model.Image, scenes []model.Scene) error {
	if seed.Empty() {
		return fmt.Errorf("%w: an image is required", services.ErrInvalidInput)
	}
	if len(scenes) == 0 {
		return fmt.Errorf("%w: at least one scene is required", services.ErrInvalidInput)
	}
	for i, scene := range scenes {
		if !scene.Valid() {
			return fmt.Errorf("%w: scene %d needs a prompt and a subtitle", services.ErrInvalidInput, i+1)
		}
	}
	return nil
}

// Run executes the pipeline for run. The run must already exist in the store;
// its status, progress and outputs are updated as the pipeline advances.
func (w *SceneGenerationWorkflow) Run(ctx context.Context, run *model.PipelineRun, seed model.Image, scenes []model.Scene) (*model.PipelineResult, error) {
	if run == nil {
		return nil, fmt.Errorf("%w: run is required", services.ErrInvalidInput)
	}
	if err := ValidateScenes(seed, scenes); err != nil {
		return nil, err
	}
	if run.Duration == "" {
		run.Duration = w.options.Duration
	}
	if run.AspectRatio == "" {
		run.AspectRatio = w.options.AspectRatio
	}

	run.Scenes = scenes
	run.TotalSteps = len(scenes) * model.StepsPerScene
	run.Status = model.RunRunning
	run.UpdatedAt = time.Now().UTC()
	if err := w.store.Update(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to start run %s: %w", run.ID, err)
	}

	listeners := append([]ProgressListener{w.recordProgress(ctx, run)}, w.options.Listeners...)
	tracker := NewProgressTracker(run.ID, run.TotalSteps, listeners...)

	chCtx := cor.NewBaseContext()
	defer chCtx.Close()
	chCtx.SetContext(ctx)
	chCtx.Add(commands.ParamRun, run)
	chCtx.Add(commands.ParamSeed, seed)
	chCtx.Add(commands.ParamSourceImage, base64.StdEncoding.EncodeToString(seed.Data))

	slog.Info("starting scene generation", "run_id", run.ID, "session", run.SessionID, "scenes", len(scenes))
	w.buildChain(run, scenes, tracker).Execute(chCtx)

	if err := chCtx.FirstError(); err != nil {
		w.fail(ctx, run, tracker, err)
		return nil, err
	}

	if w.options.EvictAudioOnFinish {
		if err := w.cache.Evict(ctx, run.SessionID); err != nil {
			slog.Warn("failed to evict cached narration", "session", run.SessionID, "error", err)
		}
	}
	tracker.Finish(model.RunSucceeded, completeLabel, "")
	slog.Info("scene generation complete", "run_id", run.ID, "clips", len(run.SyncedVideoURLs), "merged", run.MergedVideoURL != "")

	return &model.PipelineResult{
		GeneratedVideos: append([]model.GeneratedVideo(nil), run.GeneratedVideos...),
		SyncedVideoURLs: append([]string(nil), run.SyncedVideoURLs...),
		MergedVideoURL:  run.MergedVideoURL,
		Warnings:        append([]string(nil), run.Warnings...),
	}, nil
}

func (w *SceneGenerationWorkflow) buildChain(run *model.PipelineRun, scenes []model.Scene, tracker *ProgressTracker) cor.Chain {
	onStep := func(_ cor.Context, command cor.Command) {
		if step, ok := command.(commands.TrackedStep); ok {
			tracker.Step(step.Label(), step.Kind())
		}
	}

	out := cor.NewBaseChain(w.GetName())
	for i, scene := range scenes {
		out.AddCommand(NewSceneWorkflow(SceneWorkflowConfig{
			Studio:      w.studio,
			AudioCache:  w.cache,
			Index:       i,
			Total:       len(scenes),
			Scene:       scene,
			Duration:    run.Duration,
			AspectRatio: run.AspectRatio,
		}).OnStepComplete(onStep))
	}
	out.AddCommand(commands.NewPersistRunCommand("persist-run", w.store))
	return out
}

// recordProgress mirrors every event onto the run and saves it. A failed
// save is logged and does not stop the pipeline.
func (w *SceneGenerationWorkflow) recordProgress(ctx context.Context, run *model.PipelineRun) ProgressListener {
	return func(event model.ProgressEvent) {
		if event.Status != model.RunRunning {
			return
		}
		run.CompletedSteps = event.Completed
		run.Progress = event.Percent
		run.CurrentStep = event.Step
		run.UpdatedAt = time.Now().UTC()
		if err := w.store.Update(ctx, run); err != nil {
			slog.Warn("failed to save run progress", "run_id", run.ID, "error", err)
		}
	}
}

func (w *SceneGenerationWorkflow) fail(ctx context.Context, run *model.PipelineRun, tracker *ProgressTracker, err error) {
	message := PublicError(ctx, err)
	slog.Error("scene generation failed", "run_id", run.ID, "error", err)

	run.Status = model.RunFailed
	run.Error = message
	run.UpdatedAt = time.Now().UTC()
	if err := w.store.Update(context.WithoutCancel(ctx), run); err != nil {
		slog.Warn("failed to save failed run", "run_id", run.ID, "error", err)
	}
	tracker.Finish(model.RunFailed, failedLabel, message)
}

// PublicError returns the message of a pipeline failure that is safe to
// show to clients.
func PublicError(ctx context.Context, err error) string {
	var stepErr *commands.StepError
	switch {
	case errors.As(err, &stepErr):
		return stepErr.Public()
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		return cancelledRun
	default:
		return genericFailure
	}
}
