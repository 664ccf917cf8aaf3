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

// Package workflow defines the high-level orchestrations, combining the
// pipeline commands into coherent chains. This file holds the chain of a
// single scene.
package workflow

import (
	"fmt"

	"github.com/jaycherian/movielab/internal/cache"
	"github.com/jaycherian/movielab/internal/core/commands"
	"github.com/jaycherian/movielab/internal/core/cor"
	"github.com/jaycherian/movielab/internal/core/model"
	"github.com/jaycherian/movielab/internal/core/services"
)

// SceneWorkflow runs the four tracked steps of one scene:
//
//  1. narration of the subtitle (cached per session and scene index)
//  2. video generation from the current seed image
//  3. lip-sync of the clip with the narration
//  4. the hand-off step: last frame extraction for every scene but the last,
//     the merge (or a no-op tick for single scene runs) for the last one
type SceneWorkflow struct {
	cor.BaseCommand
	chain cor.Chain
}

// SceneWorkflowConfig holds what a scene chain is built from.
type SceneWorkflowConfig struct {
	Studio      services.SceneStudio
	AudioCache  cache.AudioCache
	Index       int
	Total       int
	Scene       model.Scene
	Duration    string
	AspectRatio string
}

func NewSceneWorkflow(config SceneWorkflowConfig) *SceneWorkflow {
	w := &SceneWorkflow{BaseCommand: *cor.NewBaseCommand(fmt.Sprintf("scene-%d", config.Index+1))}
	w.initializeChain(config)
	return w
}

func (w *SceneWorkflow) initializeChain(config SceneWorkflowConfig) {
	out := cor.NewBaseChain(w.GetName())

	out.AddCommand(commands.NewNarrationCommand(commands.KindNarration, config.Studio, config.AudioCache, config.Index, config.Total, config.Scene))
	out.AddCommand(commands.NewVideoGenerationCommand(commands.KindVideo, config.Studio, config.Index, config.Total, config.Scene, config.Duration, config.AspectRatio))
	out.AddCommand(commands.NewLipSyncCommand(commands.KindLipSync, config.Studio, config.Index, config.Total))

	switch {
	case config.Index < config.Total-1:
		out.AddCommand(commands.NewFrameExtractionCommand(commands.KindFrame, config.Studio, config.Index, config.Total))
	case config.Total > 1:
		out.AddCommand(commands.NewMergeCommand(commands.KindMerge, config.Studio, config.Total))
	default:
		out.AddCommand(commands.NewSkipMergeCommand(commands.KindFinalize, config.Total))
	}

	w.chain = out
}

// OnStepComplete forwards listener to the scene chain.
func (w *SceneWorkflow) OnStepComplete(listener cor.StepListener) *SceneWorkflow {
	w.chain.OnStepComplete(listener)
	return w
}

// Steps returns the commands of the scene in execution order.
func (w *SceneWorkflow) Steps() []cor.Command {
	if chain, ok := w.chain.(*cor.BaseChain); ok {
		return chain.Commands()
	}
	return nil
}

func (w *SceneWorkflow) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil && commands.RunOf(context) != nil
}

func (w *SceneWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}
