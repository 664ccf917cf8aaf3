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

package commands

import (
	"fmt"
	"log/slog"

	"github.com/jaycherian/movielab/internal/core/cor"
	"github.com/jaycherian/movielab/internal/core/services"
)

// FrameExtractionCommand replaces the seed image with the last frame of the
// synced clip, so the next scene starts where this one ended.
//
// A failed extraction does not fail the run: the previous seed stays in
// place and a warning is recorded on the run. Cancellation still fails.
type FrameExtractionCommand struct {
	sceneStep
	studio services.SceneStudio
}

func NewFrameExtractionCommand(name string, studio services.SceneStudio, index int, total int) *FrameExtractionCommand {
	return &FrameExtractionCommand{sceneStep: newSceneStep(name, index, total), studio: studio}
}

func (c *FrameExtractionCommand) Kind() string { return KindFrame }

func (c *FrameExtractionCommand) Label() string {
	return fmt.Sprintf("Processing transition frame from Scene %d", c.Scene())
}

func (c *FrameExtractionCommand) Execute(context cor.Context) {
	synced, _ := context.Get(ParamSynced).(string)
	if synced == "" {
		c.failStep(context, "extract frame", fmt.Errorf("%w: synced clip", ErrMissingInput))
		return
	}
	ctx := context.GetContext()
	run := RunOf(context)

	frame, err := c.studio.ExtractFrame(ctx, synced)
	if err != nil {
		if ctx.Err() != nil {
			c.failStep(context, "extract frame", err)
			return
		}
		warning := fmt.Sprintf("frame extraction failed for scene %d, reusing the previous image", c.Scene())
		slog.Warn(warning, "run_id", run.ID, "error", err)
		run.Warnings = append(run.Warnings, warning)
		c.Succeed(context, nil)
		return
	}

	context.Add(ParamSeed, frame)
	c.Succeed(context, nil)
}
