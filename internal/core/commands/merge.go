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

	"github.com/jaycherian/movielab/internal/core/cor"
	"github.com/jaycherian/movielab/internal/core/services"
)

// MergeCommand joins the synced clips of the run into the final video. It
// fills the hand-off slot of the last scene when there is more than one scene.
type MergeCommand struct {
	sceneStep
	studio services.SceneStudio
}

func NewMergeCommand(name string, studio services.SceneStudio, total int) *MergeCommand {
	return &MergeCommand{sceneStep: newSceneStep(name, total-1, total), studio: studio}
}

func (c *MergeCommand) Kind() string { return KindMerge }

func (c *MergeCommand) Label() string {
	return fmt.Sprintf("Merging %d scenes into the final video", c.total)
}

func (c *MergeCommand) Execute(context cor.Context) {
	run := RunOf(context)
	if len(run.SyncedVideoURLs) < 2 {
		c.Succeed(context, nil)
		return
	}

	merged, err := c.studio.Merge(context.GetContext(), run.SyncedVideoURLs)
	if err != nil {
		c.Fail(context, &StepError{Action: "merge videos", Err: err})
		return
	}
	if merged == "" {
		c.Fail(context, &StepError{Action: "merge videos", Err: ErrNoVideoURL})
		return
	}
	run.MergedVideoURL = merged
	c.Succeed(context, nil)
}

// SkipMergeCommand fills the hand-off slot of a single scene run, where there
// is neither a next scene nor anything to merge.
type SkipMergeCommand struct {
	sceneStep
}

func NewSkipMergeCommand(name string, total int) *SkipMergeCommand {
	return &SkipMergeCommand{sceneStep: newSceneStep(name, total-1, total)}
}

func (c *SkipMergeCommand) Kind() string { return KindFinalize }

func (c *SkipMergeCommand) Label() string {
	return "Video generation complete"
}

func (c *SkipMergeCommand) Execute(context cor.Context) {
	c.Succeed(context, nil)
}
