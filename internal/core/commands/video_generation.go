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
	"errors"
	"fmt"

	"github.com/jaycherian/movielab/internal/core/cor"
	"github.com/jaycherian/movielab/internal/core/model"
	"github.com/jaycherian/movielab/internal/core/services"
)

// ErrNoVideoURL is returned when the video provider answered without a clip.
var ErrNoVideoURL = errors.New("no valid video url")

// VideoGenerationCommand generates the clip of one scene from the current
// seed image: the upload for the first scene, the last frame of the previous
// clip afterwards.
type VideoGenerationCommand struct {
	sceneStep
	studio      services.SceneStudio
	scene       model.Scene
	duration    string
	aspectRatio string
}

func NewVideoGenerationCommand(name string, studio services.SceneStudio, index int, total int, scene model.Scene, duration string, aspectRatio string) *VideoGenerationCommand {
	return &VideoGenerationCommand{
		sceneStep:   newSceneStep(name, index, total),
		studio:      studio,
		scene:       scene,
		duration:    duration,
		aspectRatio: aspectRatio,
	}
}

func (c *VideoGenerationCommand) Kind() string { return KindVideo }

func (c *VideoGenerationCommand) Label() string {
	return fmt.Sprintf("Creating AI-generated video for Scene %d of %d", c.Scene(), c.total)
}

func (c *VideoGenerationCommand) Execute(context cor.Context) {
	seed, ok := context.Get(ParamSeed).(model.Image)
	if !ok || seed.Empty() {
		c.failStep(context, "generate video", fmt.Errorf("%w: seed image", ErrMissingInput))
		return
	}
	run := RunOf(context)

	clip, err := c.studio.GenerateClip(context.GetContext(), run.SessionID, seed, c.scene, c.duration, c.aspectRatio)
	if err != nil {
		c.failStep(context, "generate video", err)
		return
	}
	if clip.URL == "" {
		c.failStep(context, "generate video", ErrNoVideoURL)
		return
	}

	run.GeneratedVideos = append(run.GeneratedVideos, clip)
	context.Add(ParamClip, clip)
	c.Succeed(context, nil)
}
