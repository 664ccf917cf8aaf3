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

	"github.com/jaycherian/movielab/internal/cache"
	"github.com/jaycherian/movielab/internal/core/cor"
	"github.com/jaycherian/movielab/internal/core/model"
	"github.com/jaycherian/movielab/internal/core/services"
)

// NarrationCommand produces the voice-over of one scene. A clip cached for
// the same session, scene index and subtitle is reused instead of calling the
// speech provider again.
type NarrationCommand struct {
	sceneStep
	studio services.SceneStudio
	cache  cache.AudioCache
	scene  model.Scene
}

func NewNarrationCommand(name string, studio services.SceneStudio, audioCache cache.AudioCache, index int, total int, scene model.Scene) *NarrationCommand {
	return &NarrationCommand{sceneStep: newSceneStep(name, index, total), studio: studio, cache: audioCache, scene: scene}
}

func (c *NarrationCommand) Kind() string { return KindNarration }

func (c *NarrationCommand) Label() string {
	return fmt.Sprintf("Generating voice-over audio for Scene %d of %d", c.Scene(), c.total)
}

func (c *NarrationCommand) Execute(context cor.Context) {
	ctx := context.GetContext()
	run := RunOf(context)

	audio, hit, err := cache.Lookup(ctx, c.cache, run.SessionID, c.index, c.scene.Subtitle)
	if err != nil {
		slog.Warn("audio cache lookup failed", "session", run.SessionID, "scene", c.Scene(), "error", err)
	}
	if hit {
		slog.Debug("reusing cached narration", "session", run.SessionID, "scene", c.Scene())
	} else {
		source, _ := context.Get(ParamSourceImage).(string)
		audio, err = c.studio.Narrate(ctx, c.scene.Subtitle, source)
		if err != nil {
			c.failStep(context, "generate audio", err)
			return
		}
		if err := c.cache.Put(ctx, run.SessionID, c.index, audio); err != nil {
			slog.Warn("failed to cache narration", "session", run.SessionID, "scene", c.Scene(), "error", err)
		}
	}

	context.Add(ParamAudio, audio)
	c.Succeed(context, nil)
}
