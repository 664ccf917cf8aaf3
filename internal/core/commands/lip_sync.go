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
	"github.com/jaycherian/movielab/internal/core/model"
	"github.com/jaycherian/movielab/internal/core/services"
)

// LipSyncCommand aligns the scene clip with its narration.
type LipSyncCommand struct {
	sceneStep
	studio services.SceneStudio
}

func NewLipSyncCommand(name string, studio services.SceneStudio, index int, total int) *LipSyncCommand {
	return &LipSyncCommand{sceneStep: newSceneStep(name, index, total), studio: studio}
}

func (c *LipSyncCommand) Kind() string { return KindLipSync }

func (c *LipSyncCommand) Label() string {
	return fmt.Sprintf("Synchronizing lip movements for Scene %d of %d", c.Scene(), c.total)
}

func (c *LipSyncCommand) Execute(context cor.Context) {
	audio, hasAudio := context.Get(ParamAudio).(model.Audio)
	clip, hasClip := context.Get(ParamClip).(model.GeneratedVideo)
	if !hasAudio || !hasClip {
		c.failStep(context, "sync lip movement", fmt.Errorf("%w: narration and clip", ErrMissingInput))
		return
	}
	run := RunOf(context)

	synced, err := c.studio.SyncNarration(context.GetContext(), run.SessionID, clip.URL, audio)
	if err != nil {
		c.failStep(context, "sync lip movement", err)
		return
	}
	if synced == "" {
		c.failStep(context, "sync lip movement", ErrNoVideoURL)
		return
	}

	run.SyncedVideoURLs = append(run.SyncedVideoURLs, synced)
	context.Add(ParamSynced, synced)
	c.Succeed(context, nil)
}
