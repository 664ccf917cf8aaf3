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
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jaycherian/movielab/internal/cache"
	"github.com/jaycherian/movielab/internal/core/cor"
	"github.com/jaycherian/movielab/internal/core/model"
	"github.com/jaycherian/movielab/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStudio struct {
	narrations int
	narrateErr error
	clipErr    error
	clipURL    string
	syncErr    error
	frameErr   error
	mergeErr   error
	seeds      []model.Image
	merged     []string
}

func (f *fakeStudio) Narrate(_ context.Context, text string, _ string) (model.Audio, error) {
	if f.narrateErr != nil {
		return model.Audio{}, f.narrateErr
	}
	f.narrations++
	return model.Audio{Base64: "YXVkaW8=", MIMEType: "audio/mpeg", Text: text}, nil
}

func (f *fakeStudio) GenerateClip(_ context.Context, _ string, seed model.Image, scene model.Scene, _ string, _ string) (model.GeneratedVideo, error) {
	if f.clipErr != nil {
		return model.GeneratedVideo{}, f.clipErr
	}
	f.seeds = append(f.seeds, seed)
	url := f.clipURL
	if url == "" {
		url = fmt.Sprintf("https://fal.test/clip-%d.mp4", len(f.seeds))
	}
	return model.GeneratedVideo{URL: url, Description: scene.Prompt, Subtitles: scene.Subtitle}, nil
}

func (f *fakeStudio) SyncNarration(_ context.Context, _ string, videoURL string, _ model.Audio) (string, error) {
	if f.syncErr != nil {
		return "", f.syncErr
	}
	return videoURL + "?synced", nil
}

func (f *fakeStudio) ExtractFrame(_ context.Context, videoURL string) (model.Image, error) {
	if f.frameErr != nil {
		return model.Image{}, f.frameErr
	}
	return model.Image{MIMEType: "image/jpeg", Data: []byte(videoURL)}, nil
}

func (f *fakeStudio) Merge(_ context.Context, urls []string) (string, error) {
	if f.mergeErr != nil {
		return "", f.mergeErr
	}
	f.merged = append([]string(nil), urls...)
	return "https://merge.test/final.mp4", nil
}

var testScene = model.Scene{Prompt: "a knight walks into the sunset", Subtitle: "Farewell, old friend."}

func newRunContext(t *testing.T) (cor.Context, *model.PipelineRun) {
	t.Helper()
	run := model.NewPipelineRun("session-1", []model.Scene{testScene, testScene}, "5", "16:9")
	chCtx := cor.NewBaseContext()
	chCtx.SetContext(context.Background())
	chCtx.Add(ParamRun, run)
	chCtx.Add(ParamSeed, model.Image{MIMEType: "image/png", Data: []byte("upload")})
	chCtx.Add(ParamSourceImage, "dXBsb2Fk")
	return chCtx, run
}

func TestStepErrorPublicMessage(t *testing.T) {
	err := &StepError{Action: "generate video", Scene: 2, Err: errors.New("fal: 502")}
	assert.Equal(t, "failed to generate video for scene 2", err.Public())
	assert.Equal(t, "failed to generate video for scene 2: fal: 502", err.Error())

	merged := &StepError{Action: "merge videos", Err: errors.New("boom")}
	assert.Equal(t, "failed to merge videos", merged.Public())
}

func TestStepsRequireRun(t *testing.T) {
	chCtx := cor.NewBaseContext()
	chCtx.SetContext(context.Background())
	assert.False(t, NewLipSyncCommand("lipsync", &fakeStudio{}, 0, 1).IsExecutable(chCtx))
	assert.False(t, NewPersistRunCommand("persist", store.NewMemoryRunStore()).IsExecutable(chCtx))
}

func TestNarrationUsesCache(t *testing.T) {
	studio := &fakeStudio{}
	audioCache := cache.NewMemoryAudioCache(time.Hour)
	chCtx, _ := newRunContext(t)

	cmd := NewNarrationCommand("narration", studio, audioCache, 0, 2, testScene)
	require.True(t, cmd.IsExecutable(chCtx))
	cmd.Execute(chCtx)
	require.False(t, chCtx.HasErrors())
	cmd.Execute(chCtx)
	require.False(t, chCtx.HasErrors())

	assert.Equal(t, 1, studio.narrations)
	audio, ok := chCtx.Get(ParamAudio).(model.Audio)
	require.True(t, ok)
	assert.Equal(t, "YXVkaW8=", audio.Base64)
	assert.Equal(t, "Generating voice-over audio for Scene 1 of 2", cmd.Label())
	assert.Equal(t, KindNarration, cmd.Kind())
}

func TestNarrationCacheMissOnChangedSubtitle(t *testing.T) {
	studio := &fakeStudio{}
	audioCache := cache.NewMemoryAudioCache(time.Hour)
	chCtx, _ := newRunContext(t)

	NewNarrationCommand("narration", studio, audioCache, 0, 2, testScene).Execute(chCtx)
	edited := model.Scene{Prompt: testScene.Prompt, Subtitle: "A different line."}
	NewNarrationCommand("narration", studio, audioCache, 0, 2, edited).Execute(chCtx)

	require.False(t, chCtx.HasErrors())
	assert.Equal(t, 2, studio.narrations)
}

func TestNarrationFailure(t *testing.T) {
	studio := &fakeStudio{narrateErr: errors.New("elevenlabs: 500")}
	chCtx, _ := newRunContext(t)

	NewNarrationCommand("narration", studio, cache.NewMemoryAudioCache(time.Hour), 1, 2, testScene).Execute(chCtx)

	var stepErr *StepError
	require.ErrorAs(t, chCtx.FirstError(), &stepErr)
	assert.Equal(t, "failed to generate audio for scene 2", stepErr.Public())
}

func TestVideoGenerationAppendsClip(t *testing.T) {
	studio := &fakeStudio{}
	chCtx, run := newRunContext(t)

	cmd := NewVideoGenerationCommand("video", studio, 0, 2, testScene, "5", "16:9")
	cmd.Execute(chCtx)

	require.False(t, chCtx.HasErrors())
	require.Len(t, run.GeneratedVideos, 1)
	assert.Equal(t, testScene.Prompt, run.GeneratedVideos[0].Description)
	assert.Equal(t, []byte("upload"), studio.seeds[0].Data)
	assert.Equal(t, "Creating AI-generated video for Scene 1 of 2", cmd.Label())
}

func TestVideoGenerationNeedsSeed(t *testing.T) {
	studio := &fakeStudio{}
	chCtx, run := newRunContext(t)
	chCtx.Remove(ParamSeed)

	NewVideoGenerationCommand("video", studio, 0, 2, testScene, "5", "16:9").Execute(chCtx)

	assert.ErrorIs(t, chCtx.FirstError(), ErrMissingInput)
	assert.Empty(t, run.GeneratedVideos)
}

func TestLipSyncNeedsNarrationAndClip(t *testing.T) {
	chCtx, _ := newRunContext(t)
	NewLipSyncCommand("lipsync", &fakeStudio{}, 0, 2).Execute(chCtx)
	assert.ErrorIs(t, chCtx.FirstError(), ErrMissingInput)
}

func TestLipSyncAppendsURL(t *testing.T) {
	studio := &fakeStudio{}
	chCtx, run := newRunContext(t)
	chCtx.Add(ParamAudio, model.Audio{Base64: "YQ=="})
	chCtx.Add(ParamClip, model.GeneratedVideo{URL: "https://fal.test/clip-1.mp4"})

	NewLipSyncCommand("lipsync", studio, 0, 2).Execute(chCtx)

	require.False(t, chCtx.HasErrors())
	assert.Equal(t, []string{"https://fal.test/clip-1.mp4?synced"}, run.SyncedVideoURLs)
	assert.Equal(t, "https://fal.test/clip-1.mp4?synced", chCtx.Get(ParamSynced))
}

func TestLipSyncFailure(t *testing.T) {
	studio := &fakeStudio{syncErr: errors.New("sync: 500")}
	chCtx, _ := newRunContext(t)
	chCtx.Add(ParamAudio, model.Audio{Base64: "YQ=="})
	chCtx.Add(ParamClip, model.GeneratedVideo{URL: "https://fal.test/clip-1.mp4"})

	NewLipSyncCommand("lipsync", studio, 0, 2).Execute(chCtx)

	var stepErr *StepError
	require.ErrorAs(t, chCtx.FirstError(), &stepErr)
	assert.Equal(t, "failed to sync lip movement for scene 1", stepErr.Public())
}

func TestFrameExtractionReplacesSeed(t *testing.T) {
	chCtx, _ := newRunContext(t)
	chCtx.Add(ParamSynced, "https://fal.test/synced.mp4")

	cmd := NewFrameExtractionCommand("frame", &fakeStudio{}, 0, 2)
	cmd.Execute(chCtx)

	require.False(t, chCtx.HasErrors())
	seed := chCtx.Get(ParamSeed).(model.Image)
	assert.Equal(t, []byte("https://fal.test/synced.mp4"), seed.Data)
	assert.Equal(t, "Processing transition frame from Scene 1", cmd.Label())
}

func TestFrameExtractionFailureKeepsSeed(t *testing.T) {
	chCtx, run := newRunContext(t)
	chCtx.Add(ParamSynced, "https://fal.test/synced.mp4")

	NewFrameExtractionCommand("frame", &fakeStudio{frameErr: errors.New("ffmpeg: exit 1")}, 0, 2).Execute(chCtx)

	require.False(t, chCtx.HasErrors())
	seed := chCtx.Get(ParamSeed).(model.Image)
	assert.Equal(t, []byte("upload"), seed.Data)
	require.Len(t, run.Warnings, 1)
	assert.Contains(t, run.Warnings[0], "scene 1")
}

func TestFrameExtractionFailsWhenCancelled(t *testing.T) {
	chCtx, _ := newRunContext(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	chCtx.SetContext(ctx)
	chCtx.Add(ParamSynced, "https://fal.test/synced.mp4")

	NewFrameExtractionCommand("frame", &fakeStudio{frameErr: context.Canceled}, 0, 2).Execute(chCtx)

	assert.ErrorIs(t, chCtx.FirstError(), context.Canceled)
}

func TestMergeCommand(t *testing.T) {
	studio := &fakeStudio{}
	chCtx, run := newRunContext(t)
	run.SyncedVideoURLs = []string{"https://a.test/1.mp4", "https://a.test/2.mp4"}

	NewMergeCommand("merge", studio, 2).Execute(chCtx)

	require.False(t, chCtx.HasErrors())
	assert.Equal(t, "https://merge.test/final.mp4", run.MergedVideoURL)
	assert.Equal(t, run.SyncedVideoURLs, studio.merged)
}

func TestMergeCommandSkipsSingleClip(t *testing.T) {
	studio := &fakeStudio{}
	chCtx, run := newRunContext(t)
	run.SyncedVideoURLs = []string{"https://a.test/1.mp4"}

	NewMergeCommand("merge", studio, 2).Execute(chCtx)

	require.False(t, chCtx.HasErrors())
	assert.Empty(t, run.MergedVideoURL)
	assert.Nil(t, studio.merged)
}

func TestMergeCommandFailure(t *testing.T) {
	chCtx, run := newRunContext(t)
	run.SyncedVideoURLs = []string{"https://a.test/1.mp4", "https://a.test/2.mp4"}

	NewMergeCommand("merge", &fakeStudio{mergeErr: errors.New("merge: 500")}, 2).Execute(chCtx)

	var stepErr *StepError
	require.ErrorAs(t, chCtx.FirstError(), &stepErr)
	assert.Equal(t, "failed to merge videos", stepErr.Public())
}

func TestPersistRunMarksSucceeded(t *testing.T) {
	runs := store.NewMemoryRunStore()
	chCtx, run := newRunContext(t)
	require.NoError(t, runs.Create(context.Background(), run))

	NewPersistRunCommand("persist", runs).Execute(chCtx)

	require.False(t, chCtx.HasErrors())
	stored, err := runs.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunSucceeded, stored.Status)
}

func TestPersistRunUnknownRun(t *testing.T) {
	chCtx, run := newRunContext(t)

	NewPersistRunCommand("persist", store.NewMemoryRunStore()).Execute(chCtx)

	assert.ErrorIs(t, chCtx.FirstError(), store.ErrNotFound)
	assert.Equal(t, model.RunRunning, run.Status)
}
