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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface for the scene pipeline.
// Every scene contributes four tracked steps: narration, video generation,
// lip-sync and a hand-off step (frame extraction, or the finalisation slot
// on the last scene).
//
// The commands share state through the cor.Context under the Param* keys
// rather than through CtxIn/CtxOut piping, since several steps need values
// produced two or three steps earlier (the narration is consumed by the
// lip-sync, after the video step).
package commands

import (
	"errors"
	"fmt"

	"github.com/jaycherian/movielab/internal/core/cor"
	"github.com/jaycherian/movielab/internal/core/model"
)

// Context keys shared by the pipeline commands.
const (
	ParamRun         = "__RUN__"          // *model.PipelineRun being executed
	ParamSeed        = "__SEED__"         // model.Image conditioning the next clip
	ParamSourceImage = "__SOURCE_IMAGE__" // base64 of the uploaded image, used for voice selection
	ParamAudio       = "__AUDIO__"        // model.Audio of the current scene
	ParamClip        = "__CLIP__"         // model.GeneratedVideo of the current scene
	ParamSynced      = "__SYNCED__"       // lip-synced clip URL of the current scene
)

// Step kinds, used as progress event kinds and metric labels.
const (
	KindNarration = "narration"
	KindVideo     = "video"
	KindLipSync   = "lipsync"
	KindFrame     = "frame"
	KindMerge     = "merge"
	KindFinalize  = "finalize"
)

// ErrMissingInput is returned when a step runs before the step producing its input.
var ErrMissingInput = errors.New("missing step input")

// TrackedStep is a command that counts towards pipeline progress.
type TrackedStep interface {
	cor.Command
	Kind() string
	Label() string
}

// StepError is the failure of one pipeline step. Public omits the cause so
// the message can be shown to clients.
type StepError struct {
	Action string
	Scene  int // 1-based, 0 when the step is not tied to a scene
	Err    error
}

func (e *StepError) Public() string {
	if e.Scene > 0 {
		return fmt.Sprintf("failed to %s for scene %d", e.Action, e.Scene)
	}
	return "failed to " + e.Action
}

func (e *StepError) Error() string {
	return e.Public() + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// sceneStep carries what every per-scene command needs.
type sceneStep struct {
	cor.BaseCommand
	index int // zero based scene index
	total int
}

func newSceneStep(name string, index int, total int) sceneStep {
	return sceneStep{BaseCommand: *cor.NewBaseCommand(name), index: index, total: total}
}

// Scene returns the 1-based scene number.
func (s *sceneStep) Scene() int {
	return s.index + 1
}

// IsExecutable requires the run in the context. Step inputs are checked in
// Execute so that a missing one is reported as a step failure.
func (s *sceneStep) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil && RunOf(context) != nil
}

func (s *sceneStep) failStep(context cor.Context, action string, err error) {
	s.Fail(context, &StepError{Action: action, Scene: s.Scene(), Err: err})
}

// RunOf returns the run stored in context, or nil.
func RunOf(context cor.Context) *model.PipelineRun {
	run, _ := context.Get(ParamRun).(*model.PipelineRun)
	return run
}
