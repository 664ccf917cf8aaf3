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

package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/zeebo/assert"
)

func TestImageAnalysisNormalize(t *testing.T) {
	a := ImageAnalysis{Gender: " Male", Age: "OLD "}
	assert.True(t, a.Normalize())
	assert.Equal(t, a, ImageAnalysis{Gender: GenderMale, Age: AgeOld})

	bad := ImageAnalysis{Gender: "robot", Age: "young"}
	assert.False(t, bad.Normalize())

	assert.Equal(t, DefaultImageAnalysis(), ImageAnalysis{Gender: GenderFemale, Age: AgeYoung})
}

func TestSceneValid(t *testing.T) {
	assert.True(t, Scene{Prompt: "a walk", Subtitle: "hello"}.Valid())
	assert.False(t, Scene{Prompt: "  ", Subtitle: "hello"}.Valid())
	assert.False(t, Scene{Prompt: "a walk"}.Valid())
}

func TestClipOptions(t *testing.T) {
	assert.True(t, ValidDuration("5"))
	assert.True(t, ValidDuration("10"))
	assert.False(t, ValidDuration("7"))
	assert.True(t, ValidAspectRatio("9:16"))
	assert.False(t, ValidAspectRatio("4:3"))
}

func TestAudioDataURI(t *testing.T) {
	assert.Equal(t, Audio{Base64: "AAA"}.DataURI(), "data:audio/mpeg;base64,AAA")
	assert.Equal(t, Audio{Base64: "AAA", MIMEType: "audio/wav"}.DataURI(), "data:audio/wav;base64,AAA")
}

func TestVoiceLabel(t *testing.T) {
	v := Voice{Labels: map[string]string{"gender": " Female "}}
	assert.Equal(t, v.Label("gender"), "female")
	assert.Equal(t, v.Label("age"), "")
	assert.Equal(t, Voice{}.Label("gender"), "")
}

func TestNewPipelineRun(t *testing.T) {
	run := NewPipelineRun("", []Scene{{Prompt: "p", Subtitle: "s"}, {Prompt: "p2", Subtitle: "s2"}}, "5", "16:9")
	assert.Equal(t, run.Status, RunPending)
	assert.Equal(t, run.TotalSteps, 2*StepsPerScene)
	assert.True(t, run.SessionID != "")
	assert.True(t, run.ID != run.SessionID)
	assert.False(t, run.Finished())

	clone := run.Clone()
	clone.Scenes[0].Prompt = "changed"
	assert.Equal(t, run.Scenes[0].Prompt, "p")
}

func TestExampleSuggestionIsValidJSON(t *testing.T) {
	out := ExampleJSON(GetExampleSuggestion())
	var parsed SceneSuggestion
	assert.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.True(t, parsed.Subtitles != "")
	assert.True(t, len(strings.Fields(parsed.Subtitles)) <= 15)
}
