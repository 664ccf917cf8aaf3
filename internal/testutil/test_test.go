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

package testutil

import (
	"encoding/json"
	"testing"

	"github.com/jaycherian/movielab/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigLayersTestRuntime(t *testing.T) {
	config := GetConfig()

	assert.Equal(t, "movielab-test", config.Application.Name)
	assert.Equal(t, 2, config.Pipeline.MaxConcurrentRuns)
	assert.True(t, config.Pipeline.EvictAudioOnFinish)
	// From the base file.
	assert.Equal(t, "fal-ai/latentsync", config.Providers.Fal.LipSyncApp)
	// From the built-in defaults.
	assert.NotEmpty(t, config.Pipeline.FallbackSubtitle)
	assert.Same(t, config, GetConfig())
}

func TestPipelineJobText(t *testing.T) {
	var job struct {
		SessionID string `json:"sessionId"`
		Image     string `json:"image"`
		Scenes    []struct {
			Prompt   string `json:"prompt"`
			Subtitle string `json:"subtitle"`
		} `json:"scenes"`
	}
	require.NoError(t, json.Unmarshal([]byte(GetTestPipelineJobText("s-1", 3)), &job))
	assert.Equal(t, "s-1", job.SessionID)
	assert.Len(t, job.Scenes, 3)

	mimeType, data, err := media.DecodeImage(job.Image)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, SamplePNG, data)
}
