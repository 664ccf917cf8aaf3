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

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/movielab/internal/core/model"
	"github.com/jaycherian/movielab/internal/testutil"
)

const samplePlan = `session: harbour-story
image: keeper.png
duration: "5"
aspectRatio: "16:9"
scenes:
  - prompt: A lighthouse keeper looks out to sea
    subtitle: Every night I keep the light burning.
  - prompt: A ship appears on the horizon
    subtitle: And tonight someone is coming home.
`

func writePlan(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keeper.png"), testutil.SamplePNG, 0o644))
	path := filepath.Join(dir, "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPlan(t *testing.T) {
	plan, err := LoadPlan(writePlan(t, samplePlan))
	require.NoError(t, err)
	assert.Equal(t, "harbour-story", plan.Session)
	require.Len(t, plan.Scenes, 2)
	assert.Equal(t, "A ship appears on the horizon", plan.Scenes[1].Prompt)
	assert.NoError(t, plan.Validate())

	body, err := plan.Request()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(body["image"].(string), "data:image/png;base64,"))
}

func TestLoadPlanRejectsUnknownFields(t *testing.T) {
	_, err := LoadPlan(writePlan(t, samplePlan+"colour: blue\n"))
	assert.Error(t, err)
}

func TestPlanValidate(t *testing.T) {
	plan := &Plan{Duration: "7", AspectRatio: "4:3", Scenes: []model.Scene{{Prompt: "only a prompt"}}}
	err := plan.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image is required")
	assert.Contains(t, err.Error(), "duration must be one of 5, 10")
	assert.Contains(t, err.Error(), "aspectRatio must be one of 16:9, 9:16, 1:1")
	assert.Contains(t, err.Error(), "scene 1 needs a prompt and a subtitle")

	assert.ErrorContains(t, (&Plan{Image: "a.png"}).Validate(), "at least one scene is required")
}

func TestValidateCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand(http.DefaultClient)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"validate", writePlan(t, samplePlan)})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "plan ok: 2 scenes")
}

type fakeServer struct {
	submitted map[string]interface{}
	headers   http.Header
	final     model.PipelineRun
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/pipelines":
		f.headers = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&f.submitted); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if f.headers.Get("x-fal-key") == "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"code":"MISSING_API_KEY","message":"Fal API key is required"}}`)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{"runId":"run-1","sessionId":"harbour-story"}`)
	case r.URL.Path == "/api/pipelines/run-1/events":
		w.Header().Set("Content-Type", "text/event-stream")
		pending, _ := json.Marshal(model.PipelineRun{ID: "run-1", Status: model.RunRunning})
		fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", pending)
		for i := 1; i <= 8; i++ {
			event, _ := json.Marshal(model.ProgressEvent{RunID: "run-1", Completed: i, Total: 8, Percent: float64(i) * 12.5, Step: fmt.Sprintf("step %d", i)})
			fmt.Fprintf(w, "event: progress\ndata: %s\n\n", event)
		}
	case r.URL.Path == "/api/pipelines/run-1":
		_ = json.NewEncoder(w).Encode(f.final)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestRunCommand(t *testing.T) {
	fake := &fakeServer{final: model.PipelineRun{
		ID:              "run-1",
		Status:          model.RunSucceeded,
		SyncedVideoURLs: []string{"https://cdn/1.mp4", "https://cdn/2.mp4"},
		MergedVideoURL:  "https://cdn/final.mp4",
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	t.Setenv("FAL_KEY", "fal-test")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	var out bytes.Buffer
	cmd := newRootCommand(srv.Client())
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"run", writePlan(t, samplePlan), "--server", srv.URL})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "Bearer sk-test", fake.headers.Get("Authorization"))
	assert.Equal(t, "harbour-story", fake.submitted["sessionId"])
	assert.Len(t, fake.submitted["scenes"], 2)

	text := out.String()
	assert.Contains(t, text, "run run-1 started")
	assert.Contains(t, text, "[100%] step 8")
	assert.Contains(t, text, "scene 2: https://cdn/2.mp4")
	assert.Contains(t, text, "final video: https://cdn/final.mp4")
}

func TestRunCommandReportsServerError(t *testing.T) {
	srv := httptest.NewServer(&fakeServer{})
	defer srv.Close()
	t.Setenv("FAL_KEY", "")

	cmd := newRootCommand(srv.Client())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", writePlan(t, samplePlan), "--server", srv.URL})
	err := cmd.Execute()
	assert.ErrorContains(t, err, "server answered 400: Fal API key is required")
}

func TestPrintResultFailure(t *testing.T) {
	var out bytes.Buffer
	err := printResult(&out, &model.PipelineRun{Status: model.RunFailed, Error: "failed to generate video", Warnings: []string{"merge skipped"}})
	assert.EqualError(t, err, "failed to generate video")
	assert.Contains(t, out.String(), "warning: merge skipped")
}
