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

package fal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jaycherian/movielab/internal/cloud"
	"github.com/jaycherian/movielab/internal/core/model"
	"github.com/jaycherian/movielab/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	srv         *httptest.Server
	polls       atomic.Int32
	pendingFor  int32
	finalStatus string
	result      string
	submitted   map[string]interface{}
	app         string
}

func newFakeQueue(t *testing.T, pendingFor int32, result string) *fakeQueue {
	q := &fakeQueue{pendingFor: pendingFor, finalStatus: StatusCompleted, result: result}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		n := q.polls.Add(1)
		status := StatusInQueue
		if n > 1 {
			status = StatusInProgress
		}
		if n > q.pendingFor {
			status = q.finalStatus
		}
		_, _ = fmt.Fprintf(w, `{"status":%q,"logs":[{"message":"step %d"}]}`, status, n)
	})
	mux.HandleFunc("/result", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(q.result))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Key fal-key", r.Header.Get("Authorization"))
		q.app = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&q.submitted))
		_, _ = fmt.Fprintf(w, `{"request_id":"req-1","status_url":"%s/status","response_url":"%s/result"}`, q.srv.URL, q.srv.URL)
	})
	q.srv = httptest.NewServer(mux)
	t.Cleanup(q.srv.Close)
	return q
}

func (q *fakeQueue) client() *Client {
	config := cloud.NewConfig().Providers.Fal
	config.QueueURL = q.srv.URL
	return New("fal-key", config, q.srv.Client(), cloud.NewRateLimiter(0)).WithPollInterval(5 * time.Millisecond)
}

func TestImageToVideoPollsUntilCompleted(t *testing.T) {
	q := newFakeQueue(t, 2, `{"video":{"url":"https://cdn.fal/clip.mp4"}}`)
	url, err := q.client().ImageToVideo(context.Background(), model.VideoRequest{
		ImageURL:    "https://img/seed.jpg",
		Prompt:      "she smiles",
		Duration:    "5",
		AspectRatio: "16:9",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.fal/clip.mp4", url)
	assert.Equal(t, int32(3), q.polls.Load())
	assert.Equal(t, "/fal-ai/kling-video/v1.6/pro/image-to-video", q.app)
	assert.Equal(t, "https://img/seed.jpg", q.submitted["image_url"])
	assert.Equal(t, "5", q.submitted["duration"])
	assert.Equal(t, "16:9", q.submitted["aspect_ratio"])
}

func TestImageToVideoWithoutURLFails(t *testing.T) {
	q := newFakeQueue(t, 0, `{"video":{}}`)

	_, err := q.client().ImageToVideo(context.Background(), model.VideoRequest{ImageURL: "x", Prompt: "y"})
	assert.ErrorIs(t, err, providers.ErrEmptyResponse)
}

func TestLipSyncSendsGuidanceScale(t *testing.T) {
	q := newFakeQueue(t, 0, `{"video":{"url":"https://cdn.fal/synced.mp4"}}`)

	url, err := q.client().LipSync(context.Background(), "https://cdn.fal/clip.mp4", "data:audio/mpeg;base64,QUJD")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.fal/synced.mp4", url)
	assert.Equal(t, "/fal-ai/latentsync", q.app)
	assert.Equal(t, float64(1), q.submitted["guidance_scale"])
	assert.Equal(t, "data:audio/mpeg;base64,QUJD", q.submitted["audio_url"])
}

func TestRunFailsOnUnknownStatus(t *testing.T) {
	q := newFakeQueue(t, 0, `{}`)
	q.finalStatus = "FAILED"

	err := q.client().Run(context.Background(), "some/app", map[string]string{}, &struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FAILED")
}

func TestRunStopsAtDeadline(t *testing.T) {
	q := newFakeQueue(t, 1000, `{}`)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := q.client().Run(ctx, "some/app", map[string]string{}, &struct{}{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, q.polls.Load(), int32(1))
}
