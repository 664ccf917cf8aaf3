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

package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jaycherian/movielab/internal/cloud"
	"github.com/jaycherian/movielab/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	config := cloud.NewConfig().Providers.ElevenLabs
	config.BaseURL = srv.URL
	return New("el-key", config, srv.Client(), cloud.NewRateLimiter(0))
}

func TestListVoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/voices", r.URL.Path)
		assert.Equal(t, "el-key", r.Header.Get("xi-api-key"))
		_, _ = w.Write([]byte(`{"voices":[{"voice_id":"v1","name":"Rachel","labels":{"gender":"female","age":"young"}}]}`))
	})

	voices, err := client.ListVoices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 1)
	assert.Equal(t, "v1", voices[0].ID)
	assert.Equal(t, "female", voices[0].Label("gender"))
}

func TestSynthesizeSendsVoiceSettings(t *testing.T) {
	var got speechRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/text-to-speech/voice-1", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3mp3"))
	})

	audio, err := client.Synthesize(context.Background(), "voice-1", "Hello there")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3mp3"), audio)
	assert.Equal(t, "Hello there", got.Text)
	assert.Equal(t, "eleven_multilingual_v2", got.ModelID)
	assert.Equal(t, voiceSettings{Stability: 0.5, SimilarityBoost: 0.75, Style: 1.0, UseSpeakerBoost: true}, got.VoiceSettings)
}

func TestSynthesizeEmptyBodyIsAnError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	_, err := client.Synthesize(context.Background(), "voice-1", "Hello")
	assert.ErrorIs(t, err, providers.ErrEmptyResponse)
}

func TestSynthesizeUpstreamFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"invalid api key"}`))
	})

	_, err := client.Synthesize(context.Background(), "voice-1", "Hello")
	var upstream *providers.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusUnauthorized, upstream.Status)
	assert.Contains(t, upstream.Body, "invalid api key")
}
