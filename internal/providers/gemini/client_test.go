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

package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jaycherian/movielab/internal/cloud"
	"github.com/jaycherian/movielab/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestNewRequiresModel(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestCompleteReturnsCandidateText(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-test:generateContent"), r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "` + "```json" + `{\"translated_text\":\"hola\"}` + "```" + `"}]}}],
			"usageMetadata": {"promptTokenCount": 3, "candidatesTokenCount": 4}
		}`))
	}))
	defer srv.Close()

	gc, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  srv.Client(),
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL + "/"},
	})
	require.NoError(t, err)

	model := cloud.NewQuotaAwareModel(&genai.GenerateContentConfig{MaxOutputTokens: 100}, "gemini-test", gc.Models, 0)
	client, err := New(model)
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), "be a translator", "hello", 0.3, true)
	require.NoError(t, err)
	assert.Equal(t, `{"translated_text":"hola"}`, out)

	generationConfig, ok := body["generationConfig"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "application/json", generationConfig["responseMimeType"])
	assert.NotNil(t, body["systemInstruction"])
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gc, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  srv.Client(),
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL + "/"},
	})
	require.NoError(t, err)
	client, err := New(cloud.NewQuotaAwareModel(&genai.GenerateContentConfig{}, "gemini-test", gc.Models, 0))
	require.NoError(t, err)
	return client
}

func TestCompleteDoesNotRetryFailedCalls(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`))
	})

	_, err := client.Complete(context.Background(), "", "hello", 0, false)
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCompleteAsksAgainOnEmptyAnswer(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) < 3 {
			_, _ = w.Write([]byte(`{"candidates": []}`))
			return
		}
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"role": "model", "parts": [{"text": "a quiet harbour"}]}}]}`))
	})

	out, err := client.Complete(context.Background(), "", "describe", 0, false)
	require.NoError(t, err)
	assert.Equal(t, "a quiet harbour", out)
	assert.Equal(t, int32(cloud.MaxRetries), atomic.LoadInt32(&calls))
}

func TestCompleteReportsPersistentEmptyAnswer(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": []}`))
	})

	_, err := client.Complete(context.Background(), "", "describe", 0, false)
	assert.ErrorIs(t, err, providers.ErrEmptyResponse)
	assert.Equal(t, int32(cloud.MaxRetries), atomic.LoadInt32(&calls))
}
