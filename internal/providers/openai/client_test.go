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

package openai

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

type capturedRequest struct {
	Model          string                   `json:"model"`
	Messages       []map[string]interface{} `json:"messages"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	config := cloud.NewConfig().Providers.OpenAI
	config.BaseURL = srv.URL + "/v1"
	return New("sk-test", config, srv.Client(), cloud.NewRateLimiter(0))
}

func reply(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"choices": []map[string]interface{}{
			{"index": 0, "finish_reason": "stop", "message": map[string]string{"role": "assistant", "content": content}},
		},
	})
}

func TestDescribeImageSendsImagePart(t *testing.T) {
	var got capturedRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		reply(w, `{"gender":"male","age":"old"}`)
	})

	out, err := client.DescribeImage(context.Background(), "who is this?", "QUJD", 0)
	require.NoError(t, err)
	assert.Equal(t, `{"gender":"male","age":"old"}`, out)

	require.Len(t, got.Messages, 1)
	parts, ok := got.Messages[0]["content"].([]interface{})
	require.True(t, ok)
	require.Len(t, parts, 2)
	image := parts[1].(map[string]interface{})["image_url"].(map[string]interface{})
	assert.Equal(t, "data:image/jpeg;base64,QUJD", image["url"])
	assert.Equal(t, "gpt-4o-mini", got.Model)
}

func TestCompleteJSONMode(t *testing.T) {
	var got capturedRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		reply(w, `{"translated_text":"hola"}`)
	})

	out, err := client.Complete(context.Background(), "system", "user", 0.3, true)
	require.NoError(t, err)
	assert.Equal(t, `{"translated_text":"hola"}`, out)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0]["role"])
}

func TestCompleteMapsAPIErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	})

	_, err := client.Complete(context.Background(), "", "hi", 0.7, false)
	require.Error(t, err)
	var upstream *providers.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusUnauthorized, upstream.Status)
	assert.Equal(t, "bad key", upstream.Body)
}
