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

package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoJSONDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("x-key"))
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["say"]})
	}))
	defer srv.Close()

	var out struct {
		Echo string `json:"echo"`
	}
	err := DoJSON(context.Background(), srv.Client(), Request{
		Provider: "test",
		Method:   http.MethodPost,
		URL:      srv.URL,
		Headers:  map[string]string{"x-key": "secret"},
		Body:     map[string]string{"say": "hi"},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Echo)
}

func TestDoJSONReturnsUpstreamErrorWithTruncatedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(strings.Repeat("x", 10000)))
	}))
	defer srv.Close()

	err := DoJSON(context.Background(), srv.Client(), Request{Provider: "test", Method: http.MethodGet, URL: srv.URL}, nil)
	require.Error(t, err)

	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusTooManyRequests, upstream.Status)
	assert.Len(t, upstream.Body, maxErrorBody)
}

func TestWrapKeepsExistingUpstreamError(t *testing.T) {
	original := &UpstreamError{Provider: "a", Status: 500}
	assert.Same(t, original, Wrap("b", original))

	wrapped := Wrap("b", ErrEmptyResponse)
	assert.ErrorIs(t, wrapped, ErrEmptyResponse)
	assert.Nil(t, Wrap("b", nil))
}
