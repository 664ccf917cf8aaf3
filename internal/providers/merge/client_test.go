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

package merge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/jaycherian/movielab/internal/cloud"
	"github.com/jaycherian/movielab/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMerger struct {
	mu    sync.Mutex
	pairs []mergeRequest
	reply func(n int) string
}

func (f *fakeMerger) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodHead && r.URL.Path == "/missing.mp4":
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/merge":
			var in mergeRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			f.mu.Lock()
			f.pairs = append(f.pairs, in)
			n := len(f.pairs)
			f.mu.Unlock()
			_, _ = w.Write([]byte(f.reply(n)))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestMergeFoldsPairwise(t *testing.T) {
	f := &fakeMerger{}
	srv := f.server(t)
	f.reply = func(n int) string {
		return fmt.Sprintf(`{"merged_path":"/m/%d.mp4","public_url":"%s/m%d.mp4"}`, n, srv.URL, n)
	}
	c := New(cloud.MergeProvider{Endpoint: srv.URL + "/merge"}, srv.Client())

	a, b, d := srv.URL+"/a.mp4", srv.URL+"/b.mp4", srv.URL+"/c.mp4"
	url, err := c.Merge(context.Background(), []string{a, b, d})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/m2.mp4", url)
	assert.Equal(t, []mergeRequest{
		{URL1: a, URL2: b},
		{URL1: srv.URL + "/m1.mp4", URL2: d},
	}, f.pairs)
}

func TestMergeRequiresTwoURLs(t *testing.T) {
	c := New(cloud.MergeProvider{Endpoint: "http://unused"}, nil)
	_, err := c.Merge(context.Background(), []string{"http://one"})
	assert.ErrorIs(t, err, ErrTooFewVideos)
}

func TestMergeRejectsUnreachableURL(t *testing.T) {
	f := &fakeMerger{reply: func(int) string { return `{}` }}
	srv := f.server(t)
	c := New(cloud.MergeProvider{Endpoint: srv.URL + "/merge"}, srv.Client())

	_, err := c.Merge(context.Background(), []string{srv.URL + "/a.mp4", srv.URL + "/missing.mp4"})
	var invalid *InvalidURLError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, srv.URL+"/missing.mp4", invalid.URL)
	assert.Empty(t, f.pairs)
}

func TestMergeWithoutPublicURLFails(t *testing.T) {
	f := &fakeMerger{reply: func(int) string { return `{"merged_path":"/m/1.mp4"}` }}
	srv := f.server(t)
	c := New(cloud.MergeProvider{Endpoint: srv.URL + "/merge"}, srv.Client())

	_, err := c.Merge(context.Background(), []string{srv.URL + "/a.mp4", srv.URL + "/b.mp4"})
	assert.ErrorIs(t, err, providers.ErrEmptyResponse)
}
