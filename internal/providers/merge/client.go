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

// Package merge is the client of the remote video merge service. The service
// concatenates exactly two clips per call, so longer lists are folded
// pairwise: the merged result of one call becomes the first input of the next.
package merge

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jaycherian/movielab/internal/cloud"
	"github.com/jaycherian/movielab/internal/providers"
	"golang.org/x/sync/errgroup"
)

const providerName = "merge"

// ErrTooFewVideos is returned when fewer than two clips are given.
var ErrTooFewVideos = errors.New("at least two video urls are required for merging")

// InvalidURLError reports a clip that did not answer a HEAD request with 2xx.
type InvalidURLError struct {
	URL string
	Err error
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("invalid video url %s: %v", e.URL, e.Err)
}

func (e *InvalidURLError) Unwrap() error { return e.Err }

// Client calls the merge endpoint.
type Client struct {
	config cloud.MergeProvider
	http   *http.Client
}

// New creates a merge client.
func New(config cloud.MergeProvider, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{config: config, http: httpClient}
}

type mergeRequest struct {
	URL1 string `json:"url1"`
	URL2 string `json:"url2"`
}

type mergeResponse struct {
	MergedPath string `json:"merged_path"`
	PublicURL  string `json:"public_url"`
}

// Merge validates every URL and returns the public URL of the concatenation
// of urls, in order.
func (c *Client) Merge(ctx context.Context, urls []string) (string, error) {
	if len(urls) < 2 {
		return "", ErrTooFewVideos
	}
	if err := c.validate(ctx, urls); err != nil {
		return "", err
	}

	merged := urls[0]
	for _, next := range urls[1:] {
		var out mergeResponse
		err := providers.DoJSON(ctx, c.http, providers.Request{
			Provider: providerName,
			Method:   http.MethodPost,
			URL:      c.config.Endpoint,
			Body:     mergeRequest{URL1: merged, URL2: next},
		}, &out)
		if err != nil {
			return "", err
		}
		if out.PublicURL == "" || out.MergedPath == "" {
			return "", &providers.UpstreamError{Provider: providerName, Err: fmt.Errorf("merge service returned no public url: %w", providers.ErrEmptyResponse)}
		}
		merged = out.PublicURL
	}
	return merged, nil
}

func (c *Client) validate(ctx context.Context, urls []string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, u := range urls {
		u := u
		g.Go(func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
			if err != nil {
				return &InvalidURLError{URL: u, Err: err}
			}
			resp, err := c.http.Do(req)
			if err != nil {
				return &InvalidURLError{URL: u, Err: err}
			}
			resp.Body.Close()
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return &InvalidURLError{URL: u, Err: fmt.Errorf("status %d", resp.StatusCode)}
			}
			return nil
		})
	}
	return g.Wait()
}
