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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/jaycherian/movielab/internal/cloud"
	"github.com/jaycherian/movielab/internal/core/model"
)

// Client talks to a movielab server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Env     func(string) string
}

type accepted struct {
	RunID     string `json:"runId"`
	SessionID string `json:"sessionId"`
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) env(key string) string {
	if c.Env == nil {
		return os.Getenv(key)
	}
	return c.Env(key)
}

// keyHeaders forwards the provider keys of the local environment.
func (c *Client) keyHeaders(req *http.Request) {
	if k := c.env(cloud.EnvOpenAIKey); k != "" {
		req.Header.Set(cloud.HeaderAuthorization, "Bearer "+k)
	}
	if k := c.env(cloud.EnvElevenLabsKey); k != "" {
		req.Header.Set(cloud.HeaderElevenLabsKey, k)
	}
	if k := c.env(cloud.EnvFalKey); k != "" {
		req.Header.Set(cloud.HeaderFalKey, k)
	}
}

func readError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var payload apiError
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return fmt.Errorf("server answered %d: %s", resp.StatusCode, payload.Error.Message)
	}
	return fmt.Errorf("server answered %d", resp.StatusCode)
}

// Submit starts a pipeline run and returns its id.
func (c *Client) Submit(ctx context.Context, body map[string]interface{}) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(c.BaseURL, "/")+"/api/pipelines", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	c.keyHeaders(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return "", readError(resp)
	}
	var out accepted
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("invalid response: %w", err)
	}
	return out.RunID, nil
}

// Follow streams the progress of runID to onEvent and returns the final run.
func (c *Client) Follow(ctx context.Context, runID string, onEvent func(model.ProgressEvent)) (*model.PipelineRun, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(c.BaseURL, "/")+"/api/pipelines/"+runID+"/events", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, readError(resp)
	}

	var event string
	var snapshot *model.PipelineRun
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := []byte(strings.TrimPrefix(line, "data: "))
			switch event {
			case "snapshot":
				snapshot = &model.PipelineRun{}
				if err := json.Unmarshal(data, snapshot); err != nil {
					return nil, fmt.Errorf("invalid snapshot: %w", err)
				}
			case "progress":
				var progress model.ProgressEvent
				if err := json.Unmarshal(data, &progress); err != nil {
					return nil, fmt.Errorf("invalid progress event: %w", err)
				}
				onEvent(progress)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if snapshot != nil && snapshot.Finished() {
		return snapshot, nil
	}
	return c.Get(ctx, runID)
}

// Get fetches the current state of a run.
func (c *Client) Get(ctx context.Context, runID string) (*model.PipelineRun, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(c.BaseURL, "/")+"/api/pipelines/"+runID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, readError(resp)
	}
	var run model.PipelineRun
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return nil, fmt.Errorf("invalid run: %w", err)
	}
	return &run, nil
}
