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

// Package fal is the Fal.ai queue client used for image-to-video generation
// and lip-sync.
//
// Logic Flow:
//  1. The input is submitted to POST {queue}/{app}; the answer carries the
//     status and response URLs of the request.
//  2. The status URL is polled every poll interval. IN_QUEUE and IN_PROGRESS
//     keep waiting, COMPLETED moves on, anything else fails the request.
//  3. The result is fetched from the response URL and decoded into the caller's value.
//
// The whole exchange is bounded by the configured timeout and by ctx.
package fal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jaycherian/movielab/internal/cloud"
	"github.com/jaycherian/movielab/internal/core/model"
	"github.com/jaycherian/movielab/internal/providers"
)

const providerName = "fal"

// Queue states reported by the status endpoint.
const (
	StatusInQueue    = "IN_QUEUE"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
)

// Client is a request scoped Fal client bound to one API key.
type Client struct {
	apiKey  string
	config  cloud.FalProvider
	http    *http.Client
	limiter *cloud.RateLimiter

	pollEvery time.Duration
}

// New creates a client for apiKey.
func New(apiKey string, config cloud.FalProvider, httpClient *http.Client, limiter *cloud.RateLimiter) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{apiKey: apiKey, config: config, http: httpClient, limiter: limiter, pollEvery: config.PollInterval()}
}

// WithPollInterval overrides the status polling interval.
func (c *Client) WithPollInterval(d time.Duration) *Client {
	c.pollEvery = d
	return c
}

type submitResponse struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

type statusResponse struct {
	Status        string `json:"status"`
	QueuePosition int    `json:"queue_position"`
	Logs          []struct {
		Message string `json:"message"`
	} `json:"logs"`
}

type videoResult struct {
	Video struct {
		URL string `json:"url"`
	} `json:"video"`
}

func (c *Client) headers() map[string]string {
	return map[string]string{"Authorization": "Key " + c.apiKey}
}

// Run submits input to app, waits for completion and decodes the result into out.
func (c *Client) Run(ctx context.Context, app string, input interface{}, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout())
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var submitted submitResponse
	err := providers.DoJSON(ctx, c.http, providers.Request{
		Provider: providerName,
		Method:   http.MethodPost,
		URL:      strings.TrimSuffix(c.config.QueueURL, "/") + "/" + app,
		Headers:  c.headers(),
		Body:     input,
	}, &submitted)
	if err != nil {
		return err
	}
	if submitted.StatusURL == "" || submitted.ResponseURL == "" {
		return &providers.UpstreamError{Provider: providerName, Err: fmt.Errorf("queue submission without status url: %w", providers.ErrEmptyResponse)}
	}
	slog.Debug("fal request queued", "app", app, "request_id", submitted.RequestID)

	if err := c.waitForCompletion(ctx, app, submitted); err != nil {
		return err
	}

	return providers.DoJSON(ctx, c.http, providers.Request{
		Provider: providerName,
		Method:   http.MethodGet,
		URL:      submitted.ResponseURL,
		Headers:  c.headers(),
	}, out)
}

func (c *Client) waitForCompletion(ctx context.Context, app string, submitted submitResponse) error {
	ticker := time.NewTicker(c.pollEvery)
	defer ticker.Stop()

	statusURL := submitted.StatusURL
	if !strings.Contains(statusURL, "?") {
		statusURL += "?logs=1"
	}
	seenLogs := 0
	for {
		var status statusResponse
		err := providers.DoJSON(ctx, c.http, providers.Request{
			Provider: providerName,
			Method:   http.MethodGet,
			URL:      statusURL,
			Headers:  c.headers(),
		}, &status)
		if err != nil {
			return err
		}
		for ; seenLogs < len(status.Logs); seenLogs++ {
			slog.Debug("fal log", "app", app, "request_id", submitted.RequestID, "message", status.Logs[seenLogs].Message)
		}

		switch status.Status {
		case StatusCompleted:
			return nil
		case StatusInQueue, StatusInProgress:
		default:
			return &providers.UpstreamError{Provider: providerName, Err: fmt.Errorf("unexpected queue status %q", status.Status)}
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return &providers.UpstreamError{Provider: providerName, Err: fmt.Errorf("request %s timed out: %w", submitted.RequestID, ctx.Err())}
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ImageToVideo generates a clip from an image URL and a prompt. A result
// without a video URL is an error.
func (c *Client) ImageToVideo(ctx context.Context, req model.VideoRequest) (string, error) {
	input := map[string]interface{}{
		"prompt":       req.Prompt,
		"image_url":    req.ImageURL,
		"duration":     req.Duration,
		"aspect_ratio": req.AspectRatio,
	}
	var out videoResult
	if err := c.Run(ctx, c.config.ImageToVideoApp, input, &out); err != nil {
		return "", err
	}
	if out.Video.URL == "" {
		return "", &providers.UpstreamError{Provider: providerName, Err: fmt.Errorf("no video url in response: %w", providers.ErrEmptyResponse)}
	}
	return out.Video.URL, nil
}

// LipSync aligns the mouth movement of the clip at videoURL with the audio at
// audioURL (an http URL or a data URI) and returns the synced clip URL.
func (c *Client) LipSync(ctx context.Context, videoURL string, audioURL string) (string, error) {
	input := map[string]interface{}{
		"video_url":      videoURL,
		"audio_url":      audioURL,
		"guidance_scale": 1,
	}
	var out videoResult
	if err := c.Run(ctx, c.config.LipSyncApp, input, &out); err != nil {
		return "", err
	}
	if out.Video.URL == "" {
		return "", &providers.UpstreamError{Provider: providerName, Err: fmt.Errorf("no video url in response: %w", providers.ErrEmptyResponse)}
	}
	return out.Video.URL, nil
}
