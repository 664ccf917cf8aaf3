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

// Package elevenlabs is the text-to-speech client: voice listing and
// synthesis over the ElevenLabs REST API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jaycherian/movielab/internal/cloud"
	"github.com/jaycherian/movielab/internal/core/model"
	"github.com/jaycherian/movielab/internal/providers"
)

const (
	providerName = "elevenlabs"
	keyHeader    = "xi-api-key"
)

// Client is a request scoped ElevenLabs client bound to one API key.
type Client struct {
	apiKey  string
	config  cloud.ElevenLabsProvider
	http    *http.Client
	limiter *cloud.RateLimiter
}

// New creates a client for apiKey.
func New(apiKey string, config cloud.ElevenLabsProvider, httpClient *http.Client, limiter *cloud.RateLimiter) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{apiKey: apiKey, config: config, http: httpClient, limiter: limiter}
}

type voicesResponse struct {
	Voices []model.Voice `json:"voices"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type speechRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

func (c *Client) endpoint(path string) string {
	return strings.TrimSuffix(c.config.BaseURL, "/") + path
}

// ListVoices returns every voice available to the account.
func (c *Client) ListVoices(ctx context.Context) ([]model.Voice, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var out voicesResponse
	err := providers.DoJSON(ctx, c.http, providers.Request{
		Provider: providerName,
		Method:   http.MethodGet,
		URL:      c.endpoint("/v1/voices"),
		Headers:  map[string]string{keyHeader: c.apiKey},
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Voices, nil
}

// Synthesize converts text to speech with voiceID and returns MP3 bytes.
func (c *Client) Synthesize(ctx context.Context, voiceID string, text string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := json.Marshal(speechRequest{
		Text:    text,
		ModelID: c.config.ModelID,
		VoiceSettings: voiceSettings{
			Stability:       c.config.Stability,
			SimilarityBoost: c.config.SimilarityBoost,
			Style:           c.config.Style,
			UseSpeakerBoost: c.config.SpeakerBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/v1/text-to-speech/"+url.PathEscape(voiceID)), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set(keyHeader, c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &providers.UpstreamError{Provider: providerName, Err: err}
	}
	defer resp.Body.Close()

	if err := providers.CheckResponse(providerName, resp); err != nil {
		return nil, err
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &providers.UpstreamError{Provider: providerName, Status: resp.StatusCode, Err: err}
	}
	if len(audio) == 0 {
		return nil, &providers.UpstreamError{Provider: providerName, Status: resp.StatusCode, Err: providers.ErrEmptyResponse}
	}
	return audio, nil
}
