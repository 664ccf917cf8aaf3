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

// Package openai implements the language model used for vision and text
// generation on top of the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/jaycherian/movielab/internal/cloud"
	"github.com/jaycherian/movielab/internal/providers"
	openai "github.com/sashabaranov/go-openai"
)

const providerName = "openai"

// Client is a request scoped OpenAI client bound to one API key.
type Client struct {
	api     *openai.Client
	config  cloud.OpenAIProvider
	limiter *cloud.RateLimiter
}

// New creates a client for apiKey. httpClient carries the traced transport.
func New(apiKey string, config cloud.OpenAIProvider, httpClient *http.Client, limiter *cloud.RateLimiter) *Client {
	apiConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		apiConfig.BaseURL = config.BaseURL
	}
	if httpClient != nil {
		apiConfig.HTTPClient = httpClient
	}
	return &Client{
		api:     openai.NewClientWithConfig(apiConfig),
		config:  config,
		limiter: limiter,
	}
}

// DescribeImage sends prompt and the image to the vision model and returns its answer.
// base64Image may be raw base64 or a data URI.
func (c *Client) DescribeImage(ctx context.Context, prompt string, base64Image string, temperature float32) (string, error) {
	imageURL := base64Image
	if !strings.HasPrefix(imageURL, "data:") {
		imageURL = "data:image/jpeg;base64," + base64Image
	}
	return c.chat(ctx, openai.ChatCompletionRequest{
		Model:       c.config.VisionModel,
		MaxTokens:   c.config.MaxTokens,
		Temperature: temperatureOf(temperature),
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: imageURL, Detail: openai.ImageURLDetailAuto}},
				},
			},
		},
	})
}

// Complete runs a system+user completion. jsonMode requests a JSON object answer.
func (c *Client) Complete(ctx context.Context, system string, user string, temperature float32, jsonMode bool) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: user})

	req := openai.ChatCompletionRequest{
		Model:       c.config.TextModel,
		Temperature: temperatureOf(temperature),
		Messages:    messages,
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	return c.chat(ctx, req)
}

func (c *Client) chat(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", toUpstreamError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &providers.UpstreamError{Provider: providerName, Err: providers.ErrEmptyResponse}
	}
	return resp.Choices[0].Message.Content, nil
}

// temperatureOf keeps a requested zero temperature. The request field is
// omitempty, so zero would otherwise fall back to the API default of 1.
func temperatureOf(t float32) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

func toUpstreamError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &providers.UpstreamError{Provider: providerName, Status: apiErr.HTTPStatusCode, Body: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &providers.UpstreamError{Provider: providerName, Status: reqErr.HTTPStatusCode, Err: err}
	}
	return providers.Wrap(providerName, err)
}
