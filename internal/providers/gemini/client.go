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

// Package gemini implements the language model on top of Gemini, as an
// alternative to OpenAI for image analysis and text generation.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/jaycherian/movielab/internal/cloud"
	"github.com/jaycherian/movielab/internal/media"
	"github.com/jaycherian/movielab/internal/providers"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"
)

const providerName = "gemini"

// Client adapts a quota aware Gemini model to the studio's language model contract.
type Client struct {
	model        *cloud.QuotaAwareGenerativeAIModel
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	retries      metric.Int64Counter
}

// New wraps model. It returns an error when model is nil.
func New(model *cloud.QuotaAwareGenerativeAIModel) (*Client, error) {
	if model == nil {
		return nil, errors.New("gemini model is not configured")
	}
	meter := otel.Meter(cloud.MeterName)
	in, _ := meter.Int64Counter("gemini.tokens.input")
	out, _ := meter.Int64Counter("gemini.tokens.output")
	retries, _ := meter.Int64Counter("gemini.retries")
	return &Client{model: model, inputTokens: in, outputTokens: out, retries: retries}, nil
}

// DescribeImage asks the model about an inline image.
func (c *Client) DescribeImage(ctx context.Context, prompt string, base64Image string, temperature float32) (string, error) {
	mimeType, data, err := media.DecodeImage(base64Image)
	if err != nil {
		return "", fmt.Errorf("invalid image: %w", err)
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			cloud.NewTextPart(prompt),
			cloud.NewInlineImagePart(data, mimeType),
		}, genai.RoleUser),
	}
	return c.generate(ctx, contents, c.configFor("", temperature, false))
}

// Complete runs a system+user completion.
func (c *Client) Complete(ctx context.Context, system string, user string, temperature float32, jsonMode bool) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(user, genai.RoleUser)}
	return c.generate(ctx, contents, c.configFor(system, temperature, jsonMode))
}

func (c *Client) configFor(system string, temperature float32, jsonMode bool) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature:    genai.Ptr[float32](temperature),
		SafetySettings: cloud.DefaultSafetySettings,
	}
	if base := c.model.GenerativeContentConfig; base != nil {
		config.MaxOutputTokens = base.MaxOutputTokens
		config.SafetySettings = base.SafetySettings
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if jsonMode {
		config.ResponseMIMEType = "application/json"
	}
	return config
}

func (c *Client) generate(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	out, err := cloud.GenerateMultiModalResponse(ctx, c.inputTokens, c.outputTokens, c.retries, c.model, config, contents)
	if err != nil {
		return "", providers.Wrap(providerName, err)
	}
	if out == "" {
		return "", &providers.UpstreamError{Provider: providerName, Err: providers.ErrEmptyResponse}
	}
	return out, nil
}
