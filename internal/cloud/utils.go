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

// Package cloud provides the configuration, credentials and client plumbing
// shared by every provider. This file contains general-purpose helpers:
// hierarchical configuration loading, prompt rendering, extraction of JSON
// from model output and a retrying wrapper around Gemini content generation.
//
// Functions:
//   - LoadConfig: reads configs/.env.toml and then the runtime override
//     (e.g. .env.local.toml, .env.test.toml). The directory and runtime are
//     taken from MOVIELAB_CONFIG_PREFIX and MOVIELAB_RUNTIME.
//   - RenderPrompt: executes a prompt template against PromptData.
//   - ExtractJSON: pulls a JSON object out of a chatty model answer.
//   - GenerateMultiModalResponse: calls a quota aware Gemini model, asks again
//     a bounded number of times when the answer is empty, and records token usage.
package cloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"text/template"

	"go.opentelemetry.io/otel/metric"

	"github.com/BurntSushi/toml"
	"google.golang.org/genai"
)

const (
	ConfigFileBaseName  = ".env"                   // The base name for configuration files (e.g., ".env.toml").
	ConfigFileExtension = ".toml"                  // The file extension for configuration files.
	ConfigSeparator     = "."                      // The separator used in config file names (e.g., ".env.local.toml").
	EnvConfigFilePrefix = "MOVIELAB_CONFIG_PREFIX" // The environment variable for specifying the config directory.
	EnvConfigRuntime    = "MOVIELAB_RUNTIME"       // The environment variable for specifying the runtime (e.g., "local", "test", "prod").
	MaxRetries          = 3                        // The maximum number of attempts for a retried call.
	MeterName           = "github.com/jaycherian/movielab"
)

var (
	jsonFence  = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	jsonObject = regexp.MustCompile(`(?s)\{.*\}`)
)

func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// LoadConfig provides a hierarchical configuration loading mechanism. It first loads a
// base configuration file and then overwrites its values with a runtime specific file.
// Missing files are skipped; a file that exists but cannot be decoded is an error.
func LoadConfig(baseConfig interface{}) error {
	configurationFilePrefix := os.Getenv(EnvConfigFilePrefix)
	if len(configurationFilePrefix) > 0 && !strings.HasSuffix(configurationFilePrefix, string(os.PathSeparator)) {
		configurationFilePrefix = configurationFilePrefix + string(os.PathSeparator)
	}

	runtimeEnvironment := os.Getenv(EnvConfigRuntime)
	if runtimeEnvironment == "" {
		runtimeEnvironment = "test"
	}

	baseConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigFileExtension
	envConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigSeparator + runtimeEnvironment + ConfigFileExtension
	slog.Debug("loading configuration", "base", baseConfigFileName, "runtime", envConfigFileName)

	if fileExists(baseConfigFileName) {
		if _, err := toml.DecodeFile(baseConfigFileName, baseConfig); err != nil {
			return fmt.Errorf("failed to decode base configuration file %s: %w", baseConfigFileName, err)
		}
	}

	if fileExists(envConfigFileName) {
		if _, err := toml.DecodeFile(envConfigFileName, baseConfig); err != nil {
			return fmt.Errorf("failed to decode environment configuration file %s: %w", envConfigFileName, err)
		}
	}
	return nil
}

// RenderPrompt executes the named prompt template against data.
func RenderPrompt(name string, source string, data PromptData) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(source)
	if err != nil {
		return "", fmt.Errorf("invalid prompt template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}

// ExtractJSON returns the JSON document embedded in a model answer. A fenced
// ```json block wins, then the outermost {...} span, then the trimmed input.
func ExtractJSON(content string) string {
	if m := jsonFence.FindStringSubmatch(content); len(m) == 2 && strings.TrimSpace(m[1]) != "" {
		return strings.TrimSpace(m[1])
	}
	if m := jsonObject.FindString(content); m != "" {
		return strings.TrimSpace(m)
	}
	return strings.TrimSpace(content)
}

// GenerateMultiModalResponse executes a multi-modal request against a Gemini model.
// A failed call is returned as is, without retrying. A response that carries no
// text is treated as malformed output and asked for again, up to MaxRetries
// attempts in total; after that the empty answer is returned for the caller's
// fallback. Token usage is recorded on the supplied counters and code fences
// are stripped from the answer.
func GenerateMultiModalResponse(
	ctx context.Context,
	inputTokenCounter metric.Int64Counter,
	outputTokenCounter metric.Int64Counter,
	retryCounter metric.Int64Counter,
	model *QuotaAwareGenerativeAIModel,
	config *genai.GenerateContentConfig,
	content []*genai.Content) (string, error) {

	for attempt := 1; attempt <= MaxRetries; attempt++ {
		resp, err := model.GenerateContent(ctx, content, config)
		if err != nil {
			return "", err
		}
		if resp.UsageMetadata != nil {
			inputTokenCounter.Add(ctx, int64(resp.UsageMetadata.PromptTokenCount))
			outputTokenCounter.Add(ctx, int64(resp.UsageMetadata.CandidatesTokenCount))
		}
		if value := responseText(resp); value != "" {
			return value, nil
		}
		if attempt < MaxRetries {
			retryCounter.Add(ctx, 1)
			slog.Warn("generative model returned no text, asking again", "model", model.ModelName, "attempt", attempt)
		}
	}
	return "", nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	value := strings.TrimSpace(sb.String())
	value = strings.TrimPrefix(value, "```json")
	value = strings.TrimSuffix(value, "```")
	return strings.TrimSpace(value)
}

// NewTextPart creates a text part.
func NewTextPart(in string) *genai.Part {
	return genai.NewPartFromText(in)
}

// NewInlineImagePart creates an inline image part from raw bytes.
func NewInlineImagePart(data []byte, mimeType string) *genai.Part {
	return genai.NewPartFromBytes(data, mimeType)
}
