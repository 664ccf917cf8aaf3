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

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jaycherian/movielab/internal/cloud"
	"github.com/jaycherian/movielab/internal/core/model"
	"github.com/jaycherian/movielab/internal/media"
)

// SuggestionService proposes a scene description and/or subtitle for a scene,
// based on what the model sees in the current image.
//
// Logic Flow:
//  1. The image is described in free text.
//  2. The description is embedded in the prompt variant for the first or a
//     continuing scene and the requested type.
//  3. For "both" the answer must be a JSON object with a non-empty subtitle;
//     the request is repeated up to MaxAttempts times before the canned
//     subtitle is used. For "subtitles" an empty answer is retried the same way.
type SuggestionService struct {
	Model               LanguageModel
	Prompts             cloud.PromptTemplates
	MaxAttempts         int
	FallbackSubtitle    string
	DescribeTemperature float32
}

// ValidateSuggestionRequest checks req and applies the default type.
func ValidateSuggestionRequest(req *model.SuggestionRequest) error {
	if req.Type == "" {
		req.Type = model.SuggestionBoth
	}
	switch req.Type {
	case model.SuggestionBoth, model.SuggestionDescription, model.SuggestionSubtitles:
	default:
		return fmt.Errorf("%w: unknown suggestion type %q", ErrInvalidInput, req.Type)
	}
	if req.SceneNumber < 1 || req.TotalScenes < 1 {
		return fmt.Errorf("%w: sceneNumber and totalScenes must be positive", ErrInvalidInput)
	}
	if strings.TrimSpace(req.Base64Image) == "" {
		return fmt.Errorf("%w: base64Image is required", ErrInvalidInput)
	}
	return nil
}

// Suggest generates the suggestion for req.
func (s *SuggestionService) Suggest(ctx context.Context, req model.SuggestionRequest) (model.SceneSuggestion, error) {
	if err := ValidateSuggestionRequest(&req); err != nil {
		return model.SceneSuggestion{}, err
	}

	describe, err := cloud.RenderPrompt("describe-image", s.Prompts.DescribeImage, cloud.PromptData{})
	if err != nil {
		return model.SceneSuggestion{}, err
	}
	imageContext, err := s.Model.DescribeImage(ctx, describe, media.StripDataURIPrefix(req.Base64Image), s.DescribeTemperature)
	if err != nil {
		return model.SceneSuggestion{}, err
	}

	data := cloud.PromptData{
		SceneNumber:  req.SceneNumber,
		TotalScenes:  req.TotalScenes,
		ImageContext: strings.TrimSpace(imageContext),
	}
	if req.Type == model.SuggestionBoth {
		data.Example = model.ExampleJSON(model.GetExampleSuggestion())
	}
	system, user, err := s.prompts(req, data)
	if err != nil {
		return model.SceneSuggestion{}, err
	}

	switch req.Type {
	case model.SuggestionDescription:
		content, err := s.Model.Complete(ctx, system, user, s.DescribeTemperature, false)
		if err != nil {
			return model.SceneSuggestion{}, err
		}
		return model.SceneSuggestion{SceneDescription: strings.TrimSpace(content)}, nil
	case model.SuggestionSubtitles:
		return s.subtitles(ctx, system, user)
	default:
		return s.both(ctx, system, user)
	}
}

func (s *SuggestionService) attempts() int {
	if s.MaxAttempts <= 0 {
		return cloud.MaxRetries
	}
	return s.MaxAttempts
}

func (s *SuggestionService) subtitles(ctx context.Context, system string, user string) (model.SceneSuggestion, error) {
	for attempt := 1; attempt <= s.attempts(); attempt++ {
		content, err := s.Model.Complete(ctx, system, user, s.DescribeTemperature, false)
		if err != nil {
			return model.SceneSuggestion{}, err
		}
		if subtitle := strings.TrimSpace(content); subtitle != "" {
			return model.SceneSuggestion{Subtitles: subtitle}, nil
		}
		slog.Warn("empty subtitle suggestion", "attempt", attempt)
	}
	return model.SceneSuggestion{Subtitles: s.FallbackSubtitle}, nil
}

func (s *SuggestionService) both(ctx context.Context, system string, user string) (model.SceneSuggestion, error) {
	var raw string
	for attempt := 1; attempt <= s.attempts(); attempt++ {
		content, err := s.Model.Complete(ctx, system, user, s.DescribeTemperature, true)
		if err != nil {
			return model.SceneSuggestion{}, err
		}
		raw = strings.TrimSpace(content)

		suggestion, err := parseSuggestion(raw)
		if err == nil {
			return suggestion, nil
		}
		slog.Warn("unusable scene suggestion", "attempt", attempt, "error", err)
	}
	return model.SceneSuggestion{SceneDescription: raw, Subtitles: s.FallbackSubtitle}, nil
}

func parseSuggestion(content string) (model.SceneSuggestion, error) {
	var suggestion model.SceneSuggestion
	if err := json.Unmarshal([]byte(cloud.ExtractJSON(content)), &suggestion); err != nil {
		return model.SceneSuggestion{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	suggestion.SceneDescription = strings.TrimSpace(suggestion.SceneDescription)
	suggestion.Subtitles = strings.TrimSpace(suggestion.Subtitles)
	if suggestion.Subtitles == "" {
		return model.SceneSuggestion{}, fmt.Errorf("%w: empty subtitles", ErrMalformedOutput)
	}
	return suggestion, nil
}

func (s *SuggestionService) prompts(req model.SuggestionRequest, data cloud.PromptData) (string, string, error) {
	first := req.SceneNumber == 1
	var systemSrc, userSrc string
	switch req.Type {
	case model.SuggestionDescription:
		systemSrc, userSrc = s.Prompts.DescriptionSystem, pick(first, s.Prompts.FirstDescription, s.Prompts.NextDescription)
	case model.SuggestionSubtitles:
		systemSrc, userSrc = s.Prompts.SubtitlesSystem, pick(first, s.Prompts.FirstSubtitles, s.Prompts.NextSubtitles)
	default:
		systemSrc, userSrc = s.Prompts.BothSystem, pick(first, s.Prompts.FirstBoth, s.Prompts.NextBoth)
	}
	system, err := cloud.RenderPrompt(req.Type+"-system", systemSrc, data)
	if err != nil {
		return "", "", err
	}
	user, err := cloud.RenderPrompt(req.Type+"-user", userSrc, data)
	if err != nil {
		return "", "", err
	}
	return system, user, nil
}

func pick(first bool, a string, b string) string {
	if first {
		return a
	}
	return b
}
