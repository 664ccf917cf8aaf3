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

	"github.com/jaycherian/movielab/internal/cloud"
	"github.com/jaycherian/movielab/internal/core/model"
)

// ImageAnalyzer classifies the gender and coarse age of the person in an image.
type ImageAnalyzer struct {
	Model  LanguageModel // Vision model used for the classification.
	Prompt string        // Template of the classification prompt.
}

// Analyze returns the classification of base64Image. An answer that cannot be
// parsed or validated yields the default {female, young}; only upstream
// failures are returned as errors.
func (a *ImageAnalyzer) Analyze(ctx context.Context, base64Image string) (model.ImageAnalysis, error) {
	analysis, err := a.AnalyzeStrict(ctx, base64Image)
	if err == nil {
		return analysis, nil
	}
	if isMalformed(err) {
		slog.Warn("image analysis returned an unusable answer, using default", "error", err)
		return model.DefaultImageAnalysis(), nil
	}
	return model.ImageAnalysis{}, err
}

// AnalyzeStrict is Analyze without the fallback: malformed answers are
// reported as ErrMalformedOutput.
func (a *ImageAnalyzer) AnalyzeStrict(ctx context.Context, base64Image string) (model.ImageAnalysis, error) {
	prompt, err := cloud.RenderPrompt("analyze-image", a.Prompt, cloud.PromptData{Example: model.ExampleJSON(model.GetExampleImageAnalysis())})
	if err != nil {
		return model.ImageAnalysis{}, err
	}
	content, err := a.Model.DescribeImage(ctx, prompt, base64Image, 0)
	if err != nil {
		return model.ImageAnalysis{}, err
	}

	var analysis model.ImageAnalysis
	if err := json.Unmarshal([]byte(cloud.ExtractJSON(content)), &analysis); err != nil {
		return model.ImageAnalysis{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if !analysis.Normalize() {
		return model.ImageAnalysis{}, fmt.Errorf("%w: gender %q age %q", ErrMalformedOutput, analysis.Gender, analysis.Age)
	}
	return analysis, nil
}
