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
	"golang.org/x/sync/errgroup"
)

const (
	translationTemperature = 0.3
	DefaultTranslateBatch  = 10
	maxTranslateBatchSize  = 50
)

// Translator translates page text through the language model in JSON mode.
type Translator struct {
	Model   LanguageModel
	Prompts cloud.PromptTemplates
}

type translationResponse struct {
	TranslatedText *string `json:"translated_text"`
}

// Translate returns text in targetLanguage. An answer without a string
// translated_text field is reported as ErrMalformedOutput; there is no
// fallback translation.
func (t *Translator) Translate(ctx context.Context, text string, targetLanguage string) (string, error) {
	if strings.TrimSpace(text) == "" || strings.TrimSpace(targetLanguage) == "" {
		return "", fmt.Errorf("%w: text and targetLanguage are required", ErrInvalidInput)
	}
	data := cloud.PromptData{TargetLanguage: targetLanguage, Text: text}
	system, err := cloud.RenderPrompt("translation-system", t.Prompts.TranslationSystem, data)
	if err != nil {
		return "", err
	}
	user, err := cloud.RenderPrompt("translation-user", t.Prompts.TranslationUser, data)
	if err != nil {
		return "", err
	}

	content, err := t.Model.Complete(ctx, system, user, translationTemperature, true)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: no translation response received", ErrMalformedOutput)
	}
	var out translationResponse
	if err := json.Unmarshal([]byte(cloud.ExtractJSON(content)), &out); err != nil || out.TranslatedText == nil {
		return "", fmt.Errorf("%w: invalid translation response format", ErrMalformedOutput)
	}
	return *out.TranslatedText, nil
}

// TranslateChunk translates the text of chunk and keeps its id, tag and markup.
func (t *Translator) TranslateChunk(ctx context.Context, chunk model.TextChunk, targetLanguage string) (model.TextChunk, error) {
	translated, err := t.Translate(ctx, chunk.Text, targetLanguage)
	if err != nil {
		return model.TextChunk{}, err
	}
	chunk.Text = translated
	return chunk, nil
}

// TranslateBatch translates texts in groups of batchSize. Groups run one after
// the other and the texts of a group run concurrently. The result has one
// entry per input, in input order; a failed text carries its error message
// instead of failing the batch. Blank texts are passed through untranslated.
// Only ctx cancellation aborts the call.
func (t *Translator) TranslateBatch(ctx context.Context, texts []string, targetLanguage string, batchSize int) ([]model.BatchTranslation, error) {
	if strings.TrimSpace(targetLanguage) == "" {
		return nil, fmt.Errorf("%w: targetLanguage is required", ErrInvalidInput)
	}
	if batchSize <= 0 {
		batchSize = DefaultTranslateBatch
	}
	if batchSize > maxTranslateBatchSize {
		batchSize = maxTranslateBatchSize
	}

	results := make([]model.BatchTranslation, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			results[i].Index = i
			if strings.TrimSpace(texts[i]) == "" {
				results[i].TranslatedText = texts[i]
				continue
			}
			g.Go(func() error {
				translated, err := t.Translate(gctx, texts[i], targetLanguage)
				if err != nil {
					slog.Warn("batch translation item failed", "index", i, "error", err)
					results[i].Error = "Translation failed"
					return nil
				}
				results[i].TranslatedText = translated
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return results, nil
}
