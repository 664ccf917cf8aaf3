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
	"fmt"
	"strings"
)

// ConversationExtractor strips narration and description from a text and
// keeps only the spoken lines.
type ConversationExtractor struct {
	Model       LanguageModel
	System      string
	Temperature float32
}

func (c *ConversationExtractor) Extract(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt is required", ErrInvalidInput)
	}
	content, err := c.Model.Complete(ctx, c.System, prompt, c.Temperature, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}
