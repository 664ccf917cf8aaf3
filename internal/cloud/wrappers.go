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
// shared by every provider. This file implements the quota wrappers that sit
// in front of the upstream AI services. Every provider has a request budget;
// the wrappers block callers until a token is available instead of letting
// the upstream answer with 429s.
//
// Structs:
//   - RateLimiter: a context aware token bucket shared by a provider client.
//   - QuotaAwareGenerativeAIModel: a Gemini model handle guarded by a RateLimiter.
package cloud

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// RateLimiter wraps rate.Limiter with the defaults used across providers.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter that allows requestsPerSecond calls per
// second with an equal burst. A non-positive value disables limiting.
func NewRateLimiter(requestsPerSecond int) *RateLimiter {
	if requestsPerSecond <= 0 {
		return &RateLimiter{}
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)}
}

// Wait blocks until a request may proceed or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil || r.limiter == nil {
		return nil
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// QuotaAwareGenerativeAIModel is a decorator around a genai model handle that
// adds rate limiting in front of GenerateContent.
type QuotaAwareGenerativeAIModel struct {
	GenerativeContentConfig *genai.GenerateContentConfig
	ModelName               string
	ModelHandle             *genai.Models
	RateLimit               *RateLimiter
}

// NewQuotaAwareModel wraps a model handle with a limiter of requestsPerSecond.
func NewQuotaAwareModel(wrapped *genai.GenerateContentConfig, name string, modelHandle *genai.Models, requestsPerSecond int) *QuotaAwareGenerativeAIModel {
	return &QuotaAwareGenerativeAIModel{
		GenerativeContentConfig: wrapped,
		ModelName:               name,
		ModelHandle:             modelHandle,
		RateLimit:               NewRateLimiter(requestsPerSecond),
	}
}

// GenerateContent waits for the limiter and then calls the model. A non-nil
// config replaces the model's default generation config for this call only.
func (q *QuotaAwareGenerativeAIModel) GenerateContent(ctx context.Context, content []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if err := q.RateLimit.Wait(ctx); err != nil {
		return nil, err
	}
	if config == nil {
		config = q.GenerativeContentConfig
	}
	return q.ModelHandle.GenerateContent(ctx, q.ModelName, content, config)
}
