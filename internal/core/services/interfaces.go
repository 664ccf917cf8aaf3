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

// Package services contains the request level operations of the studio:
// image analysis, narration, scene suggestions, translation, video generation,
// and the Studio aggregate the scene pipeline runs against. This file declares
// the provider facing interfaces the services depend on, so that every service
// can be tested against fakes.
package services

import (
	"context"
	"errors"

	"github.com/jaycherian/movielab/internal/core/model"
)

// ErrMalformedOutput marks a language model answer that could not be parsed
// or validated. Callers absorb it into a fallback value.
var ErrMalformedOutput = errors.New("malformed model output")

// ErrInvalidInput is wrapped by every validation failure of a service request.
var ErrInvalidInput = errors.New("invalid input")

func isMalformed(err error) bool {
	return errors.Is(err, ErrMalformedOutput)
}

// LanguageModel is the vision and text model backing analysis, suggestions
// and translation. It is implemented by the openai and gemini providers.
type LanguageModel interface {
	DescribeImage(ctx context.Context, prompt string, base64Image string, temperature float32) (string, error)
	Complete(ctx context.Context, system string, user string, temperature float32, jsonMode bool) (string, error)
}

// SpeechSynthesizer lists voices and converts text to speech.
type SpeechSynthesizer interface {
	ListVoices(ctx context.Context) ([]model.Voice, error)
	Synthesize(ctx context.Context, voiceID string, text string) ([]byte, error)
}

// VideoGenerator turns an image URL and a prompt into a clip URL.
type VideoGenerator interface {
	ImageToVideo(ctx context.Context, req model.VideoRequest) (string, error)
}

// LipSyncer aligns a clip with narration audio.
type LipSyncer interface {
	LipSync(ctx context.Context, videoURL string, audioURL string) (string, error)
}

// FrameExtractor returns the last frame of a clip as JPEG bytes.
type FrameExtractor interface {
	ExtractLastFrame(ctx context.Context, videoURL string) ([]byte, error)
}

// VideoMerger concatenates clips, in order, into one clip URL.
type VideoMerger interface {
	Merge(ctx context.Context, urls []string) (string, error)
}
