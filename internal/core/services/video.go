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
	"log/slog"
	"strings"

	"github.com/jaycherian/movielab/internal/core/model"
	"github.com/jaycherian/movielab/internal/media"
	"github.com/jaycherian/movielab/internal/storage"
)

// VideoService turns a seed image and prompts into clips.
type VideoService struct {
	Generator          VideoGenerator
	Publisher          *storage.Publisher
	DefaultDuration    string
	DefaultAspectRatio string
}

// Options applies the defaults to duration and aspectRatio and validates them.
func (v *VideoService) Options(duration string, aspectRatio string) (string, string, error) {
	if duration == "" {
		duration = v.DefaultDuration
	}
	if aspectRatio == "" {
		aspectRatio = v.DefaultAspectRatio
	}
	if !model.ValidDuration(duration) {
		return "", "", fmt.Errorf("%w: duration must be one of %s", ErrInvalidInput, strings.Join(model.Durations, ", "))
	}
	if !model.ValidAspectRatio(aspectRatio) {
		return "", "", fmt.Errorf("%w: aspectRatio must be one of %s", ErrInvalidInput, strings.Join(model.AspectRatios, ", "))
	}
	return duration, aspectRatio, nil
}

// PublishImage makes img fetchable by the video provider.
func (v *VideoService) PublishImage(ctx context.Context, session string, img model.Image) (string, error) {
	if img.Empty() {
		return "", fmt.Errorf("%w: image is required", ErrInvalidInput)
	}
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = media.SniffMIME(img.Data, "image/jpeg")
	}
	key := v.Publisher.Key(session, "image", media.ExtensionFor(img.Data, "jpg"))
	return v.Publisher.Publish(ctx, key, mimeType, img.Data)
}

// Clip generates one clip from an already published image.
func (v *VideoService) Clip(ctx context.Context, imageURL string, scene model.Scene, duration string, aspectRatio string) (model.GeneratedVideo, error) {
	url, err := v.Generator.ImageToVideo(ctx, model.VideoRequest{
		ImageURL:    imageURL,
		Prompt:      scene.Prompt,
		Duration:    duration,
		AspectRatio: aspectRatio,
	})
	if err != nil {
		return model.GeneratedVideo{}, err
	}
	return model.GeneratedVideo{URL: url, Description: scene.Prompt, Subtitles: scene.Subtitle}, nil
}

// Generate publishes img once and generates one clip per prompt, in order.
// subtitles[i], when present, is carried along with clip i.
func (v *VideoService) Generate(ctx context.Context, session string, img model.Image, prompts []string, subtitles []string, duration string, aspectRatio string) ([]model.GeneratedVideo, error) {
	if len(prompts) == 0 {
		return nil, fmt.Errorf("%w: at least one prompt is required", ErrInvalidInput)
	}
	for i, p := range prompts {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("%w: prompt %d is empty", ErrInvalidInput, i+1)
		}
	}
	duration, aspectRatio, err := v.Options(duration, aspectRatio)
	if err != nil {
		return nil, err
	}

	imageURL, err := v.PublishImage(ctx, session, img)
	if err != nil {
		return nil, err
	}

	videos := make([]model.GeneratedVideo, 0, len(prompts))
	for i, prompt := range prompts {
		scene := model.Scene{Prompt: prompt}
		if i < len(subtitles) {
			scene.Subtitle = subtitles[i]
		}
		video, err := v.Clip(ctx, imageURL, scene, duration, aspectRatio)
		if err != nil {
			return nil, err
		}
		slog.Debug("clip generated", "index", i, "url", video.URL)
		videos = append(videos, video)
	}
	return videos, nil
}
