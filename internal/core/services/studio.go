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
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/jaycherian/movielab/internal/cloud"
	"github.com/jaycherian/movielab/internal/core/model"
	"github.com/jaycherian/movielab/internal/media"
	"github.com/jaycherian/movielab/internal/providers/elevenlabs"
	"github.com/jaycherian/movielab/internal/providers/fal"
	"github.com/jaycherian/movielab/internal/providers/gemini"
	"github.com/jaycherian/movielab/internal/providers/merge"
	"github.com/jaycherian/movielab/internal/providers/openai"
	"github.com/jaycherian/movielab/internal/storage"
)

// SceneStudio is the set of steps the scene pipeline runs.
type SceneStudio interface {
	Narrate(ctx context.Context, text string, base64Image string) (model.Audio, error)
	GenerateClip(ctx context.Context, session string, seed model.Image, scene model.Scene, duration string, aspectRatio string) (model.GeneratedVideo, error)
	SyncNarration(ctx context.Context, session string, videoURL string, audio model.Audio) (string, error)
	ExtractFrame(ctx context.Context, videoURL string) (model.Image, error)
	Merge(ctx context.Context, urls []string) (string, error)
}

// Studio is the request scoped aggregate of every studio operation. Each
// operation checks that the API keys it needs were resolved and returns a
// cloud.MissingKeyError otherwise.
type Studio struct {
	keys        cloud.APIKeys
	llmProvider string // provider whose key the language model needs, "" when none

	Analyzer     *ImageAnalyzer
	Narrator     *Narrator
	Suggestions  *SuggestionService
	Conversation *ConversationExtractor
	Translator   *Translator
	Videos       *VideoService
	Lips         LipSyncer
	Frames       FrameExtractor
	Merger       VideoMerger
	Publisher    *storage.Publisher
}

var _ SceneStudio = (*Studio)(nil)

func (s *Studio) requireModel() error {
	if s.llmProvider == "" {
		return nil
	}
	return s.keys.Require(s.llmProvider)
}

// RequirePipelineKeys checks the keys every step of a scene pipeline run needs.
func (s *Studio) RequirePipelineKeys() error {
	if err := s.keys.Require(cloud.ProviderElevenLabs, cloud.ProviderFal); err != nil {
		return err
	}
	return s.requireModel()
}

// AnalyzeImage classifies the person in base64Image.
func (s *Studio) AnalyzeImage(ctx context.Context, base64Image string) (model.ImageAnalysis, error) {
	if strings.TrimSpace(base64Image) == "" {
		return model.ImageAnalysis{}, fmt.Errorf("%w: base64Image is required", ErrInvalidInput)
	}
	if err := s.requireModel(); err != nil {
		return model.ImageAnalysis{}, err
	}
	return s.Analyzer.Analyze(ctx, media.StripDataURIPrefix(base64Image))
}

// Narrate synthesizes text with a voice matching the image, when one is given.
func (s *Studio) Narrate(ctx context.Context, text string, base64Image string) (model.Audio, error) {
	if err := s.keys.Require(cloud.ProviderElevenLabs); err != nil {
		return model.Audio{}, err
	}
	if base64Image != "" {
		if err := s.requireModel(); err != nil {
			return model.Audio{}, err
		}
	}
	return s.Narrator.Narrate(ctx, text, base64Image)
}

// Suggest proposes a scene description and/or subtitle.
func (s *Studio) Suggest(ctx context.Context, req model.SuggestionRequest) (model.SceneSuggestion, error) {
	if err := ValidateSuggestionRequest(&req); err != nil {
		return model.SceneSuggestion{}, err
	}
	if err := s.requireModel(); err != nil {
		return model.SceneSuggestion{}, err
	}
	return s.Suggestions.Suggest(ctx, req)
}

// ExtractConversation keeps only the dialogue of prompt.
func (s *Studio) ExtractConversation(ctx context.Context, prompt string) (string, error) {
	if err := s.requireModel(); err != nil {
		return "", err
	}
	return s.Conversation.Extract(ctx, prompt)
}

func (s *Studio) Translate(ctx context.Context, text string, targetLanguage string) (string, error) {
	if err := s.requireModel(); err != nil {
		return "", err
	}
	return s.Translator.Translate(ctx, text, targetLanguage)
}

func (s *Studio) TranslateChunk(ctx context.Context, chunk model.TextChunk, targetLanguage string) (model.TextChunk, error) {
	if err := s.requireModel(); err != nil {
		return model.TextChunk{}, err
	}
	return s.Translator.TranslateChunk(ctx, chunk, targetLanguage)
}

func (s *Studio) TranslateBatch(ctx context.Context, texts []string, targetLanguage string, batchSize int) ([]model.BatchTranslation, error) {
	if err := s.requireModel(); err != nil {
		return nil, err
	}
	return s.Translator.TranslateBatch(ctx, texts, targetLanguage, batchSize)
}

// GenerateVideos generates one clip per prompt from img.
func (s *Studio) GenerateVideos(ctx context.Context, session string, img model.Image, prompts []string, subtitles []string, duration string, aspectRatio string) ([]model.GeneratedVideo, error) {
	if err := s.keys.Require(cloud.ProviderFal); err != nil {
		return nil, err
	}
	return s.Videos.Generate(ctx, session, img, prompts, subtitles, duration, aspectRatio)
}

// GenerateClip generates the clip of one scene from its seed image.
func (s *Studio) GenerateClip(ctx context.Context, session string, seed model.Image, scene model.Scene, duration string, aspectRatio string) (model.GeneratedVideo, error) {
	if err := s.keys.Require(cloud.ProviderFal); err != nil {
		return model.GeneratedVideo{}, err
	}
	duration, aspectRatio, err := s.Videos.Options(duration, aspectRatio)
	if err != nil {
		return model.GeneratedVideo{}, err
	}
	imageURL, err := s.Videos.PublishImage(ctx, session, seed)
	if err != nil {
		return model.GeneratedVideo{}, err
	}
	return s.Videos.Clip(ctx, imageURL, scene, duration, aspectRatio)
}

// SyncLips aligns the clip at videoURL with the audio at audioURL.
func (s *Studio) SyncLips(ctx context.Context, videoURL string, audioURL string) (string, error) {
	if strings.TrimSpace(videoURL) == "" || strings.TrimSpace(audioURL) == "" {
		return "", fmt.Errorf("%w: video URL and audio URL are required", ErrInvalidInput)
	}
	if err := s.keys.Require(cloud.ProviderFal); err != nil {
		return "", err
	}
	return s.Lips.LipSync(ctx, videoURL, audioURL)
}

// SyncNarration publishes audio and aligns the clip at videoURL with it.
func (s *Studio) SyncNarration(ctx context.Context, session string, videoURL string, audio model.Audio) (string, error) {
	if err := s.keys.Require(cloud.ProviderFal); err != nil {
		return "", err
	}
	audioURL := audio.DataURI()
	if s.Publisher.Enabled() {
		data, err := base64.StdEncoding.DecodeString(audio.Base64)
		if err != nil {
			return "", fmt.Errorf("invalid narration audio: %w", err)
		}
		mimeType := audio.MIMEType
		if mimeType == "" {
			mimeType = "audio/mpeg"
		}
		audioURL, err = s.Publisher.Publish(ctx, s.Publisher.Key(session, "audio", "mp3"), mimeType, data)
		if err != nil {
			return "", err
		}
	}
	return s.SyncLips(ctx, videoURL, audioURL)
}

// ExtractFrame returns the last frame of the clip at videoURL as a JPEG image.
func (s *Studio) ExtractFrame(ctx context.Context, videoURL string) (model.Image, error) {
	if strings.TrimSpace(videoURL) == "" {
		return model.Image{}, fmt.Errorf("%w: video URL is required", ErrInvalidInput)
	}
	data, err := s.Frames.ExtractLastFrame(ctx, videoURL)
	if err != nil {
		return model.Image{}, err
	}
	return model.Image{MIMEType: "image/jpeg", Data: data}, nil
}

// Merge concatenates the clips at urls, in order.
func (s *Studio) Merge(ctx context.Context, urls []string) (string, error) {
	if len(urls) < 2 {
		return "", merge.ErrTooFewVideos
	}
	return s.Merger.Merge(ctx, urls)
}

// StudioFactory builds request scoped studios from the process wide clients
// and configuration.
type StudioFactory struct {
	Config    *cloud.Config
	Clients   *cloud.ServiceClients
	Publisher *storage.Publisher
	FFmpeg    *media.FFmpeg
}

// NewStudioFactory creates a factory. publisher may be backed by no store.
func NewStudioFactory(config *cloud.Config, clients *cloud.ServiceClients, publisher *storage.Publisher) *StudioFactory {
	if publisher == nil {
		publisher = storage.NewPublisher(nil, config.Storage.KeyPrefix, config.Storage.PresignTTL())
	}
	return &StudioFactory{
		Config:    config,
		Clients:   clients,
		Publisher: publisher,
		FFmpeg:    media.NewFFmpeg(config.Pipeline.FFmpegPath, config.Pipeline.TempDir),
	}
}

// LanguageModel returns the configured vision and text model for keys and
// the provider whose key it needs.
func (f *StudioFactory) LanguageModel(keys cloud.APIKeys) (LanguageModel, string, error) {
	if f.Config.Vision.Backend == "gemini" {
		m, err := gemini.New(f.Clients.VisionModel)
		if err != nil {
			return nil, "", err
		}
		return m, "", nil
	}
	return openai.New(keys.OpenAI, f.Config.Providers.OpenAI, f.Clients.HTTPClient, f.Clients.Limiters.OpenAI), cloud.ProviderOpenAI, nil
}

// ForKeys builds the studio for one request.
func (f *StudioFactory) ForKeys(keys cloud.APIKeys) (*Studio, error) {
	llm, llmProvider, err := f.LanguageModel(keys)
	if err != nil {
		return nil, err
	}
	cfg := f.Config
	httpClient := f.Clients.HTTPClient
	prompts := cfg.PromptTemplates

	analyzer := &ImageAnalyzer{Model: llm, Prompt: prompts.AnalyzeImage}
	falClient := fal.New(keys.Fal, cfg.Providers.Fal, httpClient, f.Clients.Limiters.Fal)

	var merger VideoMerger = &LocalMerger{FFmpeg: f.FFmpeg, HTTP: httpClient, Publisher: f.Publisher}
	if cfg.Providers.Merge.Endpoint != "" {
		merger = merge.New(cfg.Providers.Merge, httpClient)
	}

	return &Studio{
		keys:        keys,
		llmProvider: llmProvider,
		Analyzer:    analyzer,
		Narrator: &Narrator{
			Analyzer:       analyzer,
			Speech:         elevenlabs.New(keys.ElevenLabs, cfg.Providers.ElevenLabs, httpClient, f.Clients.Limiters.ElevenLabs),
			DefaultVoiceID: cfg.Pipeline.DefaultVoiceID,
		},
		Suggestions: &SuggestionService{
			Model:               llm,
			Prompts:             prompts,
			MaxAttempts:         cfg.Pipeline.SubtitleAttempts,
			FallbackSubtitle:    cfg.Pipeline.FallbackSubtitle,
			DescribeTemperature: cfg.Pipeline.DescribeTemperature,
		},
		Conversation: &ConversationExtractor{Model: llm, System: prompts.ConversationSystem, Temperature: cfg.Pipeline.DescribeTemperature},
		Translator:   &Translator{Model: llm, Prompts: prompts},
		Videos: &VideoService{
			Generator:          falClient,
			Publisher:          f.Publisher,
			DefaultDuration:    cfg.Pipeline.DefaultDuration,
			DefaultAspectRatio: cfg.Pipeline.DefaultAspectRatio,
		},
		Lips:      falClient,
		Frames:    f.FFmpeg,
		Merger:    merger,
		Publisher: f.Publisher,
	}, nil
}
