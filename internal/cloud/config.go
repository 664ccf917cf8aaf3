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

// Package cloud defines the data structures for application configuration,
// loaded from TOML files. It provides a structured way to manage settings
// for the AI providers the studio talks to, the scene pipeline, asset storage,
// the audio cache, the run store and telemetry.
//
// API keys are not part of the configuration. They are resolved per request
// from headers, with the process environment as fallback (see keys.go).
//
// Structs:
//   - OpenAIProvider, GeminiProvider, ElevenLabsProvider, FalProvider, MergeProvider:
//     connection settings for each upstream AI service.
//   - Pipeline: defaults and policies for the scene generation pipeline.
//   - PromptTemplates: text/template sources for every LLM prompt.
//   - Storage, Cache, RunStore, Telemetry: infrastructure settings.
//   - TopicSubscription: a Pub/Sub subscription feeding pipeline jobs.
//   - Config: the top-level struct that aggregates everything.
package cloud

import (
	"time"

	"google.golang.org/genai"
)

// DefaultSafetySettings defines the content safety thresholds used for the
// Gemini backend.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
	},
}

// OpenAIProvider configures the OpenAI chat and vision client.
type OpenAIProvider struct {
	BaseURL     string `toml:"base_url"`     // Optional override, used by tests and proxies.
	VisionModel string `toml:"vision_model"` // Model used for image analysis and description.
	TextModel   string `toml:"text_model"`   // Model used for text-only completions.
	MaxTokens   int    `toml:"max_tokens"`   // Completion token cap.
	RateLimit   int    `toml:"rate_limit"`   // Requests per second.
}

// GeminiProvider configures the optional Gemini backend.
type GeminiProvider struct {
	Model     string `toml:"model"`
	MaxTokens int32  `toml:"max_tokens"`
	RateLimit int    `toml:"rate_limit"`
	// UseVertex selects the Vertex AI backend (project/location from [application])
	// instead of the Gemini API with an API key.
	UseVertex bool `toml:"use_vertex"`
}

// ElevenLabsProvider configures the text-to-speech client.
type ElevenLabsProvider struct {
	BaseURL         string  `toml:"base_url"`
	ModelID         string  `toml:"model_id"`
	Stability       float64 `toml:"stability"`
	SimilarityBoost float64 `toml:"similarity_boost"`
	Style           float64 `toml:"style"`
	SpeakerBoost    bool    `toml:"use_speaker_boost"`
	RateLimit       int     `toml:"rate_limit"`
}

// FalProvider configures the Fal.ai queue client used for image-to-video and lip-sync.
type FalProvider struct {
	QueueURL            string `toml:"queue_url"`
	ImageToVideoApp     string `toml:"image_to_video_app"`
	LipSyncApp          string `toml:"lip_sync_app"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	RateLimit           int    `toml:"rate_limit"`
}

// PollInterval returns the queue polling interval, defaulting to two seconds.
func (f FalProvider) PollInterval() time.Duration {
	if f.PollIntervalSeconds <= 0 {
		return 2 * time.Second
	}
	return time.Duration(f.PollIntervalSeconds) * time.Second
}

// Timeout returns the maximum time a single queued request may take.
func (f FalProvider) Timeout() time.Duration {
	if f.TimeoutSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// MergeProvider configures the remote video merge service. When Endpoint is
// empty, clips are merged locally with ffmpeg and published through storage.
type MergeProvider struct {
	Endpoint string `toml:"endpoint"`
}

// Providers groups the upstream AI service settings.
type Providers struct {
	OpenAI     OpenAIProvider     `toml:"openai"`
	Gemini     GeminiProvider     `toml:"gemini"`
	ElevenLabs ElevenLabsProvider `toml:"elevenlabs"`
	Fal        FalProvider        `toml:"fal"`
	Merge      MergeProvider      `toml:"merge"`
}

// Vision selects the language model backing image analysis and text generation.
type Vision struct {
	Backend string `toml:"backend"` // "openai" or "gemini"
}

// Pipeline holds the defaults and policies of the scene generation pipeline.
type Pipeline struct {
	DefaultDuration     string  `toml:"default_duration"`
	DefaultAspectRatio  string  `toml:"default_aspect_ratio"`
	SubtitleAttempts    int     `toml:"subtitle_attempts"`
	FallbackSubtitle    string  `toml:"fallback_subtitle"`
	DefaultVoiceID      string  `toml:"default_voice_id"`
	FFmpegPath          string  `toml:"ffmpeg_path"`
	TempDir             string  `toml:"temp_dir"`
	TranslateBatchSize  int     `toml:"translate_batch_size"`
	EvictAudioOnFinish  bool    `toml:"evict_audio_on_finish"`
	MaxConcurrentRuns   int     `toml:"max_concurrent_runs"`
	MaxUploadMegabytes  int64   `toml:"max_upload_megabytes"`
	DescribeTemperature float32 `toml:"describe_temperature"`
}

// PromptTemplates holds the text/template sources for every LLM prompt.
type PromptTemplates struct {
	AnalyzeImage       string `toml:"analyze_image"`
	DescribeImage      string `toml:"describe_image"`
	FirstDescription   string `toml:"first_description"`
	NextDescription    string `toml:"next_description"`
	FirstSubtitles     string `toml:"first_subtitles"`
	NextSubtitles      string `toml:"next_subtitles"`
	FirstBoth          string `toml:"first_both"`
	NextBoth           string `toml:"next_both"`
	DescriptionSystem  string `toml:"description_system"`
	SubtitlesSystem    string `toml:"subtitles_system"`
	BothSystem         string `toml:"both_system"`
	ConversationSystem string `toml:"conversation_system"`
	TranslationSystem  string `toml:"translation_system"`
	TranslationUser    string `toml:"translation_user"`
}

// MinIOStorage configures an S3 compatible object store.
type MinIOStorage struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	UseSSL    bool   `toml:"use_ssl"`
	Region    string `toml:"region"`
}

// GCSStorage configures a Google Cloud Storage bucket.
type GCSStorage struct {
	Bucket string `toml:"bucket"`
}

// Storage represents the configuration for the asset store that turns uploads,
// narration audio and merged clips into fetchable URLs.
type Storage struct {
	Backend           string       `toml:"backend"` // "none", "minio" or "gcs"
	PresignTTLMinutes int          `toml:"presign_ttl_minutes"`
	KeyPrefix         string       `toml:"key_prefix"`
	MinIO             MinIOStorage `toml:"minio"`
	GCS               GCSStorage   `toml:"gcs"`
}

// PresignTTL returns how long presigned URLs stay valid.
func (s Storage) PresignTTL() time.Duration {
	if s.PresignTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(s.PresignTTLMinutes) * time.Minute
}

// Cache configures the per-session audio cache.
type Cache struct {
	Backend           string `toml:"backend"` // "memory" or "redis"
	IdleTTLMinutes    int    `toml:"idle_ttl_minutes"`
	SweepEverySeconds int    `toml:"sweep_every_seconds"`
	RedisAddress      string `toml:"redis_address"`
	RedisDB           int    `toml:"redis_db"`
	RedisKeyPrefix    string `toml:"redis_key_prefix"`
}

// IdleTTL returns how long an untouched session keeps its cached audio.
func (c Cache) IdleTTL() time.Duration {
	if c.IdleTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.IdleTTLMinutes) * time.Minute
}

// SweepEvery returns the janitor interval of the in-memory cache.
func (c Cache) SweepEvery() time.Duration {
	if c.SweepEverySeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.SweepEverySeconds) * time.Second
}

// RunStore configures where pipeline runs are recorded.
type RunStore struct {
	Backend     string `toml:"backend"` // "memory", "postgres" or "bigquery"
	PostgresDSN string `toml:"postgres_dsn"`
	Dataset     string `toml:"dataset"`
	Table       string `toml:"table"`
}

// Telemetry selects the OpenTelemetry exporters.
type Telemetry struct {
	Exporter     string `toml:"exporter"`      // "none", "gcp" or "otlp"
	OTLPEndpoint string `toml:"otlp_endpoint"` // host:port
	OTLPProtocol string `toml:"otlp_protocol"` // "grpc" or "http"
	OTLPInsecure bool   `toml:"otlp_insecure"`
	LogLevel     string `toml:"log_level"`
}

// TopicSubscription represents a Pub/Sub subscription that feeds pipeline jobs.
type TopicSubscription struct {
	Name             string `toml:"name"`               // The name of the Pub/Sub subscription.
	DeadLetterTopic  string `toml:"dead_letter_topic"`  // The dead-letter topic for the subscription.
	TimeoutInSeconds int    `toml:"timeout_in_seconds"` // Maximum processing time of a single job.
}

// Config represents the overall configuration for the application, loaded from TOML files.
type Config struct {
	Application struct {
		Name                      string `toml:"name"`
		ListenAddress             string `toml:"listen_address"`
		GoogleProjectId           string `toml:"google_project_id"`
		GoogleLocation            string `toml:"location"`
		SignerServiceAccountEmail string `toml:"signer_service_account_email"`
		ReadTimeoutSeconds        int    `toml:"read_timeout_seconds"`
		WriteTimeoutSeconds       int    `toml:"write_timeout_seconds"`
	} `toml:"application"`
	Providers        Providers                    `toml:"providers"`
	Vision           Vision                       `toml:"vision"`
	Pipeline         Pipeline                     `toml:"pipeline"`
	PromptTemplates  PromptTemplates              `toml:"prompt_templates"`
	Storage          Storage                      `toml:"storage"`
	Cache            Cache                        `toml:"cache"`
	RunStore         RunStore                     `toml:"run_store"`
	Telemetry        Telemetry                    `toml:"telemetry"`
	JobSubscriptions map[string]TopicSubscription `toml:"job_subscriptions"`
}

// NewConfig creates a Config with its maps initialised and defaults that let
// the server start without any configuration file.
func NewConfig() *Config {
	c := &Config{
		JobSubscriptions: make(map[string]TopicSubscription),
	}
	c.Application.Name = "movielab"
	c.Application.ListenAddress = ":8080"
	c.Application.ReadTimeoutSeconds = 60
	c.Application.WriteTimeoutSeconds = 0

	c.Providers.OpenAI = OpenAIProvider{VisionModel: "gpt-4o-mini", TextModel: "gpt-4o-mini", MaxTokens: 1000, RateLimit: 5}
	c.Providers.Gemini = GeminiProvider{Model: "gemini-2.0-flash", MaxTokens: 1000, RateLimit: 5}
	c.Providers.ElevenLabs = ElevenLabsProvider{
		BaseURL:         "https://api.elevenlabs.io",
		ModelID:         "eleven_multilingual_v2",
		Stability:       0.5,
		SimilarityBoost: 0.75,
		Style:           1.0,
		SpeakerBoost:    true,
		RateLimit:       2,
	}
	c.Providers.Fal = FalProvider{
		QueueURL:            "https://queue.fal.run",
		ImageToVideoApp:     "fal-ai/kling-video/v1.6/pro/image-to-video",
		LipSyncApp:          "fal-ai/latentsync",
		PollIntervalSeconds: 2,
		TimeoutSeconds:      600,
		RateLimit:           2,
	}
	c.Vision.Backend = "openai"
	c.Pipeline = Pipeline{
		DefaultDuration:     "5",
		DefaultAspectRatio:  "16:9",
		SubtitleAttempts:    MaxRetries,
		FallbackSubtitle:    "Every picture tells a story, and this one is just beginning to unfold.",
		DefaultVoiceID:      "JBFqnCBsd6RMkjVDRZzb",
		FFmpegPath:          "ffmpeg",
		TranslateBatchSize:  10,
		MaxConcurrentRuns:   4,
		MaxUploadMegabytes:  20,
		DescribeTemperature: 0.7,
	}
	c.PromptTemplates = DefaultPromptTemplates()
	c.Storage.Backend = "none"
	c.Storage.PresignTTLMinutes = 60
	c.Cache.Backend = "memory"
	c.Cache.IdleTTLMinutes = 30
	c.Cache.RedisKeyPrefix = "movielab:audio:"
	c.RunStore.Backend = "memory"
	c.RunStore.Table = "pipeline_runs"
	c.Telemetry.Exporter = "none"
	c.Telemetry.OTLPProtocol = "grpc"
	c.Telemetry.LogLevel = "info"
	return c
}
