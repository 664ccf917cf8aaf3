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

// Package api exposes the studio over HTTP with gin. Every route lives under
// /api, with /metrics served from the root for Prometheus.
//
// Provider API keys are read from the request headers (Authorization for
// OpenAI, x-elevenlabs-key, x-fal-key) and fall back to the process
// environment. Errors use one envelope:
//
//	{"request_id": "...", "error": {"code": "...", "message": "..."}}
package api

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jaycherian/movielab/internal/cloud"
	"github.com/jaycherian/movielab/internal/core/model"
	"github.com/jaycherian/movielab/internal/core/services"
	"github.com/jaycherian/movielab/internal/core/workflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Studio is what the handlers need from a request scoped studio.
type Studio interface {
	services.SceneStudio
	RequirePipelineKeys() error
	AnalyzeImage(ctx context.Context, base64Image string) (model.ImageAnalysis, error)
	Suggest(ctx context.Context, req model.SuggestionRequest) (model.SceneSuggestion, error)
	ExtractConversation(ctx context.Context, prompt string) (string, error)
	Translate(ctx context.Context, text string, targetLanguage string) (string, error)
	TranslateChunk(ctx context.Context, chunk model.TextChunk, targetLanguage string) (model.TextChunk, error)
	TranslateBatch(ctx context.Context, texts []string, targetLanguage string, batchSize int) ([]model.BatchTranslation, error)
	GenerateVideos(ctx context.Context, session string, img model.Image, prompts []string, subtitles []string, duration string, aspectRatio string) ([]model.GeneratedVideo, error)
	SyncLips(ctx context.Context, videoURL string, audioURL string) (string, error)
}

var _ Studio = (*services.Studio)(nil)

// StudioFunc builds the studio of one request from its resolved keys.
type StudioFunc func(keys cloud.APIKeys) (Studio, error)

// FactoryStudios adapts a services.StudioFactory.
func FactoryStudios(factory *services.StudioFactory) StudioFunc {
	return func(keys cloud.APIKeys) (Studio, error) {
		studio, err := factory.ForKeys(keys)
		if err != nil {
			return nil, err
		}
		return studio, nil
	}
}

// Options configure a Server.
type Options struct {
	ServiceName        string
	Studios            StudioFunc
	Runner             *workflow.Runner
	Hub                *Hub
	Registry           *prometheus.Registry
	Env                func(string) string // key fallback, os.Getenv when nil
	MaxUploadBytes     int64
	DefaultDuration    string
	DefaultAspectRatio string
	TranslateBatchSize int
	Heartbeat          time.Duration // SSE keep-alive interval
}

// Server holds the handlers and their dependencies.
type Server struct {
	name               string
	studios            StudioFunc
	runner             *workflow.Runner
	hub                *Hub
	metrics            *Metrics
	registry           *prometheus.Registry
	env                func(string) string
	maxUpload          int64
	defaultDuration    string
	defaultAspectRatio string
	translateBatchSize int
	heartbeat          time.Duration
	started            time.Time
}

func NewServer(opts Options) (*Server, error) {
	if opts.Studios == nil || opts.Runner == nil {
		return nil, errors.New("studios and runner are required")
	}
	if err := RegisterValidators(); err != nil {
		return nil, err
	}
	s := &Server{
		name:               opts.ServiceName,
		studios:            opts.Studios,
		runner:             opts.Runner,
		hub:                opts.Hub,
		registry:           opts.Registry,
		env:                opts.Env,
		maxUpload:          opts.MaxUploadBytes,
		defaultDuration:    opts.DefaultDuration,
		defaultAspectRatio: opts.DefaultAspectRatio,
		translateBatchSize: opts.TranslateBatchSize,
		heartbeat:          opts.Heartbeat,
		started:            time.Now(),
	}
	if s.name == "" {
		s.name = "movielab"
	}
	if s.hub == nil {
		s.hub = NewHub()
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	if s.env == nil {
		s.env = os.Getenv
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 20 << 20
	}
	if s.defaultDuration == "" {
		s.defaultDuration = "5"
	}
	if s.defaultAspectRatio == "" {
		s.defaultAspectRatio = "16:9"
	}
	if s.heartbeat <= 0 {
		s.heartbeat = 15 * time.Second
	}

	metrics, err := NewMetrics(s.registry)
	if err != nil {
		return nil, err
	}
	s.metrics = metrics
	return s, nil
}

// Hub returns the progress hub runs publish to.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Metrics returns the Prometheus collectors of the server.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler builds the gin engine with every route and middleware.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = s.maxUpload

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AddAllowHeaders(cloud.HeaderAuthorization, cloud.HeaderElevenLabsKey, cloud.HeaderFalKey, RequestIDHeader)
	corsConfig.AddExposeHeaders(RequestIDHeader)

	r.Use(
		gin.Recovery(),
		RequestID(),
		AccessLog(),
		s.metrics.Instrument(),
		otelgin.Middleware(s.name),
		cors.New(corsConfig),
	)
	r.NoRoute(func(c *gin.Context) {
		writeError(c, 404, CodeNotFound, "resource not found")
	})

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	{
		api.GET("/health", s.health)

		api.POST("/generate-audio", s.generateAudio)
		api.POST("/generate-video", s.limitBody, s.generateVideo)
		api.POST("/sync-lip", s.syncLip)
		api.POST("/extract-frame", s.extractFrame)
		api.POST("/merge-videos", s.mergeVideos)
		api.POST("/generate-scene-suggestions", s.generateSuggestions)
		api.POST("/analyze-image", s.analyzeImage)
		api.POST("/extract-conversation", s.extractConversation)

		api.POST("/translate", s.translate)
		api.POST("/translate/chunk", s.translateChunk)
		api.POST("/translate/batch", s.translateBatch)
		api.GET("/proxy", s.proxy)

		pipelines := api.Group("/pipelines")
		{
			pipelines.POST("", s.limitBody, s.startPipeline)
			pipelines.GET("", s.listPipelines)
			pipelines.GET("/:id", s.getPipeline)
			pipelines.GET("/:id/events", s.streamRun)
		}
		api.DELETE("/sessions/:id", s.deleteSession)

		s.Dashboard(api)
	}
	return r
}

// studio resolves the request's keys and builds its studio. It writes the
// error response and returns false when that fails.
func (s *Server) studio(c *gin.Context) (Studio, bool) {
	keys := cloud.ResolveAPIKeys(c.Request.Header, s.env)
	studio, err := s.studios(keys)
	if err != nil {
		fail(c, "initialize the studio", err)
		return nil, false
	}
	return studio, true
}
