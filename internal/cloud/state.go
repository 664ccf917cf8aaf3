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
// shared by every provider. This file is the application's dependency
// injection container: NewCloudServiceClients builds every long lived client
// once at startup and the resulting ServiceClients is handed to the factories
// that create request scoped provider clients.
//
// Logic Flow:
//  1. The shared outbound HTTP client is created with an otelhttp transport.
//  2. One RateLimiter per provider is created from the provider settings.
//  3. Google clients are only created when the configuration enables them:
//     GenAI for the gemini vision backend, Storage (and IAM credentials for URL
//     signing) for the gcs storage backend, BigQuery for the bigquery run store,
//     and Pub/Sub when job subscriptions are configured.
//  4. A PubSubListener is created per job subscription with no command attached;
//     the command is set once the workflows are built.
package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/genai"
)

// Limiters holds one request budget per upstream provider.
type Limiters struct {
	OpenAI     *RateLimiter
	ElevenLabs *RateLimiter
	Fal        *RateLimiter
}

// ServiceClients is the container for every client that talks to the outside world.
type ServiceClients struct {
	HTTPClient      *http.Client                      // Shared outbound client, traced with otelhttp.
	Limiters        Limiters                          // Per provider request budgets.
	GenAIClient     *genai.Client                     // Set when the vision backend is gemini.
	VisionModel     *QuotaAwareGenerativeAIModel      // Gemini model used for vision and text.
	StorageClient   *storage.Client                   // Set when the storage backend is gcs.
	IAMClient       *credentials.IamCredentialsClient // Set when a signer service account is configured.
	BigQueryClient  *bigquery.Client                  // Set when the run store backend is bigquery.
	PubsubClient    *pubsub.Client                    // Set when job subscriptions are configured.
	PubSubListeners map[string]*PubSubListener        // Keyed by the logical subscription name.
}

// Close releases every client that was created. Nil clients are skipped.
func (c *ServiceClients) Close() {
	if c == nil {
		return
	}
	if c.StorageClient != nil {
		_ = c.StorageClient.Close()
	}
	if c.IAMClient != nil {
		_ = c.IAMClient.Close()
	}
	if c.BigQueryClient != nil {
		_ = c.BigQueryClient.Close()
	}
	if c.PubsubClient != nil {
		_ = c.PubsubClient.Close()
	}
	if c.HTTPClient != nil {
		c.HTTPClient.CloseIdleConnections()
	}
}

// NewHTTPClient returns an HTTP client whose transport records a client span
// for every outbound request.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   timeout,
	}
}

// NewCloudServiceClients initializes the clients the configuration enables.
func NewCloudServiceClients(ctx context.Context, config *Config) (_ *ServiceClients, err error) {
	clients := &ServiceClients{
		HTTPClient: NewHTTPClient(0),
		Limiters: Limiters{
			OpenAI:     NewRateLimiter(config.Providers.OpenAI.RateLimit),
			ElevenLabs: NewRateLimiter(config.Providers.ElevenLabs.RateLimit),
			Fal:        NewRateLimiter(config.Providers.Fal.RateLimit),
		},
		PubSubListeners: make(map[string]*PubSubListener),
	}
	defer func() {
		if err != nil {
			clients.Close()
		}
	}()

	if config.Vision.Backend == "gemini" {
		clientConfig := &genai.ClientConfig{Backend: genai.BackendGeminiAPI, HTTPClient: clients.HTTPClient}
		if config.Providers.Gemini.UseVertex {
			clientConfig = &genai.ClientConfig{
				Project:  config.Application.GoogleProjectId,
				Location: config.Application.GoogleLocation,
				Backend:  genai.BackendVertexAI,
			}
		}
		gc, err := genai.NewClient(ctx, clientConfig)
		if err != nil {
			return nil, fmt.Errorf("error creating genai client: %w", err)
		}
		clients.GenAIClient = gc

		values := config.Providers.Gemini
		model := &genai.GenerateContentConfig{
			MaxOutputTokens: values.MaxTokens,
			SafetySettings:  DefaultSafetySettings,
		}
		clients.VisionModel = NewQuotaAwareModel(model, values.Model, gc.Models, values.RateLimit)
		slog.Info("gemini vision backend enabled", "model", values.Model, "vertex", values.UseVertex)
	}

	if config.Storage.Backend == "gcs" {
		sc, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("error creating storage client: %w", err)
		}
		clients.StorageClient = sc

		if config.Application.SignerServiceAccountEmail != "" {
			ic, err := credentials.NewIamCredentialsClient(ctx)
			if err != nil {
				return nil, fmt.Errorf("error creating iam credentials client: %w", err)
			}
			clients.IAMClient = ic
		}
	}

	if config.RunStore.Backend == "bigquery" {
		bc, err := bigquery.NewClient(ctx, config.Application.GoogleProjectId)
		if err != nil {
			return nil, fmt.Errorf("error creating bigquery client: %w", err)
		}
		clients.BigQueryClient = bc
	}

	if len(config.JobSubscriptions) > 0 {
		pc, err := pubsub.NewClient(ctx, config.Application.GoogleProjectId)
		if err != nil {
			return nil, fmt.Errorf("error creating pubsub client: %w", err)
		}
		clients.PubsubClient = pc

		for subKey, values := range config.JobSubscriptions {
			listener, err := NewPubSubListener(pc, values.Name, nil)
			if err != nil {
				return nil, err
			}
			if values.TimeoutInSeconds > 0 {
				listener.SetTimeout(time.Duration(values.TimeoutInSeconds) * time.Second)
			}
			clients.PubSubListeners[subKey] = listener
		}
	}

	return clients, nil
}
