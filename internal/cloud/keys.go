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

package cloud

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Provider names used in key resolution and error messages.
const (
	ProviderOpenAI     = "OpenAI"
	ProviderElevenLabs = "ElevenLabs"
	ProviderFal        = "Fal"
)

// Request headers and environment variables that carry provider API keys.
const (
	HeaderAuthorization = "Authorization"
	HeaderElevenLabsKey = "x-elevenlabs-key"
	HeaderFalKey        = "x-fal-key"

	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvElevenLabsKey = "ELEVENLABS_API_KEY"
	EnvFalKey        = "FAL_KEY"
)

// ErrMissingAPIKey is wrapped by every MissingKeyError.
var ErrMissingAPIKey = errors.New("missing api key")

// MissingKeyError names the provider whose key could not be resolved.
type MissingKeyError struct {
	Provider string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("%s API key is required", e.Provider)
}

func (e *MissingKeyError) Unwrap() error {
	return ErrMissingAPIKey
}

// APIKeys holds the per-request provider credentials.
type APIKeys struct {
	OpenAI     string
	ElevenLabs string
	Fal        string
}

// ResolveAPIKeys reads the provider keys from the request headers and falls
// back to env for every key the caller did not send.
func ResolveAPIKeys(header http.Header, env func(string) string) APIKeys {
	keys := APIKeys{}

	auth := header.Get(HeaderAuthorization)
	if strings.HasPrefix(auth, "Bearer ") {
		keys.OpenAI = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	keys.ElevenLabs = strings.TrimSpace(header.Get(HeaderElevenLabsKey))
	keys.Fal = strings.TrimSpace(header.Get(HeaderFalKey))

	if env != nil {
		if keys.OpenAI == "" {
			keys.OpenAI = strings.TrimSpace(env(EnvOpenAIKey))
		}
		if keys.ElevenLabs == "" {
			keys.ElevenLabs = strings.TrimSpace(env(EnvElevenLabsKey))
		}
		if keys.Fal == "" {
			keys.Fal = strings.TrimSpace(env(EnvFalKey))
		}
	}
	return keys
}

// Require returns a MissingKeyError for the first listed provider without a key.
func (k APIKeys) Require(providers ...string) error {
	for _, p := range providers {
		if k.For(p) == "" {
			return &MissingKeyError{Provider: p}
		}
	}
	return nil
}

// For returns the key of the named provider.
func (k APIKeys) For(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return k.OpenAI
	case ProviderElevenLabs:
		return k.ElevenLabs
	case ProviderFal:
		return k.Fal
	default:
		return ""
	}
}
