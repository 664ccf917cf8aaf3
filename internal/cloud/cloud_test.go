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
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func TestResolveAPIKeysPrefersHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer sk-header")
	h.Set("x-elevenlabs-key", "  el-header ")
	h.Set("x-fal-key", "fal-header")

	keys := ResolveAPIKeys(h, envOf(map[string]string{
		EnvOpenAIKey:     "sk-env",
		EnvElevenLabsKey: "el-env",
		EnvFalKey:        "fal-env",
	}))

	assert.Equal(t, APIKeys{OpenAI: "sk-header", ElevenLabs: "el-header", Fal: "fal-header"}, keys)
}

func TestResolveAPIKeysFallsBackToEnv(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Basic abc")

	keys := ResolveAPIKeys(h, envOf(map[string]string{
		EnvOpenAIKey:     "sk-env",
		EnvElevenLabsKey: "el-env",
	}))

	assert.Equal(t, "sk-env", keys.OpenAI)
	assert.Equal(t, "el-env", keys.ElevenLabs)
	assert.Empty(t, keys.Fal)
}

func TestResolveAPIKeysEmptyBearerFallsBack(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer ")

	keys := ResolveAPIKeys(h, envOf(map[string]string{EnvOpenAIKey: "sk-env"}))
	assert.Equal(t, "sk-env", keys.OpenAI)
}

func TestRequireNamesFirstMissingProvider(t *testing.T) {
	keys := APIKeys{OpenAI: "sk"}

	assert.NoError(t, keys.Require(ProviderOpenAI))

	err := keys.Require(ProviderOpenAI, ProviderFal, ProviderElevenLabs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingAPIKey))

	var missing *MissingKeyError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, ProviderFal, missing.Provider)
	assert.Equal(t, "Fal API key is required", err.Error())
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"fenced", "Sure!\n```json\n{\"gender\": \"male\"}\n```\nDone", `{"gender": "male"}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"embedded object", `The answer is {"age": "old"} as requested.`, `{"age": "old"}`},
		{"plain", "  no json here ", "no json here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}

func TestRenderPrompt(t *testing.T) {
	out, err := RenderPrompt("next", DefaultPromptTemplates().NextDescription, PromptData{
		SceneNumber:  2,
		TotalScenes:  3,
		ImageContext: "a woman on a beach",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Based on this image: a woman on a beach")
	assert.Contains(t, out, "scene 2 of 3")

	_, err = RenderPrompt("broken", "{{.Nope", PromptData{})
	assert.Error(t, err)
}

func TestLoadConfigOverridesBaseWithRuntime(t *testing.T) {
	dir := t.TempDir()
	base := `
[application]
name = "base"
listen_address = ":9000"

[pipeline]
default_duration = "10"
`
	runtime := `
[application]
name = "runtime"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte(base), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.unit.toml"), []byte(runtime), 0o600))
	t.Setenv(EnvConfigFilePrefix, dir)
	t.Setenv(EnvConfigRuntime, "unit")

	config := NewConfig()
	require.NoError(t, LoadConfig(config))

	assert.Equal(t, "runtime", config.Application.Name)
	assert.Equal(t, ":9000", config.Application.ListenAddress)
	assert.Equal(t, "10", config.Pipeline.DefaultDuration)
	// untouched defaults survive
	assert.Equal(t, "16:9", config.Pipeline.DefaultAspectRatio)
	assert.Equal(t, MaxRetries, config.Pipeline.SubtitleAttempts)
}

func TestLoadConfigReportsDecodeErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte("[application\nname="), 0o600))
	t.Setenv(EnvConfigFilePrefix, dir)
	t.Setenv(EnvConfigRuntime, "unit")

	assert.Error(t, LoadConfig(NewConfig()))
}

func TestRateLimiterHonoursContext(t *testing.T) {
	limiter := NewRateLimiter(1)
	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, limiter.Wait(ctx))

	assert.NoError(t, NewRateLimiter(0).Wait(ctx))
}
