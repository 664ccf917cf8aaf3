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

// Package testutil holds the shared fixtures of the test suite: the test
// configuration and sample pipeline inputs.
package testutil

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/jaycherian/movielab/internal/cloud"
	"github.com/jaycherian/movielab/internal/core/model"
)

var (
	configOnce sync.Once
	config     *cloud.Config
)

// SamplePNG is the smallest byte sequence recognised as a PNG image.
var SamplePNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

// HandleErr fails the test when err is not nil.
func HandleErr(err error, t *testing.T) {
	t.Helper()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// ConfigDir returns the absolute path of the repository's configs directory.
func ConfigDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "configs")
}

// SetupOS points the configuration loader at the test configuration.
func SetupOS() error {
	if err := os.Setenv(cloud.EnvConfigFilePrefix, ConfigDir()); err != nil {
		return err
	}
	return os.Setenv(cloud.EnvConfigRuntime, "test")
}

// GetConfig loads the test configuration once and returns it.
func GetConfig() *cloud.Config {
	configOnce.Do(func() {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		c := cloud.NewConfig()
		if err := cloud.LoadConfig(c); err != nil {
			log.Fatalf("failed to load test configuration: %v\n", err)
		}
		config = c
	})
	return config
}

// SampleScenes returns n valid scenes.
func SampleScenes(n int) []model.Scene {
	scenes := make([]model.Scene, n)
	for i := range scenes {
		scenes[i] = model.Scene{
			Prompt:   "A lighthouse keeper looks out over a stormy sea",
			Subtitle: "Every night I keep the light burning for them.",
		}
	}
	return scenes
}

// GetTestPipelineJobText returns the JSON body of a Pub/Sub pipeline job
// with n scenes and the sample image.
func GetTestPipelineJobText(sessionID string, n int) string {
	job := map[string]interface{}{
		"sessionId":   sessionID,
		"image":       base64.StdEncoding.EncodeToString(SamplePNG),
		"scenes":      SampleScenes(n),
		"duration":    "5",
		"aspectRatio": "16:9",
	}
	data, err := json.Marshal(job)
	if err != nil {
		panic(err)
	}
	return string(data)
}
