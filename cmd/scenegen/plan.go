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

package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jaycherian/movielab/internal/core/model"
	"github.com/jaycherian/movielab/internal/media"
	"gopkg.in/yaml.v3"
)

// Plan is a scene plan document:
//
//	session: harbour-story
//	image: ./keeper.png
//	duration: "5"
//	aspectRatio: "16:9"
//	scenes:
//	  - prompt: A lighthouse keeper looks out to sea
//	    subtitle: Every night I keep the light burning.
type Plan struct {
	Session     string        `yaml:"session"`
	Image       string        `yaml:"image"` // path relative to the plan file
	Duration    string        `yaml:"duration"`
	AspectRatio string        `yaml:"aspectRatio"`
	Scenes      []model.Scene `yaml:"scenes"`

	dir string
}

// LoadPlan reads and decodes the plan at path.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var plan Plan
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&plan); err != nil {
		return nil, fmt.Errorf("invalid plan %s: %w", path, err)
	}
	plan.dir = filepath.Dir(path)
	return &plan, nil
}

// Validate reports every problem of the plan at once.
func (p *Plan) Validate() error {
	var errs []error
	if strings.TrimSpace(p.Image) == "" {
		errs = append(errs, errors.New("image is required"))
	}
	if p.Duration != "" && !model.ValidDuration(p.Duration) {
		errs = append(errs, fmt.Errorf("duration must be one of %s", strings.Join(model.Durations, ", ")))
	}
	if p.AspectRatio != "" && !model.ValidAspectRatio(p.AspectRatio) {
		errs = append(errs, fmt.Errorf("aspectRatio must be one of %s", strings.Join(model.AspectRatios, ", ")))
	}
	if len(p.Scenes) == 0 {
		errs = append(errs, errors.New("at least one scene is required"))
	}
	for i, scene := range p.Scenes {
		if !scene.Valid() {
			errs = append(errs, fmt.Errorf("scene %d needs a prompt and a subtitle", i+1))
		}
	}
	return errors.Join(errs...)
}

func (p *Plan) imagePath() string {
	if filepath.IsAbs(p.Image) {
		return p.Image
	}
	return filepath.Join(p.dir, p.Image)
}

// Request builds the body of POST /api/pipelines, reading the image file.
func (p *Plan) Request() (map[string]interface{}, error) {
	data, err := os.ReadFile(p.imagePath())
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return map[string]interface{}{
		"sessionId":   p.Session,
		"image":       media.DataURI(media.SniffMIME(data, "image/jpeg"), data),
		"scenes":      p.Scenes,
		"duration":    p.Duration,
		"aspectRatio": p.AspectRatio,
	}, nil
}
