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

package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/jaycherian/movielab/internal/cloud"
	"github.com/jaycherian/movielab/internal/core/cor"
	"github.com/jaycherian/movielab/internal/core/model"
	"github.com/jaycherian/movielab/internal/core/services"
	"github.com/jaycherian/movielab/internal/media"
)

// PipelineJob is the Pub/Sub message that requests a pipeline run.
type PipelineJob struct {
	SessionID   string        `json:"sessionId"`
	Image       string        `json:"image"` // base64 or data URI
	Scenes      []model.Scene `json:"scenes"`
	Duration    string        `json:"duration"`
	AspectRatio string        `json:"aspectRatio"`
}

// StudioFunc builds the studio used for a run from the resolved API keys.
type StudioFunc func(keys cloud.APIKeys) (services.SceneStudio, error)

// PipelineJobCommand executes a PipelineJob received from a subscription.
// Jobs that can never succeed (bad JSON, bad inputs, missing keys) fail with
// cloud.ErrInvalidMessage so the listener acks them instead of redelivering.
type PipelineJobCommand struct {
	cor.BaseCommand
	runner  *Runner
	studios StudioFunc
	env     func(string) string
}

func NewPipelineJobCommand(name string, runner *Runner, studios StudioFunc) *PipelineJobCommand {
	return &PipelineJobCommand{
		BaseCommand: *cor.NewBaseCommand(name),
		runner:      runner,
		studios:     studios,
		env:         os.Getenv,
	}
}

func (c *PipelineJobCommand) invalid(context cor.Context, err error) {
	c.Fail(context, fmt.Errorf("%w: %w", cloud.ErrInvalidMessage, err))
}

func (c *PipelineJobCommand) Execute(context cor.Context) {
	message, _ := context.Get(c.GetInputParam()).(string)

	var job PipelineJob
	if err := json.Unmarshal([]byte(message), &job); err != nil {
		c.invalid(context, err)
		return
	}
	mimeType, data, err := media.DecodeImage(job.Image)
	if err != nil {
		c.invalid(context, err)
		return
	}
	seed := model.Image{MIMEType: mimeType, Data: data}
	if err := ValidateScenes(seed, job.Scenes); err != nil {
		c.invalid(context, err)
		return
	}
	if job.Duration != "" && !model.ValidDuration(job.Duration) {
		c.invalid(context, fmt.Errorf("unsupported duration %q", job.Duration))
		return
	}
	if job.AspectRatio != "" && !model.ValidAspectRatio(job.AspectRatio) {
		c.invalid(context, fmt.Errorf("unsupported aspect ratio %q", job.AspectRatio))
		return
	}

	keys := cloud.ResolveAPIKeys(http.Header{}, c.env)
	if err := keys.Require(cloud.ProviderElevenLabs, cloud.ProviderFal); err != nil {
		c.invalid(context, err)
		return
	}
	studio, err := c.studios(keys)
	if err != nil {
		if errors.Is(err, cloud.ErrMissingAPIKey) {
			c.invalid(context, err)
		} else {
			c.Fail(context, err)
		}
		return
	}

	ctx := context.GetContext()
	run := model.NewPipelineRun(job.SessionID, job.Scenes, job.Duration, job.AspectRatio)
	if err := c.runner.Store().Create(ctx, run); err != nil {
		c.Fail(context, err)
		return
	}
	if _, err := c.runner.Execute(ctx, studio, run, seed); err != nil {
		if errors.Is(err, cloud.ErrMissingAPIKey) {
			c.invalid(context, err)
		} else {
			c.Fail(context, err)
		}
		return
	}
	c.Succeed(context, run.ID)
}
