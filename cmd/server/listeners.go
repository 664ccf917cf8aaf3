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
	"context"
	"log/slog"

	"github.com/jaycherian/movielab/internal/cloud"
	"github.com/jaycherian/movielab/internal/core/workflow"
)

// SetupListeners attaches a pipeline job command to every configured job
// subscription and starts listening. Jobs run on the shared runner and are
// recorded in the same run store as HTTP started runs.
func SetupListeners(ctx context.Context, config *cloud.Config, cloudClients *cloud.ServiceClients) {
	for name, listener := range cloudClients.PubSubListeners {
		listener.SetCommand(workflow.NewPipelineJobCommand("pipeline-job-"+name, state.runner, sceneStudios(state.factory)))
		listener.Listen(ctx)
		slog.Info("pipeline job command attached", "listener", name, "subscription", config.JobSubscriptions[name].Name)
	}
}
