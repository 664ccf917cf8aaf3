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

package commands

import (
	"time"

	"github.com/jaycherian/movielab/internal/core/cor"
	"github.com/jaycherian/movielab/internal/core/model"
	"github.com/jaycherian/movielab/internal/store"
)

// PersistRunCommand is the last command of the pipeline. It marks the run as
// succeeded and writes the final snapshot to the run store. It is not a
// tracked step and does not move progress.
type PersistRunCommand struct {
	cor.BaseCommand
	store store.RunStore
}

func NewPersistRunCommand(name string, runStore store.RunStore) *PersistRunCommand {
	return &PersistRunCommand{BaseCommand: *cor.NewBaseCommand(name), store: runStore}
}

func (c *PersistRunCommand) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil && RunOf(context) != nil
}

func (c *PersistRunCommand) Execute(context cor.Context) {
	run := RunOf(context)
	run.Status = model.RunSucceeded
	run.Error = ""
	run.UpdatedAt = time.Now().UTC()

	if err := c.store.Update(context.GetContext(), run); err != nil {
		run.Status = model.RunRunning
		c.Fail(context, &StepError{Action: "save the run", Err: err})
		return
	}
	c.Succeed(context, run.Clone())
}
