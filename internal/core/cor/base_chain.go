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

// Package cor (Chain of Responsibility) provides the building blocks the scene
// pipeline is assembled from. This file defines BaseChain, the default Chain.
//
// Logic Flow:
//  1. Execute opens a span for the chain.
//  2. Before every command the chain stops when an earlier command failed
//     (unless continueOnFailure is set) or when the Go context is done.
//  3. Each command runs inside its own child span.
//  4. After a command without errors, every OnStepComplete listener is called.
//  5. The value a command left under CtxOut becomes CtxIn of the next command.
//     A failed command that left nothing keeps the previous CtxIn, so with
//     continueOnFailure the next command still runs on the last good input.
package cor

import (
	"fmt"

	"go.opentelemetry.io/otel/codes"
)

// BaseChain executes its commands sequentially.
type BaseChain struct {
	BaseCommand
	continueOnFailure bool
	commands          []Command
	listeners         []StepListener
}

// NewBaseChain creates an empty chain called name.
func NewBaseChain(name string) *BaseChain {
	return &BaseChain{BaseCommand: *NewBaseCommand(name)}
}

func (c *BaseChain) ContinueOnFailure(continueOnFailure bool) Chain {
	c.continueOnFailure = continueOnFailure
	return c
}

func (c *BaseChain) AddCommand(command Command) Chain {
	c.commands = append(c.commands, command)
	return c
}

func (c *BaseChain) OnStepComplete(listener StepListener) Chain {
	if listener != nil {
		c.listeners = append(c.listeners, listener)
	}
	return c
}

// Commands returns the commands of the chain in execution order.
func (c *BaseChain) Commands() []Command {
	return append([]Command(nil), c.commands...)
}

// IsExecutable only requires a Go context.
func (c *BaseChain) IsExecutable(context Context) bool {
	return context != nil && context.GetContext() != nil
}

func (c *BaseChain) Execute(chCtx Context) {
	parentCtx := chCtx.GetContext()

	outerCtx, chainSpan := c.Tracer.Start(parentCtx, fmt.Sprintf("%s_execute", c.GetName()))
	defer chainSpan.End()
	defer chCtx.SetContext(parentCtx)

	for _, command := range c.commands {
		if chCtx.HasErrors() && !c.continueOnFailure {
			break
		}
		if err := outerCtx.Err(); err != nil {
			chCtx.AddError(c.GetName(), fmt.Errorf("%s cancelled before %s: %w", c.GetName(), command.GetName(), err))
			break
		}

		commandContext, commandSpan := c.Tracer.Start(outerCtx, command.GetName())
		errorsBefore := len(chCtx.GetErrors())

		if command.IsExecutable(chCtx) {
			chCtx.SetContext(commandContext)
			command.Execute(chCtx)
			chCtx.SetContext(outerCtx)
		} else {
			chCtx.AddError(command.GetName(), fmt.Errorf("command not executable: %s", command.GetName()))
		}

		failed := len(chCtx.GetErrors()) > errorsBefore
		if failed {
			commandSpan.SetStatus(codes.Error, "error during command execution")
		} else {
			commandSpan.SetStatus(codes.Ok, "command completed successfully")
		}
		commandSpan.End()

		if !failed {
			for _, listener := range c.listeners {
				listener(chCtx, command)
			}
		}

		// A failed command without output leaves CtxIn to the next command.
		outputValue := chCtx.Get(CtxOut)
		if outputValue != nil {
			chCtx.Add(CtxIn, outputValue)
		} else if !failed {
			chCtx.Remove(CtxIn)
		}
		chCtx.Remove(CtxOut)
	}

	if !chCtx.HasErrors() {
		chainSpan.SetStatus(codes.Ok, "chain completed successfully")
	} else {
		chainSpan.SetStatus(codes.Error, "chain failed to execute")
	}
}
