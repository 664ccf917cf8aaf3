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
// pipeline is assembled from. A workflow is a Chain of Commands sharing one
// Context; each command reads its input from the context, does one unit of
// work and writes its output back for the next command.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// CtxIn is the default key for the primary input of a command. The BaseChain
	// populates it with the output of the previous command.
	CtxIn = "__IN__"
	// CtxOut is the default key where a command places its primary output.
	CtxOut = "__OUT__"
)

// Context is the shared state of a single workflow execution.
type Context interface {
	// SetContext sets the Go context used for cancellation and tracing.
	SetContext(context context.Context)
	GetContext() context.Context

	// Add stores a value and returns the Context for chaining.
	Add(key string, value interface{}) Context
	Get(key string) interface{}
	Remove(key string)

	// AddError records an error under the name of the command that produced it.
	AddError(key string, err error)
	GetErrors() map[string]error
	// FirstError returns the earliest recorded error, or nil.
	FirstError() error
	HasErrors() bool

	// AddTempFile tracks a file that Close removes.
	AddTempFile(file string)
	GetTempFiles() []string
	Close()
}

// Executable is anything with execution logic.
type Executable interface {
	Execute(context Context)
}

// Command is an atomic, testable unit of work.
type Command interface {
	Executable

	GetName() string
	GetInputParam() string
	GetOutputParam() string

	// IsExecutable is the precondition checked before Execute.
	IsExecutable(context Context) bool

	GetTracer() trace.Tracer
	GetMeter() metric.Meter
	GetSuccessCounter() metric.Int64Counter
	GetErrorCounter() metric.Int64Counter
}

// StepListener is notified after a command of a chain completes without error.
type StepListener func(context Context, command Command)

// Chain is a sequence of commands. A Chain is itself a Command so chains nest.
type Chain interface {
	Command

	// ContinueOnFailure tells the chain whether to keep going after a failed command.
	ContinueOnFailure(bool) Chain

	AddCommand(command Command) Chain

	// OnStepComplete registers a listener invoked after every successful command.
	OnStepComplete(listener StepListener) Chain
}
