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

package cor

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// MeterName is the instrumentation scope of every command metric.
const MeterName = "github.com/jaycherian/movielab"

// BaseCommand is the default implementation of the Command interface. Concrete
// commands embed it to inherit naming, parameter keys and instrumentation.
type BaseCommand struct {
	Name            string              // Used for spans, metrics and error keys.
	InputParamName  string              // Context key of the primary input, CtxIn when empty.
	OutputParamName string              // Context key of the primary output, CtxOut when empty.
	Tracer          trace.Tracer        // Tracer from the global provider.
	Meter           metric.Meter        // Meter from the global provider.
	SuccessCounter  metric.Int64Counter // <name>.counter.success
	ErrorCounter    metric.Int64Counter // <name>.counter.error
}

// NewBaseCommand creates a command named name with its success and error counters.
func NewBaseCommand(name string) *BaseCommand {
	meter := otel.Meter(MeterName)

	successCounter, err := meter.Int64Counter(fmt.Sprintf("%s.counter.success", name))
	if err != nil {
		slog.Warn("error creating success counter", "command", name, "error", err)
	}
	errorCounter, err := meter.Int64Counter(fmt.Sprintf("%s.counter.error", name))
	if err != nil {
		slog.Warn("error creating error counter", "command", name, "error", err)
	}

	return &BaseCommand{
		Name:           name,
		Tracer:         otel.Tracer(name),
		Meter:          meter,
		SuccessCounter: successCounter,
		ErrorCounter:   errorCounter,
	}
}

func (c *BaseCommand) GetName() string {
	return c.Name
}

// IsExecutable requires a Go context and a value under the input key.
func (c *BaseCommand) IsExecutable(context Context) bool {
	return context != nil && context.GetContext() != nil && context.Get(c.GetInputParam()) != nil
}

func (c *BaseCommand) GetInputParam() string {
	if len(c.InputParamName) == 0 {
		return CtxIn
	}
	return c.InputParamName
}

func (c *BaseCommand) GetOutputParam() string {
	if len(c.OutputParamName) == 0 {
		return CtxOut
	}
	return c.OutputParamName
}

func (c *BaseCommand) GetTracer() trace.Tracer {
	return c.Tracer
}

func (c *BaseCommand) GetMeter() metric.Meter {
	return c.Meter
}

func (c *BaseCommand) GetSuccessCounter() metric.Int64Counter {
	return c.SuccessCounter
}

func (c *BaseCommand) GetErrorCounter() metric.Int64Counter {
	return c.ErrorCounter
}

// Fail increments the error counter and records err in the context under the
// command name.
func (c *BaseCommand) Fail(context Context, err error) {
	c.ErrorCounter.Add(context.GetContext(), 1)
	context.AddError(c.GetName(), err)
}

// Succeed increments the success counter and, when out is not nil, stores it
// under the output key.
func (c *BaseCommand) Succeed(context Context, out interface{}) {
	c.SuccessCounter.Add(context.GetContext(), 1)
	if out != nil {
		context.Add(c.GetOutputParam(), out)
	}
}
