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
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type appendCommand struct {
	BaseCommand
	suffix string
	fail   bool
	ran    *[]string
}

func newAppendCommand(name string, suffix string, fail bool, ran *[]string) *appendCommand {
	return &appendCommand{BaseCommand: *NewBaseCommand(name), suffix: suffix, fail: fail, ran: ran}
}

func (a *appendCommand) Execute(context Context) {
	*a.ran = append(*a.ran, a.GetName())
	if a.fail {
		a.Fail(context, errors.New(a.GetName()+" failed"))
		return
	}
	in, _ := context.Get(a.GetInputParam()).(string)
	a.Succeed(context, in+a.suffix)
}

func TestChainPipesOutputToInput(t *testing.T) {
	ran := make([]string, 0)
	chain := NewBaseChain("test-chain")
	chain.AddCommand(newAppendCommand("a", "-a", false, &ran))
	chain.AddCommand(newAppendCommand("b", "-b", false, &ran))

	var last string
	chain.AddCommand(&captureCommand{BaseCommand: *NewBaseCommand("capture"), got: &last})

	chCtx := NewBaseContext()
	chCtx.SetContext(context.Background())
	chCtx.Add(CtxIn, "start")
	chain.Execute(chCtx)

	require.False(t, chCtx.HasErrors())
	assert.Equal(t, []string{"a", "b"}, ran)
	assert.Equal(t, "start-a-b", last)
}

func TestChainStopsOnFirstError(t *testing.T) {
	ran := make([]string, 0)
	steps := make([]string, 0)
	chain := NewBaseChain("test-chain")
	chain.AddCommand(newAppendCommand("a", "-a", false, &ran))
	chain.AddCommand(newAppendCommand("b", "-b", true, &ran))
	chain.AddCommand(newAppendCommand("c", "-c", false, &ran))
	chain.OnStepComplete(func(_ Context, command Command) {
		steps = append(steps, command.GetName())
	})

	chCtx := NewBaseContext()
	chCtx.SetContext(context.Background())
	chCtx.Add(CtxIn, "start")
	chain.Execute(chCtx)

	assert.True(t, chCtx.HasErrors())
	assert.Equal(t, []string{"a", "b"}, ran)
	assert.Equal(t, []string{"a"}, steps)
	assert.EqualError(t, chCtx.FirstError(), "b failed")
}

func TestChainContinueOnFailure(t *testing.T) {
	ran := make([]string, 0)
	chain := NewBaseChain("test-chain")
	chain.ContinueOnFailure(true)
	chain.AddCommand(newAppendCommand("a", "-a", true, &ran))
	chain.AddCommand(newAppendCommand("b", "-b", false, &ran))

	chCtx := NewBaseContext()
	chCtx.SetContext(context.Background())
	chCtx.Add(CtxIn, "start")
	chain.Execute(chCtx)

	assert.Equal(t, []string{"a", "b"}, ran)
	assert.Len(t, chCtx.GetErrors(), 1)
	assert.EqualError(t, chCtx.FirstError(), "a failed")
	assert.Equal(t, "start-b", chCtx.Get(CtxIn))
}

func TestChainStopsWhenContextCancelled(t *testing.T) {
	ran := make([]string, 0)
	chain := NewBaseChain("test-chain")
	chain.AddCommand(newAppendCommand("a", "-a", false, &ran))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	chCtx := NewBaseContext()
	chCtx.SetContext(ctx)
	chCtx.Add(CtxIn, "start")
	chain.Execute(chCtx)

	assert.Empty(t, ran)
	require.Error(t, chCtx.FirstError())
	assert.ErrorIs(t, chCtx.FirstError(), context.Canceled)
}

func TestChainRecordsNonExecutableCommand(t *testing.T) {
	ran := make([]string, 0)
	chain := NewBaseChain("test-chain")
	chain.AddCommand(newAppendCommand("a", "-a", false, &ran))

	chCtx := NewBaseContext()
	chCtx.SetContext(context.Background())
	chain.Execute(chCtx)

	assert.Empty(t, ran)
	assert.Contains(t, chCtx.GetErrors(), "a")
}

func TestContextFirstErrorKeepsOrder(t *testing.T) {
	chCtx := NewBaseContext()
	chCtx.AddError("second", errors.New("2"))
	chCtx.AddError("first", errors.New("1"))
	chCtx.AddError("second", errors.New("2b"))
	chCtx.AddError("ignored", nil)

	assert.EqualError(t, chCtx.FirstError(), "2b")
	assert.Len(t, chCtx.GetErrors(), 2)
}

type captureCommand struct {
	BaseCommand
	got *string
}

func (c *captureCommand) Execute(context Context) {
	*c.got, _ = context.Get(c.GetInputParam()).(string)
}
