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
	"log/slog"
	"os"
	"sync"
)

// BaseContext is the default implementation of the Context interface. It is
// safe for concurrent use so that progress listeners may read it while a chain
// is still executing.
type BaseContext struct {
	mu         sync.RWMutex
	data       map[string]interface{}
	errors     map[string]error
	errorOrder []string
	tempFiles  []string
	context    context.Context
}

// NewBaseContext creates an empty context backed by context.Background().
func NewBaseContext() Context {
	return &BaseContext{
		data:      make(map[string]interface{}),
		errors:    make(map[string]error),
		tempFiles: make([]string, 0),
		context:   context.Background(),
	}
}

func (c *BaseContext) SetContext(context context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.context = context
}

func (c *BaseContext) GetContext() context.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.context
}

// Close removes every temporary file tracked by the context.
func (c *BaseContext) Close() {
	for _, file := range c.GetTempFiles() {
		if err := os.RemoveAll(file); err != nil {
			slog.Warn("failed to remove temporary file", "file", file, "error", err)
		}
	}
}

func (c *BaseContext) Add(key string, value interface{}) Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return c
}

func (c *BaseContext) AddTempFile(file string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tempFiles = append(c.tempFiles, file)
}

func (c *BaseContext) GetTempFiles() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.tempFiles...)
}

// AddError records err under key. A second error for the same key replaces the
// first but keeps its position in the ordering.
func (c *BaseContext) AddError(key string, err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.errors[key]; !ok {
		c.errorOrder = append(c.errorOrder, key)
	}
	c.errors[key] = err
}

func (c *BaseContext) GetErrors() map[string]error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]error, len(c.errors))
	for k, v := range c.errors {
		out[k] = v
	}
	return out
}

func (c *BaseContext) FirstError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.errorOrder) == 0 {
		return nil
	}
	return c.errors[c.errorOrder[0]]
}

func (c *BaseContext) Get(key string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data[key]
}

func (c *BaseContext) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

func (c *BaseContext) HasErrors() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.errors) > 0
}
