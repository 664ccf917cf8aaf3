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

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jaycherian/movielab/internal/core/model"
)

// MemoryRunStore keeps runs in process memory. Values are copied on the way
// in and out, so callers never share slices with the store.
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]*model.PipelineRun
}

func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[string]*model.PipelineRun)}
}

func (m *MemoryRunStore) Create(_ context.Context, run *model.PipelineRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; ok {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	m.runs[run.ID] = run.Clone()
	return nil
}

func (m *MemoryRunStore) Update(_ context.Context, run *model.PipelineRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		return ErrNotFound
	}
	m.runs[run.ID] = run.Clone()
	return nil
}

func (m *MemoryRunStore) Get(_ context.Context, id string) (*model.PipelineRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return run.Clone(), nil
}

func (m *MemoryRunStore) List(_ context.Context, limit int) ([]*model.PipelineRun, error) {
	m.mu.RLock()
	out := make([]*model.PipelineRun, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, run.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if n := listLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}
