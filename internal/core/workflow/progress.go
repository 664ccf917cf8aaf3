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
	"sync"

	"github.com/jaycherian/movielab/internal/core/model"
)

// ProgressListener receives every progress event of a run, synchronously and
// in order.
type ProgressListener func(event model.ProgressEvent)

// ProgressTracker counts completed pipeline steps and reports the percentage
// of a run. The percentage never decreases and never exceeds 100.
type ProgressTracker struct {
	mu        sync.Mutex
	runID     string
	total     int
	completed int
	percent   float64
	listeners []ProgressListener
}

func NewProgressTracker(runID string, total int, listeners ...ProgressListener) *ProgressTracker {
	return &ProgressTracker{runID: runID, total: total, listeners: listeners}
}

// Step marks one step as completed and publishes the resulting event.
func (p *ProgressTracker) Step(label string, kind string) model.ProgressEvent {
	p.mu.Lock()
	p.completed++
	if p.total > 0 {
		percent := float64(p.completed) * 100 / float64(p.total)
		if percent > 100 {
			percent = 100
		}
		if percent > p.percent {
			p.percent = percent
		}
	}
	event := p.event(label, kind, model.RunRunning, "")
	p.mu.Unlock()

	p.publish(event)
	return event
}

// Finish publishes the terminal event of the run without moving progress.
func (p *ProgressTracker) Finish(status string, label string, errMessage string) model.ProgressEvent {
	p.mu.Lock()
	event := p.event(label, "", status, errMessage)
	p.mu.Unlock()

	p.publish(event)
	return event
}

func (p *ProgressTracker) Completed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed
}

func (p *ProgressTracker) Percent() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.percent
}

func (p *ProgressTracker) event(label string, kind string, status string, errMessage string) model.ProgressEvent {
	return model.ProgressEvent{
		RunID:     p.runID,
		Completed: p.completed,
		Total:     p.total,
		Percent:   p.percent,
		Step:      label,
		Kind:      kind,
		Status:    status,
		Error:     errMessage,
	}
}

func (p *ProgressTracker) publish(event model.ProgressEvent) {
	for _, listener := range p.listeners {
		listener(event)
	}
}
