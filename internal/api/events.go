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

package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/movielab/internal/core/model"
)

// subscriberBuffer is the number of events a slow subscriber may lag behind
// before events are dropped for it.
const subscriberBuffer = 32

// Hub fans progress events out to the subscribers of each run.
type Hub struct {
	mu     sync.Mutex
	topics map[string]map[chan model.ProgressEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[chan model.ProgressEvent]struct{})}
}

// Subscribe returns a channel receiving the events of runID. The caller must
// call Unsubscribe when done.
func (h *Hub) Subscribe(runID string) chan model.ProgressEvent {
	ch := make(chan model.ProgressEvent, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.topics[runID]
	if !ok {
		subs = make(map[chan model.ProgressEvent]struct{})
		h.topics[runID] = subs
	}
	subs[ch] = struct{}{}
	return ch
}

func (h *Hub) Unsubscribe(runID string, ch chan model.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.topics[runID]; ok {
		delete(subs, ch)
		if len(subs) == 0 {
			delete(h.topics, runID)
		}
	}
}

// Publish delivers event to the subscribers of its run without blocking.
func (h *Hub) Publish(event model.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.topics[event.RunID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribers returns the number of subscribers of runID.
func (h *Hub) Subscribers(runID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[runID])
}

func writeEvent(w io.Writer, name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}

// streamRun sends a snapshot of the run followed by its progress events,
// until the run finishes or the client goes away.
func (s *Server) streamRun(c *gin.Context) {
	runID := c.Param("id")
	events := s.hub.Subscribe(runID)
	defer s.hub.Unsubscribe(runID, events)

	run, err := s.runner.Store().Get(c.Request.Context(), runID)
	if err != nil {
		fail(c, "load run", err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	if err := writeEvent(c.Writer, "snapshot", run); err != nil {
		return
	}
	c.Writer.Flush()
	if run.Finished() {
		return
	}

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := io.WriteString(c.Writer, ": ping\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case event := <-events:
			if err := writeEvent(c.Writer, "progress", event); err != nil {
				return
			}
			c.Writer.Flush()
			if event.Status == model.RunSucceeded || event.Status == model.RunFailed {
				return
			}
		}
	}
}
