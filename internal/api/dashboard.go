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
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/movielab/internal/core/model"
)

// statsWindow is how many recent runs the dashboard summarises.
const statsWindow = 100

type runStats struct {
	Window    int            `json:"window"`
	ByStatus  map[string]int `json:"byStatus"`
	Scenes    int            `json:"scenes"`
	Merged    int            `json:"merged"`
	Warnings  int            `json:"warnings"`
	Listeners int            `json:"listeners"`
}

// Dashboard adds the statistics routes under r.
func (s *Server) Dashboard(r *gin.RouterGroup) {
	stats := r.Group("/stats")
	{
		stats.GET("", s.stats)
	}
}

func (s *Server) stats(c *gin.Context) {
	runs, err := s.runner.Store().List(c.Request.Context(), statsWindow)
	if err != nil {
		fail(c, "load statistics", err)
		return
	}
	out := runStats{
		Window: statsWindow,
		ByStatus: map[string]int{
			model.RunPending:   0,
			model.RunRunning:   0,
			model.RunSucceeded: 0,
			model.RunFailed:    0,
		},
	}
	for _, run := range runs {
		out.ByStatus[run.Status]++
		out.Scenes += len(run.Scenes)
		out.Warnings += len(run.Warnings)
		if run.MergedVideoURL != "" {
			out.Merged++
		}
		if !run.Finished() {
			out.Listeners += s.hub.Subscribers(run.ID)
		}
	}
	c.JSON(http.StatusOK, out)
}
