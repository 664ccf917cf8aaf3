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
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/movielab/internal/core/model"
	"github.com/jaycherian/movielab/internal/media"
)

const defaultListLimit = 20

type pipelineRequest struct {
	SessionID   string        `json:"sessionId"`
	Image       string        `json:"image" binding:"required"`
	Scenes      []model.Scene `json:"scenes" binding:"required,min=1"`
	Duration    string        `json:"duration" binding:"clipduration"`
	AspectRatio string        `json:"aspectRatio" binding:"aspectratio"`
}

type pipelineAccepted struct {
	RunID     string `json:"runId"`
	SessionID string `json:"sessionId"`
}

// startPipeline accepts a scene list and runs it in the background. Progress
// is followed through GET /pipelines/:id/events.
func (s *Server) startPipeline(c *gin.Context) {
	var req pipelineRequest
	if !bind(c, &req) {
		return
	}
	mimeType, data, err := media.DecodeImage(req.Image)
	if err != nil {
		fail(c, "start pipeline", err)
		return
	}
	studio, ok := s.studio(c)
	if !ok {
		return
	}
	if err := studio.RequirePipelineKeys(); err != nil {
		fail(c, "start pipeline", err)
		return
	}

	duration := req.Duration
	if duration == "" {
		duration = s.defaultDuration
	}
	aspectRatio := req.AspectRatio
	if aspectRatio == "" {
		aspectRatio = s.defaultAspectRatio
	}
	run := model.NewPipelineRun(req.SessionID, req.Scenes, duration, aspectRatio)
	accepted := pipelineAccepted{RunID: run.ID, SessionID: run.SessionID}

	s.metrics.RunStarted()
	seed := model.Image{MIMEType: mimeType, Data: data}
	if err := s.runner.Start(studio, run, seed, s.hub.Publish, s.metrics.Observe); err != nil {
		s.metrics.RunRejected()
		fail(c, "start pipeline", err)
		return
	}
	slog.Info("pipeline run started", "run_id", accepted.RunID, "session_id", accepted.SessionID, "scenes", len(req.Scenes))
	c.JSON(http.StatusAccepted, accepted)
}

func (s *Server) getPipeline(c *gin.Context) {
	run, err := s.runner.Store().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, "load run", err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) listPipelines(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.runner.Store().List(c.Request.Context(), limit)
	if err != nil {
		fail(c, "list runs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// deleteSession drops the cached narration of a session.
func (s *Server) deleteSession(c *gin.Context) {
	if err := s.runner.Cache().Evict(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, "clear the session", err)
		return
	}
	c.Status(http.StatusNoContent)
}
