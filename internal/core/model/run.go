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

// Package model defines the data structures shared across the application.
// This file contains the pipeline run record, the only entity that outlives a
// single request. Runs are kept in a run store so that clients can poll their
// status or subscribe to progress, and so that a history of generations exists.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Run states.
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// StepsPerScene is the number of tracked steps for every scene: narration,
// video generation, lip-sync and the hand-off step (frame extraction, or the
// finalisation slot on the last scene).
const StepsPerScene = 4

// PipelineRun is the record of one execution of the scene generation pipeline.
type PipelineRun struct {
	ID              string           `json:"id" bigquery:"id"`
	SessionID       string           `json:"sessionId" bigquery:"session_id"`
	Status          string           `json:"status" bigquery:"status"`
	Scenes          []Scene          `json:"scenes" bigquery:"scenes"`
	Duration        string           `json:"duration" bigquery:"duration"`
	AspectRatio     string           `json:"aspectRatio" bigquery:"aspect_ratio"`
	TotalSteps      int              `json:"totalSteps" bigquery:"total_steps"`
	CompletedSteps  int              `json:"completedSteps" bigquery:"completed_steps"`
	Progress        float64          `json:"progress" bigquery:"progress"`
	CurrentStep     string           `json:"currentStep" bigquery:"current_step"`
	GeneratedVideos []GeneratedVideo `json:"generatedVideos" bigquery:"generated_videos"`
	SyncedVideoURLs []string         `json:"syncedVideoUrls" bigquery:"synced_video_urls"`
	MergedVideoURL  string           `json:"mergedVideoUrl,omitempty" bigquery:"merged_video_url"`
	Warnings        []string         `json:"warnings,omitempty" bigquery:"warnings"`
	Error           string           `json:"error,omitempty" bigquery:"error"`
	CreatedAt       time.Time        `json:"createdAt" bigquery:"created_at"`
	UpdatedAt       time.Time        `json:"updatedAt" bigquery:"updated_at"`
}

// NewPipelineRun creates a pending run for the given scenes.
func NewPipelineRun(sessionID string, scenes []Scene, duration string, aspectRatio string) *PipelineRun {
	now := time.Now().UTC()
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &PipelineRun{
		ID:              uuid.NewString(),
		SessionID:       sessionID,
		Status:          RunPending,
		Scenes:          scenes,
		Duration:        duration,
		AspectRatio:     aspectRatio,
		TotalSteps:      len(scenes) * StepsPerScene,
		GeneratedVideos: make([]GeneratedVideo, 0),
		SyncedVideoURLs: make([]string, 0),
		Warnings:        make([]string, 0),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Clone returns a deep copy so that readers never share slices with the
// goroutine that is executing the run.
func (r *PipelineRun) Clone() *PipelineRun {
	if r == nil {
		return nil
	}
	out := *r
	out.Scenes = append([]Scene(nil), r.Scenes...)
	out.GeneratedVideos = append([]GeneratedVideo(nil), r.GeneratedVideos...)
	out.SyncedVideoURLs = append([]string(nil), r.SyncedVideoURLs...)
	out.Warnings = append([]string(nil), r.Warnings...)
	return &out
}

// Finished reports whether the run reached a terminal state.
func (r *PipelineRun) Finished() bool {
	return r.Status == RunSucceeded || r.Status == RunFailed
}

// ProgressEvent is published after every tracked pipeline step.
type ProgressEvent struct {
	RunID     string  `json:"runId"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
	Step      string  `json:"step"`
	Kind      string  `json:"kind,omitempty"`
	Status    string  `json:"status"`
	Error     string  `json:"error,omitempty"`
}

// PipelineResult is what a successful run hands back to its caller.
type PipelineResult struct {
	GeneratedVideos []GeneratedVideo `json:"generatedVideos"`
	SyncedVideoURLs []string         `json:"syncedVideoUrls"`
	MergedVideoURL  string           `json:"mergedVideoUrl,omitempty"`
	Warnings        []string         `json:"warnings,omitempty"`
}
