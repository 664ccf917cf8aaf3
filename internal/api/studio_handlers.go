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
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jaycherian/movielab/internal/core/model"
	"github.com/jaycherian/movielab/internal/media"
)

type audioRequest struct {
	Text        string `json:"text"`
	Prompt      string `json:"prompt"`
	Base64Image string `json:"base64Image"`
}

type videoForm struct {
	SessionID   string   `form:"sessionId"`
	Prompt      string   `form:"prompt"`
	Prompts     []string `form:"prompts"`
	Subtitles   []string `form:"subtitles"`
	Duration    string   `form:"duration" binding:"clipduration"`
	AspectRatio string   `form:"aspectRatio" binding:"aspectratio"`
}

type syncRequest struct {
	VideoURL string `json:"videoUrl" binding:"required"`
	AudioURL string `json:"audioUrl" binding:"required"`
}

type frameRequest struct {
	VideoURL string `json:"videoUrl" binding:"required"`
}

type mergeRequest struct {
	VideoURLs []string `json:"videoUrls"`
}

type suggestionRequest struct {
	SceneNumber int    `json:"sceneNumber"`
	TotalScenes int    `json:"totalScenes"`
	Base64Image string `json:"base64Image"`
	Type        string `json:"type"`
}

type analyzeRequest struct {
	Base64Image string `json:"base64Image"`
}

type conversationRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// videoResponse is the shape shared by lip-sync and merge results.
type videoResponse struct {
	Video model.VideoRef `json:"video"`
}

// bind decodes the JSON body into v and answers 400 when that fails.
func bind(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			badRequest(c, validationMessage(validationErrs))
		} else {
			badRequest(c, "Invalid request body")
		}
		return false
	}
	return true
}

// limitBody caps the request body at the configured upload size.
func (s *Server) limitBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)
	c.Next()
}

func (s *Server) generateAudio(c *gin.Context) {
	var req audioRequest
	if !bind(c, &req) {
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		text = strings.TrimSpace(req.Prompt)
	}
	if text == "" {
		badRequest(c, "Text or prompt is required")
		return
	}
	studio, ok := s.studio(c)
	if !ok {
		return
	}

	audio, err := studio.Narrate(c.Request.Context(), text, media.StripDataURIPrefix(req.Base64Image))
	if err != nil {
		fail(c, "generate audio", err)
		return
	}
	c.JSON(http.StatusOK, audio)
}

// listField accepts either repeated form fields or a single JSON array.
func listField(values []string) []string {
	if len(values) == 1 && strings.HasPrefix(strings.TrimSpace(values[0]), "[") {
		var out []string
		if err := json.Unmarshal([]byte(values[0]), &out); err == nil {
			return out
		}
	}
	return values
}

func (s *Server) generateVideo(c *gin.Context) {
	var form videoForm
	if err := c.ShouldBind(&form); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			badRequest(c, validationMessage(validationErrs))
		} else {
			badRequest(c, "Invalid form data")
		}
		return
	}
	prompts := listField(form.Prompts)
	if len(prompts) == 0 && strings.TrimSpace(form.Prompt) != "" {
		prompts = []string{form.Prompt}
	}
	header, err := c.FormFile("image")
	if err != nil || len(prompts) == 0 {
		badRequest(c, "Missing required fields")
		return
	}
	file, err := header.Open()
	if err != nil {
		badRequest(c, "Invalid image upload")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		badRequest(c, "Invalid image upload")
		return
	}

	studio, ok := s.studio(c)
	if !ok {
		return
	}
	img := model.Image{MIMEType: media.SniffMIME(data, header.Header.Get("Content-Type")), Data: data}
	videos, err := studio.GenerateVideos(c.Request.Context(), form.SessionID, img, prompts, listField(form.Subtitles), form.Duration, form.AspectRatio)
	if err != nil {
		fail(c, "generate video", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"videos": videos})
}

func (s *Server) syncLip(c *gin.Context) {
	var req syncRequest
	if !bind(c, &req) {
		return
	}
	studio, ok := s.studio(c)
	if !ok {
		return
	}
	url, err := studio.SyncLips(c.Request.Context(), req.VideoURL, req.AudioURL)
	if err != nil {
		fail(c, "sync lip movement", err)
		return
	}
	c.JSON(http.StatusOK, videoResponse{Video: model.VideoRef{URL: url}})
}

func (s *Server) extractFrame(c *gin.Context) {
	var req frameRequest
	if !bind(c, &req) {
		return
	}
	studio, ok := s.studio(c)
	if !ok {
		return
	}
	frame, err := studio.ExtractFrame(c.Request.Context(), req.VideoURL)
	if err != nil {
		fail(c, "extract frame", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"frame": media.DataURI(frame.MIMEType, frame.Data)})
}

func (s *Server) mergeVideos(c *gin.Context) {
	var req mergeRequest
	if !bind(c, &req) {
		return
	}
	studio, ok := s.studio(c)
	if !ok {
		return
	}
	url, err := studio.Merge(c.Request.Context(), req.VideoURLs)
	if err != nil {
		fail(c, "merge videos", err)
		return
	}
	c.JSON(http.StatusOK, videoResponse{Video: model.VideoRef{URL: url}})
}

func (s *Server) generateSuggestions(c *gin.Context) {
	var req suggestionRequest
	if !bind(c, &req) {
		return
	}
	studio, ok := s.studio(c)
	if !ok {
		return
	}
	suggestion, err := studio.Suggest(c.Request.Context(), model.SuggestionRequest{
		SceneNumber: req.SceneNumber,
		TotalScenes: req.TotalScenes,
		Base64Image: media.StripDataURIPrefix(req.Base64Image),
		Type:        req.Type,
	})
	if err != nil {
		fail(c, "generate scene suggestions", err)
		return
	}
	c.JSON(http.StatusOK, suggestion)
}

func (s *Server) analyzeImage(c *gin.Context) {
	var req analyzeRequest
	if !bind(c, &req) {
		return
	}
	studio, ok := s.studio(c)
	if !ok {
		return
	}
	analysis, err := studio.AnalyzeImage(c.Request.Context(), req.Base64Image)
	if err != nil {
		fail(c, "analyze image", err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

func (s *Server) extractConversation(c *gin.Context) {
	var req conversationRequest
	if !bind(c, &req) {
		return
	}
	studio, ok := s.studio(c)
	if !ok {
		return
	}
	conversation, err := studio.ExtractConversation(c.Request.Context(), req.Prompt)
	if err != nil {
		fail(c, "extract conversation", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conversation})
}
