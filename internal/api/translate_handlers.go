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

type translateRequest struct {
	Text           string `json:"text" binding:"required"`
	TargetLanguage string `json:"targetLanguage" binding:"required"`
}

type chunkRequest struct {
	Chunk          model.TextChunk `json:"chunk"`
	TargetLanguage string          `json:"targetLanguage" binding:"required"`
}

type chunkResponse struct {
	ID             string `json:"id"`
	TranslatedText string `json:"translatedText"`
	Tag            string `json:"tag"`
	HTML           string `json:"html"`
}

type batchRequest struct {
	Texts          []string `json:"texts" binding:"required"`
	TargetLanguage string   `json:"targetLanguage" binding:"required"`
	BatchSize      int      `json:"batchSize" binding:"gte=0"`
}

func (s *Server) translate(c *gin.Context) {
	var req translateRequest
	if !bind(c, &req) {
		return
	}
	studio, ok := s.studio(c)
	if !ok {
		return
	}
	translated, err := studio.Translate(c.Request.Context(), req.Text, req.TargetLanguage)
	if err != nil {
		fail(c, "translate", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"translatedText": translated})
}

func (s *Server) translateChunk(c *gin.Context) {
	var req chunkRequest
	if !bind(c, &req) {
		return
	}
	studio, ok := s.studio(c)
	if !ok {
		return
	}
	chunk, err := studio.TranslateChunk(c.Request.Context(), req.Chunk, req.TargetLanguage)
	if err != nil {
		fail(c, "translate", err)
		return
	}
	c.JSON(http.StatusOK, chunkResponse{ID: chunk.ID, TranslatedText: chunk.Text, Tag: chunk.Tag, HTML: chunk.HTML})
}

func (s *Server) translateBatch(c *gin.Context) {
	var req batchRequest
	if !bind(c, &req) {
		return
	}
	batchSize := req.BatchSize
	if batchSize == 0 {
		batchSize = s.translateBatchSize
	}
	studio, ok := s.studio(c)
	if !ok {
		return
	}
	translations, err := studio.TranslateBatch(c.Request.Context(), req.Texts, req.TargetLanguage, batchSize)
	if err != nil {
		fail(c, "translate", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"translations": translations})
}

// proxy is the website translation proxy, which is not served by this backend.
func (s *Server) proxy(c *gin.Context) {
	writeError(c, http.StatusNotImplemented, CodeNotImplemented, "the translation proxy is not available")
}
