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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jaycherian/movielab/internal/cloud"
	"github.com/jaycherian/movielab/internal/core/services"
	"github.com/jaycherian/movielab/internal/core/workflow"
	"github.com/jaycherian/movielab/internal/media"
	"github.com/jaycherian/movielab/internal/providers/merge"
	"github.com/jaycherian/movielab/internal/store"
)

// Error codes of the response envelope.
const (
	CodeBadRequest     = "BAD_REQUEST"
	CodeMissingAPIKey  = "MISSING_API_KEY"
	CodeNotFound       = "NOT_FOUND"
	CodeBusy           = "TOO_MANY_RUNS"
	CodeNotImplemented = "NOT_IMPLEMENTED"
	CodeInternal       = "INTERNAL_ERROR"
)

type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes the error envelope and aborts the handler chain.
func writeError(c *gin.Context, status int, code string, message string) {
	c.AbortWithStatusJSON(status, errorPayload{
		RequestID: RequestIDFrom(c),
		Error:     errorEnvelope{Code: code, Message: message},
	})
}

func badRequest(c *gin.Context, message string) {
	writeError(c, http.StatusBadRequest, CodeBadRequest, message)
}

// fail maps err onto the error envelope. Provider failures and anything
// unexpected become a 500 with the generic "failed to <action>" message; the
// full error only goes to the log.
func fail(c *gin.Context, action string, err error) {
	var missingKey *cloud.MissingKeyError
	var invalidURL *merge.InvalidURLError
	var validationErrs validator.ValidationErrors

	switch {
	case errors.As(err, &missingKey):
		writeError(c, http.StatusBadRequest, CodeMissingAPIKey, missingKey.Error())
	case errors.Is(err, merge.ErrTooFewVideos):
		badRequest(c, "At least two video URLs are required for merging")
	case errors.As(err, &invalidURL):
		badRequest(c, "Invalid video URL: "+invalidURL.URL)
	case errors.As(err, &validationErrs):
		badRequest(c, validationMessage(validationErrs))
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, media.ErrInvalidDataURI):
		badRequest(c, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(c, http.StatusNotFound, CodeNotFound, "run not found")
	case errors.Is(err, workflow.ErrBusy):
		writeError(c, http.StatusTooManyRequests, CodeBusy, workflow.ErrBusy.Error())
	default:
		slog.ErrorContext(c.Request.Context(), "failed to "+action,
			"request_id", RequestIDFrom(c),
			"path", c.FullPath(),
			"error", err)
		writeError(c, http.StatusInternalServerError, CodeInternal, "failed to "+action)
	}
}
