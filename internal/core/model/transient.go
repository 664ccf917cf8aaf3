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

// Package model defines the data structures shared by the studio services,
// the scene pipeline and the HTTP layer. This file, `transient.go`, holds the
// request-scoped values that only live while a request or a pipeline run is
// being processed: scenes, seed images, synthesized audio, generated clips and
// the outputs of the vision model.
package model

import (
	"strings"
)

// Gender and age buckets returned by the image analysis step.
const (
	GenderMale   = "male"
	GenderFemale = "female"

	AgeYoung  = "young"
	AgeMiddle = "middle"
	AgeOld    = "old"
)

// Suggestion types accepted by the scene suggestion generator.
const (
	SuggestionDescription = "description"
	SuggestionSubtitles   = "subtitles"
	SuggestionBoth        = "both"
)

// Clip durations (seconds) and aspect ratios accepted by the video model.
var (
	Durations    = []string{"5", "10"}
	AspectRatios = []string{"16:9", "9:16", "1:1"}
)

// ValidDuration reports whether d is a supported clip duration.
func ValidDuration(d string) bool {
	return contains(Durations, d)
}

// ValidAspectRatio reports whether a is a supported aspect ratio.
func ValidAspectRatio(a string) bool {
	return contains(AspectRatios, a)
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// Scene is one (prompt, subtitle) unit that produces one short clip.
type Scene struct {
	Prompt   string `json:"prompt" yaml:"prompt" bigquery:"prompt"`
	Subtitle string `json:"subtitle" yaml:"subtitle" bigquery:"subtitle"`
}

// Valid reports whether both the prompt and the subtitle are present.
func (s Scene) Valid() bool {
	return strings.TrimSpace(s.Prompt) != "" && strings.TrimSpace(s.Subtitle) != ""
}

// Image is an in-memory image used to condition video generation. The first
// seed image is the user upload, later ones are extracted frames.
type Image struct {
	MIMEType string
	Data     []byte
}

// Empty reports whether the image carries no bytes.
func (i Image) Empty() bool {
	return len(i.Data) == 0
}

// Audio is a synthesized narration clip.
type Audio struct {
	Base64    string `json:"audio"`
	MIMEType  string `json:"mimeType,omitempty"`
	VoiceID   string `json:"voiceId,omitempty"`
	VoiceName string `json:"voiceName,omitempty"`
	Text      string `json:"-"` // the subtitle the clip was generated from
}

// DataURI renders the clip the way the lip-sync provider accepts inline audio.
func (a Audio) DataURI() string {
	mime := a.MIMEType
	if mime == "" {
		mime = "audio/mpeg"
	}
	return "data:" + mime + ";base64," + a.Base64
}

// Voice is a text-to-speech voice as returned by the provider's listing call.
type Voice struct {
	ID     string            `json:"voice_id"`
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels,omitempty"`
}

// Label returns the lower cased value of a voice label, or "" when absent.
func (v Voice) Label(key string) string {
	if v.Labels == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(v.Labels[key]))
}

// ImageAnalysis is the gender/age classification of the person in an image.
type ImageAnalysis struct {
	Gender string `json:"gender"`
	Age    string `json:"age"`
}

// DefaultImageAnalysis is used whenever the vision model answers with
// something that cannot be parsed or validated.
func DefaultImageAnalysis() ImageAnalysis {
	return ImageAnalysis{Gender: GenderFemale, Age: AgeYoung}
}

// Normalize lower cases the fields and reports whether they are in range.
func (a *ImageAnalysis) Normalize() bool {
	a.Gender = strings.ToLower(strings.TrimSpace(a.Gender))
	a.Age = strings.ToLower(strings.TrimSpace(a.Age))
	genderOK := a.Gender == GenderMale || a.Gender == GenderFemale
	ageOK := a.Age == AgeYoung || a.Age == AgeMiddle || a.Age == AgeOld
	return genderOK && ageOK
}

// SceneSuggestion is the output of the scene suggestion generator. Only the
// fields that were requested are populated.
type SceneSuggestion struct {
	SceneDescription string `json:"sceneDescription,omitempty"`
	Subtitles        string `json:"subtitles,omitempty"`
}

// SuggestionRequest carries the inputs of the suggestion generator.
type SuggestionRequest struct {
	SceneNumber int
	TotalScenes int
	Base64Image string
	Type        string
}

// VideoRequest is a single image-to-video generation call.
type VideoRequest struct {
	ImageURL    string
	Prompt      string
	Duration    string
	AspectRatio string
}

// GeneratedVideo is a clip produced by the video generation step.
type GeneratedVideo struct {
	URL         string `json:"url" bigquery:"url"`
	Description string `json:"description" bigquery:"description"`
	Subtitles   string `json:"subtitles" bigquery:"subtitles"`
}

// VideoRef is the single response shape used by the lip-sync and merge endpoints.
type VideoRef struct {
	URL string `json:"url"`
}

// TextChunk is a unit of page text submitted for translation.
type TextChunk struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Tag  string `json:"tag"`
	HTML string `json:"html"`
}

// BatchTranslation is one entry of a batch translation result. Index refers
// to the position of the source text in the request.
type BatchTranslation struct {
	Index          int    `json:"index"`
	TranslatedText string `json:"translatedText,omitempty"`
	Error          string `json:"error,omitempty"`
}
