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

// Package model defines the data structures for the application. This file,
// `examples.go`, provides hardcoded example values used for few-shot prompting:
// showing the model a concrete instance of the JSON it must answer with keeps
// its output parseable.
package model

import "encoding/json"

// GetExampleSuggestion returns a sample answer for a combined description and
// subtitle suggestion. The subtitle is short enough to be spoken in a 5 second clip.
func GetExampleSuggestion() *SceneSuggestion {
	return &SceneSuggestion{
		SceneDescription: "The camera slowly pushes in as she turns from the window, morning light catching her face while curtains drift in the breeze.",
		Subtitles:        "I never thought this old house would feel like home again.",
	}
}

// GetExampleImageAnalysis returns a sample answer for the image analysis prompt.
func GetExampleImageAnalysis() *ImageAnalysis {
	return &ImageAnalysis{Gender: GenderMale, Age: AgeMiddle}
}

// ExampleJSON renders an example value as indented JSON for inclusion in a prompt.
func ExampleJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
