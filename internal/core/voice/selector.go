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

// Package voice picks a text-to-speech voice for the person in a seed image.
//
// Logic Flow:
// The selector is a prioritized rule matcher. Rules are tried in order and the
// first voice (in listing order) satisfying a rule wins:
//  1. gender label and an age label inside the requested age bucket
//  2. gender label only
//  3. the per-gender list of default voice names, in list order
//  4. the first voice of the listing
package voice

import (
	"strings"

	"github.com/jaycherian/movielab/internal/core/model"
)

// Match names the rule that produced a selection.
type Match string

const (
	MatchGenderAge   Match = "gender_age"
	MatchGender      Match = "gender"
	MatchDefaultName Match = "default_name"
	MatchFirst       Match = "first"
)

// AgeBuckets maps the coarse age returned by image analysis to the age labels
// used by the voice provider.
var AgeBuckets = map[string][]string{
	model.AgeYoung:  {"young", "teen", "twenties"},
	model.AgeMiddle: {"adult", "middle-aged", "middle"},
	model.AgeOld:    {"senior", "elderly", "old"},
}

// DefaultNames are tried, in order, when no voice carries the gender label.
var DefaultNames = map[string][]string{
	model.GenderFemale: {"Rachel", "Bella", "Elli"},
	model.GenderMale:   {"Josh", "Adam", "Sam"},
}

// SelectVoice returns the voice for gender and age, the rule that matched,
// and false only when voices is empty.
func SelectVoice(voices []model.Voice, gender string, age string) (model.Voice, Match, bool) {
	if len(voices) == 0 {
		return model.Voice{}, "", false
	}
	gender = strings.ToLower(strings.TrimSpace(gender))
	age = strings.ToLower(strings.TrimSpace(age))

	if gender != "" {
		bucket := AgeBuckets[age]
		for _, v := range voices {
			if v.Label("gender") == gender && contains(bucket, v.Label("age")) {
				return v, MatchGenderAge, true
			}
		}
		for _, v := range voices {
			if v.Label("gender") == gender {
				return v, MatchGender, true
			}
		}
		for _, name := range DefaultNames[gender] {
			for _, v := range voices {
				if strings.EqualFold(v.Name, name) {
					return v, MatchDefaultName, true
				}
			}
		}
	}
	return voices[0], MatchFirst, true
}

func contains(values []string, v string) bool {
	if v == "" {
		return false
	}
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
