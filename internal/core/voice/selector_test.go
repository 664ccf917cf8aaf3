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

package voice

import (
	"testing"

	"github.com/jaycherian/movielab/internal/core/model"
	"github.com/stretchr/testify/assert"
)

func v(id, name, gender, age string) model.Voice {
	labels := map[string]string{}
	if gender != "" {
		labels["gender"] = gender
	}
	if age != "" {
		labels["age"] = age
	}
	return model.Voice{ID: id, Name: name, Labels: labels}
}

func TestSelectVoice(t *testing.T) {
	catalog := []model.Voice{
		v("1", "Narrator", "", ""),
		v("2", "Clyde", "Male", "middle-aged"),
		v("3", "Dorothy", "female", "Young"),
		v("4", "Grace", "female", "twenties"),
		v("5", "George", "male", "old"),
	}

	tests := []struct {
		name   string
		voices []model.Voice
		gender string
		age    string
		wantID string
		want   Match
	}{
		{"gender and age bucket, first in list order", catalog, "female", "young", "3", MatchGenderAge},
		{"labels compare case insensitively", catalog, "MALE", "middle", "2", MatchGenderAge},
		{"age label mapped through bucket", catalog, "male", "old", "5", MatchGenderAge},
		{"gender only when no age matches", catalog, "female", "old", "3", MatchGender},
		{"young matches a teen labelled voice", []model.Voice{v("m", "Adam", "male", "teen"), v("o", "Agnes", "female", "old"), v("t", "Mia", "female", "teen")}, "female", "young", "t", MatchGenderAge},
		{"default names in order", []model.Voice{v("a", "Sam", "", ""), v("b", "Josh", "", "")}, "male", "young", "b", MatchDefaultName},
		{"first voice as last resort", []model.Voice{v("x", "Zed", "", ""), v("y", "Rachel", "", "")}, "male", "young", "x", MatchFirst},
		{"unknown gender falls to first", catalog, "", "young", "1", MatchFirst},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, match, ok := SelectVoice(tt.voices, tt.gender, tt.age)
			assert.True(t, ok)
			assert.Equal(t, tt.wantID, got.ID)
			assert.Equal(t, tt.want, match)
		})
	}
}

func TestSelectVoiceEmptyCatalog(t *testing.T) {
	_, _, ok := SelectVoice(nil, "female", "young")
	assert.False(t, ok)
}
