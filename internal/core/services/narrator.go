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

package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jaycherian/movielab/internal/core/model"
	"github.com/jaycherian/movielab/internal/core/voice"
	"github.com/jaycherian/movielab/internal/media"
)

// Narrator turns a subtitle into speech, with a voice that fits the person in
// the seed image.
type Narrator struct {
	Analyzer       *ImageAnalyzer
	Speech         SpeechSynthesizer
	DefaultVoiceID string
}

// Narrate synthesizes text. When base64Image is present the image is
// classified and a matching voice is picked from the provider's catalogue;
// any failure on that path falls back to the default voice. Synthesis
// failures are returned.
func (n *Narrator) Narrate(ctx context.Context, text string, base64Image string) (model.Audio, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Audio{}, fmt.Errorf("%w: text or prompt is required", ErrInvalidInput)
	}

	chosen := model.Voice{ID: n.DefaultVoiceID}
	if base64Image != "" && n.Analyzer != nil {
		if v, ok := n.pickVoice(ctx, media.StripDataURIPrefix(base64Image)); ok {
			chosen = v
		}
	}

	data, err := n.Speech.Synthesize(ctx, chosen.ID, text)
	if err != nil {
		return model.Audio{}, err
	}
	return model.Audio{
		Base64:    base64.StdEncoding.EncodeToString(data),
		MIMEType:  "audio/mpeg",
		VoiceID:   chosen.ID,
		VoiceName: chosen.Name,
		Text:      text,
	}, nil
}

func (n *Narrator) pickVoice(ctx context.Context, base64Image string) (model.Voice, bool) {
	analysis, err := n.Analyzer.AnalyzeStrict(ctx, base64Image)
	if err != nil {
		slog.Warn("voice analysis failed, using default voice", "error", err)
		return model.Voice{}, false
	}
	voices, err := n.Speech.ListVoices(ctx)
	if err != nil {
		slog.Warn("voice listing failed, using default voice", "error", err)
		return model.Voice{}, false
	}
	v, match, ok := voice.SelectVoice(voices, analysis.Gender, analysis.Age)
	if !ok || v.ID == "" {
		return model.Voice{}, false
	}
	slog.Debug("voice selected", "voice_id", v.ID, "voice_name", v.Name, "match", match,
		"gender", analysis.Gender, "age", analysis.Age)
	return v, true
}
