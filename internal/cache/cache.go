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

// Package cache keeps the narration audio generated for each scene of a
// session, so that re-running a pipeline with an unchanged subtitle does not
// synthesize the same clip twice.
//
// Entries are keyed by (session, scene index). A cached clip is only reused
// when it was produced from the same subtitle text. A session's entries live
// until it is evicted explicitly, until it has been idle for the configured
// TTL, or until a run that asked for eviction finishes.
package cache

import (
	"context"
	"fmt"

	"github.com/jaycherian/movielab/internal/cloud"
	"github.com/jaycherian/movielab/internal/core/model"
)

// AudioCache stores narration clips per session and scene index.
type AudioCache interface {
	Get(ctx context.Context, session string, sceneIndex int) (model.Audio, bool, error)
	Put(ctx context.Context, session string, sceneIndex int, audio model.Audio) error
	Evict(ctx context.Context, session string) error
}

// Lookup returns the cached clip for the scene only when it was generated from
// text.
func Lookup(ctx context.Context, c AudioCache, session string, sceneIndex int, text string) (model.Audio, bool, error) {
	audio, ok, err := c.Get(ctx, session, sceneIndex)
	if err != nil || !ok {
		return model.Audio{}, false, err
	}
	if audio.Text != text {
		return model.Audio{}, false, nil
	}
	return audio, true, nil
}

// entry is the stored form of a clip. model.Audio hides Text from its JSON
// form, so it is carried next to it.
type entry struct {
	Text  string      `json:"text"`
	Audio model.Audio `json:"audio"`
}

func newEntry(audio model.Audio) entry {
	return entry{Text: audio.Text, Audio: audio}
}

func (e entry) audio() model.Audio {
	a := e.Audio
	a.Text = e.Text
	return a
}

// New creates the cache selected by config. Redis connectivity is checked
// with a PING.
func New(ctx context.Context, config cloud.Cache) (AudioCache, error) {
	switch config.Backend {
	case "", "memory":
		return NewMemoryAudioCache(config.IdleTTL()), nil
	case "redis":
		return NewRedisAudioCache(ctx, config)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", config.Backend)
	}
}
