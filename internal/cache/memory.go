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

package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jaycherian/movielab/internal/core/model"
)

type memorySession struct {
	clips    map[int]entry
	lastUsed time.Time
}

// MemoryAudioCache is the process local AudioCache.
type MemoryAudioCache struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
	idleTTL  time.Duration
	now      func() time.Time
}

// NewMemoryAudioCache creates an empty cache whose sessions expire after
// idleTTL without access.
func NewMemoryAudioCache(idleTTL time.Duration) *MemoryAudioCache {
	return &MemoryAudioCache{
		sessions: make(map[string]*memorySession),
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

func (m *MemoryAudioCache) Get(_ context.Context, session string, sceneIndex int) (model.Audio, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[session]
	if !ok {
		return model.Audio{}, false, nil
	}
	s.lastUsed = m.now()
	e, ok := s.clips[sceneIndex]
	if !ok {
		return model.Audio{}, false, nil
	}
	return e.audio(), true, nil
}

func (m *MemoryAudioCache) Put(_ context.Context, session string, sceneIndex int, audio model.Audio) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[session]
	if !ok {
		s = &memorySession{clips: make(map[int]entry)}
		m.sessions[session] = s
	}
	s.clips[sceneIndex] = newEntry(audio)
	s.lastUsed = m.now()
	return nil
}

func (m *MemoryAudioCache) Evict(_ context.Context, session string) error {
	m.mu.Lock()
	delete(m.sessions, session)
	m.mu.Unlock()
	return nil
}

// Sessions returns the number of sessions holding clips.
func (m *MemoryAudioCache) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep evicts every session idle for longer than the TTL at now and returns
// how many were removed.
func (m *MemoryAudioCache) Sweep(now time.Time) int {
	if m.idleTTL <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, s := range m.sessions {
		if now.Sub(s.lastUsed) > m.idleTTL {
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted
}

// StartJanitor sweeps the cache every interval until ctx is done.
func (m *MemoryAudioCache) StartJanitor(ctx context.Context, every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := m.Sweep(now); n > 0 {
					slog.Info("evicted idle audio sessions", "count", n)
				}
			}
		}
	}()
}
