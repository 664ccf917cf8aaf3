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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/jaycherian/movielab/internal/cloud"
	"github.com/jaycherian/movielab/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clip(text string) model.Audio {
	return model.Audio{Base64: "QUJD", MIMEType: "audio/mpeg", VoiceID: "v1", VoiceName: "Rachel", Text: text}
}

func exerciseCache(t *testing.T, c AudioCache) {
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "s1", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "s1", 0, clip("Hello there")))
	require.NoError(t, c.Put(ctx, "s1", 1, clip("Second line")))
	require.NoError(t, c.Put(ctx, "s2", 0, clip("Other session")))

	got, ok, err := Lookup(ctx, c, "s1", 0, "Hello there")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, clip("Hello there"), got)

	_, ok, err = Lookup(ctx, c, "s1", 0, "Changed subtitle")
	require.NoError(t, err)
	assert.False(t, ok, "a different subtitle must not reuse the clip")

	require.NoError(t, c.Put(ctx, "s1", 0, clip("Changed subtitle")))
	_, ok, _ = Lookup(ctx, c, "s1", 0, "Changed subtitle")
	assert.True(t, ok)

	require.NoError(t, c.Evict(ctx, "s1"))
	_, ok, _ = c.Get(ctx, "s1", 1)
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "s2", 0)
	assert.True(t, ok, "evicting one session keeps the others")
}

func TestMemoryAudioCache(t *testing.T) {
	exerciseCache(t, NewMemoryAudioCache(time.Minute))
}

func TestMemorySweepEvictsIdleSessions(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := start
	c := NewMemoryAudioCache(10 * time.Minute)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Put(ctx, "old", 0, clip("a")))
	now = start.Add(8 * time.Minute)
	require.NoError(t, c.Put(ctx, "fresh", 0, clip("b")))

	assert.Equal(t, 0, c.Sweep(start.Add(9*time.Minute)))
	assert.Equal(t, 1, c.Sweep(start.Add(11*time.Minute)))
	assert.Equal(t, 1, c.Sessions())

	_, ok, _ := c.Get(ctx, "fresh", 0)
	assert.True(t, ok)
}

func TestMemoryJanitorStopsWithContext(t *testing.T) {
	c := NewMemoryAudioCache(time.Nanosecond)
	require.NoError(t, c.Put(context.Background(), "s", 0, clip("x")))

	ctx, cancel := context.WithCancel(context.Background())
	c.StartJanitor(ctx, time.Millisecond)
	assert.Eventually(t, func() bool { return c.Sessions() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
}

func newRedisCache(t *testing.T) (*RedisAudioCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisAudioCacheWithClient(client, "movielab:audio:", 30*time.Minute), mr
}

func TestRedisAudioCache(t *testing.T) {
	c, _ := newRedisCache(t)
	exerciseCache(t, c)
}

func TestRedisSessionsExpireWhenIdle(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "s1", 2, clip("line")))
	assert.True(t, mr.Exists("movielab:audio:s1"))
	assert.Equal(t, 30*time.Minute, mr.TTL("movielab:audio:s1"))

	mr.FastForward(20 * time.Minute)
	_, ok, err := c.Get(ctx, "s1", 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 30*time.Minute, mr.TTL("movielab:audio:s1"), "reads refresh the idle ttl")

	mr.FastForward(31 * time.Minute)
	_, ok, err = c.Get(ctx, "s1", 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewSelectsBackend(t *testing.T) {
	c, err := New(context.Background(), cloud.Cache{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryAudioCache{}, c)

	mr := miniredis.RunT(t)
	c, err = New(context.Background(), cloud.Cache{Backend: "redis", RedisAddress: mr.Addr(), RedisKeyPrefix: "p:"})
	require.NoError(t, err)
	require.IsType(t, &RedisAudioCache{}, c)
	_ = c.(*RedisAudioCache).Close()

	_, err = New(context.Background(), cloud.Cache{Backend: "memcached"})
	assert.Error(t, err)
}
