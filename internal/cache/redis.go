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
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jaycherian/movielab/internal/cloud"
	"github.com/jaycherian/movielab/internal/core/model"
)

// RedisAudioCache keeps one hash per session (field = scene index) and lets
// Redis expire idle sessions. Every access refreshes the TTL.
type RedisAudioCache struct {
	client  *redis.Client
	prefix  string
	idleTTL time.Duration
}

// NewRedisAudioCache connects to the configured Redis and checks it with PING.
func NewRedisAudioCache(ctx context.Context, config cloud.Cache) (*RedisAudioCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: config.RedisAddress,
		DB:   config.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", config.RedisAddress, err)
	}
	return NewRedisAudioCacheWithClient(client, config.RedisKeyPrefix, config.IdleTTL()), nil
}

// NewRedisAudioCacheWithClient wraps an existing client.
func NewRedisAudioCacheWithClient(client *redis.Client, prefix string, idleTTL time.Duration) *RedisAudioCache {
	return &RedisAudioCache{client: client, prefix: prefix, idleTTL: idleTTL}
}

func (r *RedisAudioCache) key(session string) string {
	return r.prefix + session
}

func (r *RedisAudioCache) Get(ctx context.Context, session string, sceneIndex int) (model.Audio, bool, error) {
	key := r.key(session)
	raw, err := r.client.HGet(ctx, key, strconv.Itoa(sceneIndex)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Audio{}, false, nil
	}
	if err != nil {
		return model.Audio{}, false, fmt.Errorf("redis hget %s: %w", key, err)
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return model.Audio{}, false, fmt.Errorf("decode cached audio %s/%d: %w", session, sceneIndex, err)
	}
	if r.idleTTL > 0 {
		r.client.Expire(ctx, key, r.idleTTL)
	}
	return e.audio(), true, nil
}

func (r *RedisAudioCache) Put(ctx context.Context, session string, sceneIndex int, audio model.Audio) error {
	raw, err := json.Marshal(newEntry(audio))
	if err != nil {
		return fmt.Errorf("encode audio: %w", err)
	}
	key := r.key(session)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, strconv.Itoa(sceneIndex), raw)
		if r.idleTTL > 0 {
			pipe.Expire(ctx, key, r.idleTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis hset %s: %w", key, err)
	}
	return nil
}

func (r *RedisAudioCache) Evict(ctx context.Context, session string) error {
	if err := r.client.Del(ctx, r.key(session)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", r.key(session), err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (r *RedisAudioCache) Close() error {
	return r.client.Close()
}
