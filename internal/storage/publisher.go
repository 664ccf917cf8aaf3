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

package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jaycherian/movielab/internal/media"
)

// Publisher turns bytes into a URL an upstream provider can fetch. With a
// store the object is uploaded and presigned; without one the bytes are
// returned inline as a data URI.
type Publisher struct {
	store  Storage
	prefix string
	ttl    time.Duration
}

// NewPublisher creates a publisher. store may be nil.
func NewPublisher(store Storage, prefix string, ttl time.Duration) *Publisher {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Publisher{store: store, prefix: strings.Trim(prefix, "/"), ttl: ttl}
}

// Enabled reports whether a store backs the publisher.
func (p *Publisher) Enabled() bool {
	return p != nil && p.store != nil
}

// Key builds a unique object key under the configured prefix, e.g.
// "assets/<session>/audio-<uuid>.mp3".
func (p *Publisher) Key(session string, kind string, ext string) string {
	name := fmt.Sprintf("%s-%s.%s", kind, uuid.NewString(), strings.TrimPrefix(ext, "."))
	if session == "" {
		session = "shared"
	}
	return path.Join(p.prefix, session, name)
}

// Publish stores data under key and returns a presigned URL, or a data URI
// when no store is configured.
func (p *Publisher) Publish(ctx context.Context, key string, mimeType string, data []byte) (string, error) {
	if !p.Enabled() {
		return media.DataURI(mimeType, data), nil
	}
	if _, err := p.store.Put(ctx, key, bytes.NewReader(data), PutObjectOptions{
		Size:        int64(len(data)),
		ContentType: mimeType,
	}); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return p.presign(ctx, key)
}

// PublishFile is Publish for a local file, streamed to the store.
func (p *Publisher) PublishFile(ctx context.Context, key string, mimeType string, filePath string) (string, error) {
	if !p.Enabled() {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", filePath, err)
		}
		return media.DataURI(mimeType, data), nil
	}

	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", filePath, err)
	}
	if _, err := p.store.Put(ctx, key, f, PutObjectOptions{Size: st.Size(), ContentType: mimeType}); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return p.presign(ctx, key)
}

func (p *Publisher) presign(ctx context.Context, key string) (string, error) {
	u, err := p.store.PresignGet(ctx, key, p.ttl)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return u, nil
}
