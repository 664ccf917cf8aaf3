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

// Package storage holds the object store abstraction used to turn generated
// assets (seed images, narration audio, merged clips) into URLs that the
// upstream video providers can fetch. Two backends exist: an S3 compatible
// store through MinIO and Google Cloud Storage.
package storage

import (
	"context"
	"io"
	"time"
)

// PutObjectOptions are the optional parameters of an upload. Size is the
// exact byte count or -1 when unknown.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the object store used for generated assets.
type Storage interface {
	// Put uploads the content of r under key.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get streams the object stored under key.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes the object stored under key.
	Delete(ctx context.Context, key string) error
	// PresignGet returns a time limited download URL for key.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}
