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
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jaycherian/movielab/internal/media"
	"github.com/jaycherian/movielab/internal/providers/merge"
	"github.com/jaycherian/movielab/internal/storage"
	"golang.org/x/sync/errgroup"
)

// LocalMerger concatenates clips with ffmpeg and publishes the result. It is
// used when no remote merge endpoint is configured.
type LocalMerger struct {
	FFmpeg    *media.FFmpeg
	HTTP      *http.Client
	Publisher *storage.Publisher
}

// Merge downloads urls, joins them in order and returns the published URL.
func (m *LocalMerger) Merge(ctx context.Context, urls []string) (string, error) {
	if len(urls) < 2 {
		return "", merge.ErrTooFewVideos
	}
	client := m.HTTP
	if client == nil {
		client = http.DefaultClient
	}

	dir, err := os.MkdirTemp(m.FFmpeg.TempDir, "merge-")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(dir)

	inputs := make([]string, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			path, err := media.Download(gctx, client, u, dir)
			if err != nil {
				return &merge.InvalidURLError{URL: u, Err: err}
			}
			inputs[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	output := filepath.Join(dir, "merged.mp4")
	if err := m.FFmpeg.Concat(ctx, inputs, output); err != nil {
		return "", err
	}
	return m.Publisher.PublishFile(ctx, m.Publisher.Key("", "merged", "mp4"), "video/mp4", output)
}
