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

package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
)

// Download fetches rawURL into a new file inside dir and returns its path.
func Download(ctx context.Context, client *http.Client, rawURL string, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("failed to download %s: status %d", rawURL, resp.StatusCode)
	}

	out, err := os.CreateTemp(dir, "clip-*"+extensionOf(rawURL, ".mp4"))
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("failed to save %s: %w", rawURL, err)
	}
	return out.Name(), nil
}

func extensionOf(rawURL string, fallback string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	if ext := filepath.Ext(path.Base(u.Path)); ext != "" && len(ext) <= 5 {
		return ext
	}
	return fallback
}
