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
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 0x49, 0x48, 0x44, 0x52}

func TestDataURIRoundTrip(t *testing.T) {
	uri := DataURI("image/png", pngHeader)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	mime, data, err := ParseDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, pngHeader, data)
}

func TestParseDataURIRejectsGarbage(t *testing.T) {
	for _, in := range []string{"hello", "data:image/png,abc", "data:image/png;base64,@@@"} {
		_, _, err := ParseDataURI(in)
		assert.ErrorIs(t, err, ErrInvalidDataURI, in)
	}
}

func TestDecodeImageSniffsRawBase64(t *testing.T) {
	payload := StripDataURIPrefix(DataURI("image/png", pngHeader))
	mime, data, err := DecodeImage(payload)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, pngHeader, data)

	mime, _, err = DecodeImage(StripDataURIPrefix(DataURI("x", []byte("not an image"))))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)

	_, _, err = DecodeImage("   ")
	assert.Error(t, err)
}

func TestStripDataURIPrefix(t *testing.T) {
	assert.Equal(t, "QUJD", StripDataURIPrefix("data:audio/mpeg;base64,QUJD"))
	assert.Equal(t, "QUJD", StripDataURIPrefix("QUJD"))
}

func TestExtractLastFrameUsesSeekFromEnd(t *testing.T) {
	var gotArgs []string
	ff := &FFmpeg{
		TempDir: t.TempDir(),
		Run: func(_ context.Context, name string, args ...string) ([]byte, error) {
			assert.Equal(t, "ffmpeg", name)
			gotArgs = args
			return nil, os.WriteFile(args[len(args)-1], []byte{0xFF, 0xD8, 0xFF}, 0o600)
		},
	}

	frame, err := ff.ExtractLastFrame(context.Background(), "https://cdn.example/clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, frame)
	assert.Contains(t, strings.Join(gotArgs, " "), "-sseof -1 -i https://cdn.example/clip.mp4 -update 1 -q:v 2")
	assert.NotContains(t, gotArgs, "-frames:v")
}

func TestExtractLastFrameWithoutOutput(t *testing.T) {
	ff := &FFmpeg{
		TempDir: t.TempDir(),
		Run: func(context.Context, string, ...string) ([]byte, error) {
			return nil, nil
		},
	}
	_, err := ff.ExtractLastFrame(context.Background(), "clip.mp4")
	assert.ErrorIs(t, err, ErrNoFrame)
}

func TestExtractLastFrameReportsFailure(t *testing.T) {
	ff := &FFmpeg{
		TempDir: t.TempDir(),
		Run: func(context.Context, string, ...string) ([]byte, error) {
			return []byte("line one\nmoov atom not found"), errors.New("exit status 1")
		},
	}
	_, err := ff.ExtractLastFrame(context.Background(), "clip.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "moov atom not found")
}

func TestConcatWritesListFile(t *testing.T) {
	var list string
	ff := &FFmpeg{
		TempDir: t.TempDir(),
		Run: func(_ context.Context, _ string, args ...string) ([]byte, error) {
			for i, a := range args {
				if a == "-i" {
					b, err := os.ReadFile(args[i+1])
					require.NoError(t, err)
					list = string(b)
				}
			}
			return nil, nil
		},
	}
	require.NoError(t, ff.Concat(context.Background(), []string{"/tmp/a.mp4", "/tmp/it's.mp4"}, "/tmp/out.mp4"))
	assert.Equal(t, "file '/tmp/a.mp4'\nfile '/tmp/it'\\''s.mp4'\n", list)

	assert.Error(t, ff.Concat(context.Background(), nil, "/tmp/out.mp4"))
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.mp4" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("video-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	path, err := Download(context.Background(), srv.Client(), srv.URL+"/clips/one.mp4", dir)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Equal(t, ".mp4", filepath.Ext(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(b))

	_, err = Download(context.Background(), srv.Client(), srv.URL+"/missing.mp4", dir)
	assert.Error(t, err)
}
