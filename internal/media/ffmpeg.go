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
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNoFrame is returned when ffmpeg produced no image.
var ErrNoFrame = errors.New("no frame extracted")

// Runner executes an external program and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the program with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// FFmpeg wraps the ffmpeg binary.
type FFmpeg struct {
	Path    string // ffmpeg executable, "ffmpeg" when empty
	TempDir string // parent of scratch directories, os.TempDir() when empty
	Run     Runner // ExecRunner when nil
}

// NewFFmpeg creates an FFmpeg using the real binary at path.
func NewFFmpeg(path string, tempDir string) *FFmpeg {
	return &FFmpeg{Path: path, TempDir: tempDir, Run: ExecRunner}
}

func (f *FFmpeg) binary() string {
	if f.Path == "" {
		return "ffmpeg"
	}
	return f.Path
}

func (f *FFmpeg) run(ctx context.Context, args ...string) error {
	runner := f.Run
	if runner == nil {
		runner = ExecRunner
	}
	out, err := runner(ctx, f.binary(), args...)
	if err != nil {
		slog.Debug("ffmpeg failed", "args", strings.Join(args, " "), "output", string(out))
		return fmt.Errorf("error running ffmpeg: %w: %s", err, lastLine(out))
	}
	return nil
}

// LastFrameArgs decodes the last second of input and overwrites a single
// JPEG with every frame until EOF, so the file left behind is the final frame.
// There is no frame limit: it would stop at the first frame after the seek.
func LastFrameArgs(input string, output string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-sseof", "-1",
		"-i", input,
		"-update", "1",
		"-q:v", "2",
		output,
	}
}

// ConcatArgs joins the files named in listFile without re-encoding.
func ConcatArgs(listFile string, output string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		"-movflags", "+faststart",
		output,
	}
}

// ExtractLastFrame returns the final frame of the video at input (a local path
// or an http(s) URL ffmpeg can read) as JPEG bytes.
func (f *FFmpeg) ExtractLastFrame(ctx context.Context, input string) ([]byte, error) {
	dir, err := os.MkdirTemp(f.TempDir, "frame-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(dir)

	output := filepath.Join(dir, "last.jpg")
	if err := f.run(ctx, LastFrameArgs(input, output)...); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(output)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoFrame
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrNoFrame
	}
	return data, nil
}

// Concat joins local video files, in order, into output.
func (f *FFmpeg) Concat(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return errors.New("nothing to concatenate")
	}
	list, err := os.CreateTemp(f.TempDir, "concat-*.txt")
	if err != nil {
		return fmt.Errorf("failed to create concat list: %w", err)
	}
	defer os.Remove(list.Name())

	if _, err := list.WriteString(ConcatList(inputs)); err != nil {
		list.Close()
		return fmt.Errorf("failed to write concat list: %w", err)
	}
	if err := list.Close(); err != nil {
		return err
	}
	return f.run(ctx, ConcatArgs(list.Name(), output)...)
}

// ConcatList renders the concat demuxer list for inputs.
func ConcatList(inputs []string) string {
	var sb strings.Builder
	for _, in := range inputs {
		sb.WriteString("file '")
		sb.WriteString(strings.ReplaceAll(in, "'", `'\''`))
		sb.WriteString("'\n")
	}
	return sb.String()
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return lines[len(lines)-1]
}
